package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxQuerySize     = 10 << 10 // 10KB
)

type askRequest struct {
	Query        string `json:"query"`
	RunID        string `json:"runId"`
	Timeframe    string `json:"timeframe"`
	Instructions string `json:"instructions"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if len(req.Query) > maxQuerySize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query exceeds maximum size of 10KB"})
		return
	}
	if s.opts.Runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no runner configured"})
		return
	}

	apiKey := c.GetHeader("X-API-Key")
	if apiKey == "" {
		apiKey = s.opts.APIKey
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	run, err := s.opts.Runner.Run(c.Request.Context(), agent.RunContext{
		APIKey:    apiKey,
		RunID:     req.RunID,
		Query:     req.Query,
		Timeframe: req.Timeframe,
	}, req.Instructions)
	if err != nil {
		body := gin.H{"runId": req.RunID, "error": err.Error()}
		if run != nil {
			body["run"] = run
		}
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runId": req.RunID, "run": run})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, inference.ErrValidation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleSteps prefers the live timeline and falls back to persisted steps.
func (s *Server) handleSteps(c *gin.Context) {
	id := c.Param("id")
	var steps []observability.AgentStep
	if s.opts.Steps != nil {
		steps = s.opts.Steps.GetSteps(id)
	}
	if len(steps) == 0 && s.opts.Store != nil {
		var err error
		steps, err = s.opts.Store.ListSteps(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if steps == nil {
		steps = []observability.AgentStep{}
	}
	c.JSON(http.StatusOK, gin.H{"runId": id, "steps": steps})
}

func (s *Server) handleClearSteps(c *gin.Context) {
	id := c.Param("id")
	if s.opts.Steps != nil {
		s.opts.Steps.ClearSteps(id)
	}
	if s.opts.Store != nil {
		if err := s.opts.Store.DeleteSteps(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFinance(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no store configured"})
		return
	}
	acts, err := s.opts.Store.ListFinancialActivities(c.Request.Context(), listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": acts, "count": len(acts)})
}

func (s *Server) handleSupportDocs(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no store configured"})
		return
	}
	docs, err := s.opts.Store.ListSupportDocs(c.Request.Context(), listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docs": docs, "count": len(docs)})
}

func (s *Server) handleDetector(c *gin.Context) {
	if s.opts.Status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "detector is not running"})
		return
	}
	c.JSON(http.StatusOK, s.opts.Status.Snapshot())
}

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
