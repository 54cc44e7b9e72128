// Package server exposes runs, step timelines, stored records and the live
// inbox relay over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/store"
)

// Runner executes one orchestration run.
type Runner interface {
	Run(ctx context.Context, rc agent.RunContext, instructions string) (*agent.Run, error)
}

// Store is the persisted history the API reads.
type Store interface {
	ListSteps(ctx context.Context, runID string) ([]observability.AgentStep, error)
	DeleteSteps(ctx context.Context, runID string) error
	ListFinancialActivities(ctx context.Context, limit int) ([]store.FinancialActivity, error)
	ListSupportDocs(ctx context.Context, limit int) ([]store.SupportDoc, error)
}

type Options struct {
	Runner Runner
	Steps  *observability.StepRecorder
	Store  Store
	Stream capture.Streamer
	Policy *governance.ContentPolicy
	Status *observability.DetectorStatus
	// APIKey is used for runs whose request carries no key.
	APIKey string
}

// Server is the agentview HTTP API.
type Server struct {
	opts   Options
	router *gin.Engine
}

func New(opts Options) *Server {
	router := gin.Default()
	s := &Server{opts: opts, router: router}

	api := router.Group("/api")
	{
		api.POST("/ask", s.handleAsk)
		api.GET("/runs/:id/steps", s.handleSteps)
		api.DELETE("/runs/:id/steps", s.handleClearSteps)
		api.GET("/finance", s.handleFinance)
		api.GET("/support-docs", s.handleSupportDocs)
		api.GET("/inbox", s.handleInbox)
		api.GET("/detector", s.handleDetector)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
