package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/agentview/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// LLM implements Service on top of a langchaingo model.
type LLM struct {
	Model        llms.Model
	DefaultModel string
	Logger       *observability.Logger
}

func NewLLM(model llms.Model, defaultModel string, logger *observability.Logger) *LLM {
	if logger == nil {
		logger = observability.Discard()
	}
	return &LLM{
		Model:        model,
		DefaultModel: defaultModel,
		Logger:       logger,
	}
}

func (l *LLM) messages(req Request) []llms.MessageContent {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(req.Prompt)},
	})
	return messages
}

func (l *LLM) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return l.DefaultModel
}

func (l *LLM) options(req Request) []llms.CallOption {
	var opts []llms.CallOption
	if m := l.modelFor(req); m != "" {
		opts = append(opts, llms.WithModel(m))
	}
	return opts
}

// GenerateStructured offers the contract as the only callable function and
// accepts either its call arguments or a JSON object in the message content.
func (l *LLM) GenerateStructured(ctx context.Context, req Request, c *Contract, out any) error {
	tools := []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        c.Name,
				Description: c.Description,
				Parameters:  c.Schema,
			},
		},
	}
	prompt := req
	prompt.Prompt = fmt.Sprintf("%s\n\nRespond by calling %s with arguments that match its schema.", req.Prompt, c.Name)

	opts := append(l.options(req), llms.WithTools(tools))
	resp, err := l.Model.GenerateContent(ctx, l.messages(prompt), opts...)
	if err != nil {
		return fmt.Errorf("inference call %s failed: %w", c.Name, err)
	}
	if len(resp.Choices) == 0 {
		return &ValidationError{Contract: c.Name, Err: errors.New("no choices returned")}
	}

	choice := resp.Choices[0]
	raw := ""
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil && tc.FunctionCall.Name == c.Name {
			raw = tc.FunctionCall.Arguments
			break
		}
	}
	if raw == "" {
		raw = ExtractJSON(choice.Content)
	}

	l.Logger.LogLLM(req.RunID, c.Name, prompt.Prompt, raw)
	l.logCost(req, choice)

	return c.Decode([]byte(raw), out)
}

func (l *LLM) GenerateText(ctx context.Context, req Request) (string, error) {
	resp, err := l.Model.GenerateContent(ctx, l.messages(req), l.options(req)...)
	if err != nil {
		return "", fmt.Errorf("inference text call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("inference text call returned no choices")
	}
	choice := resp.Choices[0]
	l.Logger.LogLLM(req.RunID, "text", req.Prompt, choice.Content)
	l.logCost(req, choice)
	return strings.TrimSpace(choice.Content), nil
}

func (l *LLM) logCost(req Request, choice *llms.ContentChoice) {
	if choice == nil || choice.GenerationInfo == nil {
		return
	}
	prompt := intInfo(choice.GenerationInfo, "PromptTokens")
	completion := intInfo(choice.GenerationInfo, "CompletionTokens")
	if prompt == 0 && completion == 0 {
		return
	}
	l.Logger.LogCost(req.RunID, prompt, completion, l.modelFor(req))
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
