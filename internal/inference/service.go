package inference

import "context"

// Request is one call to the inference service.
type Request struct {
	// Model overrides the client's default model when set.
	Model  string
	System string
	Prompt string
	// RunID correlates the call with a run in the event log.
	RunID string
}

// Service is the external LLM call surface.
type Service interface {
	// GenerateStructured fills out with a response validated against c.
	GenerateStructured(ctx context.Context, req Request, c *Contract, out any) error
	GenerateText(ctx context.Context, req Request) (string, error)
}

// Generate is GenerateStructured returning a typed value.
func Generate[T any](ctx context.Context, svc Service, req Request, c *Contract) (T, error) {
	var out T
	err := svc.GenerateStructured(ctx, req, c, &out)
	return out, err
}
