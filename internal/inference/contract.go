package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrValidation matches every ValidationError.
var ErrValidation = errors.New("inference response failed validation")

// ValidationError reports a structured response that does not satisfy its contract.
type ValidationError struct {
	Contract string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("response for %s failed validation: %v", e.Contract, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Contract is the typed JSON shape a structured generation must satisfy.
// The schema doubles as the function parameters offered to the model.
type Contract struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	resolved    *jsonschema.Resolved
}

// Tweak adjusts an inferred schema, e.g. to add enums.
type Tweak func(*jsonschema.Schema) error

// NewContract infers the schema of T and applies tweaks.
func NewContract[T any](name, description string, tweaks ...Tweak) (*Contract, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema for %s: %w", name, err)
	}
	s.Description = description
	for _, tw := range tweaks {
		if err := tw(s); err != nil {
			return nil, fmt.Errorf("contract %s: %w", name, err)
		}
	}
	rs, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", name, err)
	}
	return &Contract{Name: name, Description: description, Schema: s, resolved: rs}, nil
}

// MustContract is NewContract for package-level contracts.
func MustContract[T any](name, description string, tweaks ...Tweak) *Contract {
	c, err := NewContract[T](name, description, tweaks...)
	if err != nil {
		panic(err)
	}
	return c
}

// Enum restricts the string property at path to values.
// Paths are dotted property names; a "[]" suffix steps into array items.
func Enum(path string, values ...string) Tweak {
	return func(s *jsonschema.Schema) error {
		target := lookup(s, path)
		if target == nil {
			return fmt.Errorf("no property %q", path)
		}
		target.Enum = make([]any, len(values))
		for i, v := range values {
			target.Enum[i] = v
		}
		return nil
	}
}

// Range bounds the numeric property at path.
func Range(path string, min, max float64) Tweak {
	return func(s *jsonschema.Schema) error {
		target := lookup(s, path)
		if target == nil {
			return fmt.Errorf("no property %q", path)
		}
		target.Minimum = &min
		target.Maximum = &max
		return nil
	}
}

func lookup(s *jsonschema.Schema, path string) *jsonschema.Schema {
	cur := s
	for _, seg := range strings.Split(path, ".") {
		items := strings.HasSuffix(seg, "[]")
		seg = strings.TrimSuffix(seg, "[]")
		if cur == nil || cur.Properties == nil {
			return nil
		}
		cur = cur.Properties[seg]
		if items {
			if cur == nil {
				return nil
			}
			cur = cur.Items
		}
	}
	return cur
}

// Decode validates raw against the contract, then unmarshals it into out.
func (c *Contract) Decode(raw []byte, out any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &ValidationError{Contract: c.Name, Err: errors.New("empty response")}
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return &ValidationError{Contract: c.Name, Err: fmt.Errorf("response is not JSON: %w", err)}
	}
	if err := c.resolved.Validate(instance); err != nil {
		return &ValidationError{Contract: c.Name, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ValidationError{Contract: c.Name, Err: err}
	}
	return nil
}

// ExtractJSON pulls the outermost JSON object out of free-form model text,
// tolerating markdown code fences.
func ExtractJSON(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
