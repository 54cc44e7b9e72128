// Package inferencetest provides a scripted inference.Service for tests.
package inferencetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rahul/agentview/internal/inference"
)

// Handler computes a raw JSON (or text) response for a request.
type Handler func(req inference.Request) (string, error)

type entry struct {
	raw string
	err error
}

// Call records one request made against the service.
type Call struct {
	Contract string
	Request  inference.Request
}

// Scripted answers structured calls per contract name, in queue order,
// falling back to a handler when the queue is empty.
type Scripted struct {
	mu       sync.Mutex
	queues   map[string][]entry
	handlers map[string]Handler
	calls    []Call
}

// TextContract is the pseudo contract name used for GenerateText.
const TextContract = "text"

func New() *Scripted {
	return &Scripted{
		queues:   make(map[string][]entry),
		handlers: make(map[string]Handler),
	}
}

// On queues raw responses for contract.
func (s *Scripted) On(contract string, raws ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range raws {
		s.queues[contract] = append(s.queues[contract], entry{raw: r})
	}
	return s
}

// OnText queues GenerateText responses.
func (s *Scripted) OnText(texts ...string) *Scripted {
	return s.On(TextContract, texts...)
}

// Fail queues an error for contract.
func (s *Scripted) Fail(contract string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[contract] = append(s.queues[contract], entry{err: err})
	return s
}

// Handle answers every otherwise unscripted call for contract.
func (s *Scripted) Handle(contract string, h Handler) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[contract] = h
	return s
}

func (s *Scripted) next(contract string, req inference.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Contract: contract, Request: req})
	if q := s.queues[contract]; len(q) > 0 {
		e := q[0]
		s.queues[contract] = q[1:]
		s.mu.Unlock()
		return e.raw, e.err
	}
	h := s.handlers[contract]
	s.mu.Unlock()
	if h != nil {
		return h(req)
	}
	return "", fmt.Errorf("no scripted response for %s", contract)
}

func (s *Scripted) GenerateStructured(ctx context.Context, req inference.Request, c *inference.Contract, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := s.next(c.Name, req)
	if err != nil {
		return err
	}
	return c.Decode([]byte(raw), out)
}

func (s *Scripted) GenerateText(ctx context.Context, req inference.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.next(TextContract, req)
}

// Calls returns every recorded call in order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor counts the calls made for contract.
func (s *Scripted) CallsFor(contract string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Contract == contract {
			n++
		}
	}
	return n
}
