// Package agent provides the language-model client that invents the result
// of combining two elements.
//
// Implementations:
//   - HTTPAgent: OpenAI-compatible chat-completions endpoint
//   - StaticAgent: deterministic stub for tests and local development
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/domain"
)

// ErrInvalidResult is returned when the model answers without a usable element.
var ErrInvalidResult = errors.New("agent returned an invalid result")

// Agent combines two elements into a new one.
type Agent interface {
	Combine(ctx context.Context, a, b domain.Element) (*Result, error)
}

// Result is the structured answer of the model.
type Result struct {
	Reason string  `json:"reason"`
	Result Element `json:"result"`
}

// Element is the invented element.
type Element struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Validate trims the answer and rejects an empty name.
func (r *Result) Validate() error {
	r.Result.Name = strings.TrimSpace(r.Result.Name)
	r.Result.Emoji = strings.TrimSpace(r.Result.Emoji)
	if r.Result.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidResult)
	}
	return nil
}

// New builds the agent selected by cfg.Provider.
func New(cfg config.AgentConfig) (Agent, error) {
	switch cfg.Provider {
	case "", "static":
		return NewStaticAgent(), nil
	case "http":
		return NewHTTPAgent(cfg)
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}
}
