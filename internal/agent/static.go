package agent

import (
	"context"
	"sync"

	"craftbot.io/craftbot/internal/domain"
)

// StaticAgent answers from a seeded table and falls back to joining the
// input names.
type StaticAgent struct {
	mu      sync.RWMutex
	answers map[[2]string]Result
	calls   int
	err     error
}

// NewStaticAgent creates an empty StaticAgent.
func NewStaticAgent() *StaticAgent {
	return &StaticAgent{answers: make(map[[2]string]Result)}
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// Seed fixes the answer for a pair of element names in either order.
func (s *StaticAgent) Seed(a, b string, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[pairKey(a, b)] = r
}

// FailWith makes every following call return err. Nil restores answers.
func (s *StaticAgent) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many combinations were requested.
func (s *StaticAgent) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *StaticAgent) Combine(ctx context.Context, a, b domain.Element) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.answers[pairKey(a.Name, b.Name)]; ok {
		return &r, nil
	}
	return &Result{
		Reason: a.Name + " meets " + b.Name,
		Result: Element{Name: a.Name + " " + b.Name, Emoji: a.Emoji + b.Emoji},
	}, nil
}
