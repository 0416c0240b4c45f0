package provider

import (
	"context"
	"sync"
)

// Mock is a scripted provider for tests. It yields Fragments in order and,
// if Err is set, fails with it after FailAfter fragments.
type Mock struct {
	Fragments []string
	Err       error
	FailAfter int
	// Gate, when non-nil, is received from before each fragment so tests can
	// pace the stream.
	Gate chan struct{}

	mu      sync.Mutex
	prompts []string
}

func NewMock(fragments ...string) *Mock {
	return &Mock{Fragments: fragments}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	for i, frag := range m.Fragments {
		if m.Err != nil && i == m.FailAfter {
			return m.Err
		}
		if m.Gate != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.Gate:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	if m.Err != nil {
		return m.Err
	}
	return nil
}

// Prompts returns every prompt the mock has been asked to complete.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
