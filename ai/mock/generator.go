package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/sitebot/ai"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the first line of the prompt is returned.
	GenerateFunc func(ctx context.Context, system, prompt string) (string, error)

	mu         sync.Mutex
	callCount  int
	lastSystem string
	lastPrompt string
}

var _ ai.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock generator with default echo behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records its arguments and returns a canned completion.
func (m *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastSystem = system
	m.lastPrompt = prompt
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, prompt)
	}
	first, _, _ := strings.Cut(prompt, "\n")
	return first, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the system and user prompt of the most recent call.
func (m *MockGenerator) LastPrompt() (system, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastPrompt
}
