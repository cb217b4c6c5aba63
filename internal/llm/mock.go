package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider implements Provider for testing purposes. Responses are
// selected by prompt substring; unmatched prompts get a canned reply.
type MockProvider struct {
	mu        sync.Mutex
	name      string
	responses map[string]string
	failWith  error
	callCount int
	prompts   []string
}

// NewMockProvider creates a new mock completion provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:      "mock",
		responses: make(map[string]string),
	}
}

// GetName returns the name of this provider.
func (m *MockProvider) GetName() string {
	return m.name
}

// GenerateText returns a scripted response based on prompt content.
func (m *MockProvider) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.prompts = append(m.prompts, prompt)

	if m.failWith != nil {
		return "", m.failWith
	}

	for needle, response := range m.responses {
		if strings.Contains(prompt, needle) {
			return response, nil
		}
	}

	return fmt.Sprintf("Mock completion for prompt of %d characters.", len(prompt)), nil
}

// Respond registers a scripted response for prompts containing needle.
func (m *MockProvider) Respond(needle, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[needle] = response
}

// FailWith makes every subsequent call return err.
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// CallCount reports how many calls were made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of every prompt seen so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
