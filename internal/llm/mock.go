package llm

import (
	"context"
	"strings"
	"sync"
)

// MockProvider produces deterministic local replies when no inference
// backend is configured. Tests can enqueue scripted responses or errors;
// without a script it answers based on the prompt shape so the full chat
// loop still works against the in-memory store.
type MockProvider struct {
	mu       sync.Mutex
	scripted []scriptedReply
	prompts  []string
}

type scriptedReply struct {
	text string
	err  error
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

// Enqueue schedules the next reply.
func (p *MockProvider) Enqueue(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripted = append(p.scripted, scriptedReply{text: text})
}

// EnqueueError schedules the next call to fail.
func (p *MockProvider) EnqueueError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripted = append(p.scripted, scriptedReply{err: err})
}

// Prompts returns every prompt seen so far, in call order.
func (p *MockProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.prompts))
	copy(out, p.prompts)
	return out
}

func (p *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	if len(p.scripted) > 0 {
		reply := p.scripted[0]
		p.scripted = p.scripted[1:]
		p.mu.Unlock()
		return reply.text, reply.err
	}
	p.mu.Unlock()

	return defaultReply(prompt), nil
}

func defaultReply(prompt string) string {
	if strings.Contains(prompt, "Convert this natural language query to SQL") {
		// Unscoped on purpose: the translator must inject the customer filter.
		return "SELECT * FROM invoice"
	}
	return "Here is a summary of the invoices matching your question."
}
