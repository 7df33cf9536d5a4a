package acme

import (
	"context"
	"sync"
)

// MockClient is a test double for Client. Safe for concurrent use.
type MockClient struct {
	RequestFunc func(ctx context.Context, domains []string) (*IssuedCertificate, error)

	mu    sync.Mutex
	calls [][]string
}

// Request records the call and delegates to RequestFunc when set.
func (m *MockClient) Request(ctx context.Context, domains []string) (*IssuedCertificate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), domains...))
	m.mu.Unlock()

	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, domains)
	}
	return &IssuedCertificate{Domains: domains}, nil
}

// Calls returns a copy of the recorded domain lists.
func (m *MockClient) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Request invocations.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
