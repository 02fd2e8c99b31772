package resolver

import (
	"context"
	"net/netip"
	"sync"
)

type lookupCall struct {
	Server string
	Host   string
	QType  uint16
}

// mockExchanger answers from a table keyed by server, host and type.
type mockExchanger struct {
	mu      sync.Mutex
	calls   []lookupCall
	answers map[lookupCall][]netip.Addr
	errs    map[lookupCall]error
}

func newMockExchanger() *mockExchanger {
	return &mockExchanger{
		answers: make(map[lookupCall][]netip.Addr),
		errs:    make(map[lookupCall]error),
	}
}

func (m *mockExchanger) Lookup(_ context.Context, server, host string, qtype uint16) ([]netip.Addr, error) {
	call := lookupCall{Server: server, Host: host, QType: qtype}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if err := m.errs[call]; err != nil {
		return nil, err
	}
	return m.answers[call], nil
}

func (m *mockExchanger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
