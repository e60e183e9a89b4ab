package transport

import (
	"context"
	"net"
	"sync"
)

// MockTransport is a test double for Transport, recording every Send()
// call so Socket's send paths can be tested without a real network socket.
type MockTransport struct {
	mu        sync.Mutex
	sendCalls []SendCall
	closed    bool
}

// SendCall records a single Send() invocation.
type SendCall struct {
	Packet []byte
	Dest   net.Addr
}

// NewMockTransport creates a new mock transport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		sendCalls: make([]SendCall, 0),
	}
}

// Send records the call for verification.
func (m *MockTransport) Send(_ context.Context, packet []byte, dest net.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Record the call
	m.sendCalls = append(m.sendCalls, SendCall{
		Packet: append([]byte(nil), packet...), // Copy to avoid aliasing
		Dest:   dest,
	})

	return nil
}

// Receive is unimplemented: no test currently drives MockTransport's
// receive path.
func (m *MockTransport) Receive(_ context.Context) ([]byte, net.Addr, error) {
	return nil, nil, nil
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// SendCalls returns all recorded Send() calls (count, packet contents,
// and destination addresses) for test assertions.
func (m *MockTransport) SendCalls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Return a copy to avoid race conditions
	calls := make([]SendCall, len(m.sendCalls))
	copy(calls, m.sendCalls)
	return calls
}
