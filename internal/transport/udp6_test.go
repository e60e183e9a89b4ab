package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mjansson/mdns-lib/internal/transport"
)

// TestUDPv6Transport_ImplementsTransportInterface is a compile-time contract
// check mirroring the IPv4 transport's equivalent.
func TestUDPv6Transport_ImplementsTransportInterface(_ *testing.T) {
	var _ transport.Transport = (*transport.UDPv6Transport)(nil)
}

func TestUDPv6Transport_Send_SendsToMulticastAddress(t *testing.T) {
	tr, err := transport.NewUDPv6Transport(false)
	if err != nil {
		t.Skipf("NewUDPv6Transport() failed (no IPv6 support in this environment): %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx := context.Background()
	packet := []byte{0x00, 0x00, 0x00, 0x00}
	mdnsAddr := &net.UDPAddr{
		IP:   net.ParseIP("ff02::fb"),
		Port: 5353,
	}

	err = tr.Send(ctx, packet, mdnsAddr)
	if err != nil {
		t.Errorf("Send() failed: %v", err)
	}
}

func TestUDPv6Transport_Receive_RespectsContextCancellation(t *testing.T) {
	tr, err := transport.NewUDPv6Transport(false)
	if err != nil {
		t.Skipf("NewUDPv6Transport() failed (no IPv6 support in this environment): %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, _, err = tr.Receive(ctx)
	duration := time.Since(start)

	if err == nil {
		t.Error("Receive() should return error when context is canceled")
	}
	if duration > 100*time.Millisecond {
		t.Errorf("Receive() took too long (%v) to detect cancellation", duration)
	}
}

func TestUDPv6Transport_Receive_PropagatesContextDeadline(t *testing.T) {
	tr, err := transport.NewUDPv6Transport(false)
	if err != nil {
		t.Skipf("NewUDPv6Transport() failed (no IPv6 support in this environment): %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	data, addr, err := tr.Receive(ctx)
	duration := time.Since(start)

	if err == nil {
		t.Logf("received real traffic (%d bytes from %v) in %v", len(data), addr, duration)
		return
	}
	if duration > 150*time.Millisecond {
		t.Errorf("Receive() took too long (%v) to timeout, expected ~50ms", duration)
	}
}

func TestUDPv6Transport_Close_PropagatesErrors(t *testing.T) {
	tr, err := transport.NewUDPv6Transport(false)
	if err != nil {
		t.Skipf("NewUDPv6Transport() failed (no IPv6 support in this environment): %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("First Close() should succeed, got error: %v", err)
	}

	if err := tr.Close(); err == nil {
		t.Error("Second Close() should return error (socket already closed)")
	}
}

func TestUDPv6Transport_EphemeralPort_SkipsMulticastJoin(t *testing.T) {
	tr, err := transport.NewUDPv6Transport(true)
	if err != nil {
		t.Skipf("NewUDPv6Transport() failed (no IPv6 support in this environment): %v", err)
	}
	defer func() { _ = tr.Close() }()
}
