// Package transport implements the multicast socket layer: binding to the
// mDNS port, joining the IPv4/IPv6 link-local multicast groups, and
// sending/receiving datagrams.
package transport

import (
	"context"
	"net"
)

// Transport abstracts a bound multicast UDP socket for one address
// family. UDPv4Transport and UDPv6Transport are the real implementations;
// MockTransport is a test double.
type Transport interface {
	// Send transmits packet to dest, returning a NetworkError on partial
	// or failed writes.
	Send(ctx context.Context, packet []byte, dest net.Addr) error

	// Receive blocks for the next datagram, honoring ctx's deadline and
	// cancellation, and returns its payload and source address.
	Receive(ctx context.Context) ([]byte, net.Addr, error)

	// Close releases the underlying socket.
	Close() error
}
