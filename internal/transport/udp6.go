package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv6"

	"github.com/mjansson/mdns-lib/internal/errors"
	"github.com/mjansson/mdns-lib/internal/protocol"
)

// UDPv6Transport implements Transport for IPv6 mDNS multicast, mirroring
// UDPv4Transport's bind/join/send/receive structure for the ff02::fb
// link-local scope group (RFC 6762 §5).
type UDPv6Transport struct {
	conn net.PacketConn
	pc   *ipv6.PacketConn
}

// NewUDPv6Transport creates a UDPv6Transport. See NewUDPv4Transport for
// the meaning of ephemeralPort.
func NewUDPv6Transport(ephemeralPort bool) (*UDPv6Transport, error) {
	port := protocol.Port
	if ephemeralPort {
		port = 0
	}

	lc := net.ListenConfig{Control: PlatformControl}
	conn, err := lc.ListenPacket(context.Background(), "udp6", fmt.Sprintf("[::]:%d", port))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind udp6 port %d", port),
		}
	}

	pc := ipv6.NewPacketConn(conn)

	if !ephemeralPort {
		if err := joinIPv6MulticastAllInterfaces(pc); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if err := pc.SetMulticastHopLimit(255); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast hop limit", Err: err, Details: "failed to set hop limit=255"}
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast loopback", Err: err, Details: "failed to enable loopback"}
	}

	if udpConn, ok := conn.(*net.UDPConn); ok {
		if err := udpConn.SetReadBuffer(65536); err != nil {
			_ = conn.Close()
			return nil, &errors.NetworkError{Operation: "configure socket", Err: err, Details: "failed to set read buffer size"}
		}
	}

	return &UDPv6Transport{conn: conn, pc: pc}, nil
}

func joinIPv6MulticastAllInterfaces(pc *ipv6.PacketConn) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return &errors.NetworkError{Operation: "enumerate interfaces", Err: err, Details: "failed to get network interfaces for multicast join"}
	}

	group := net.ParseIP(protocol.MulticastAddrIPv6)
	joined := 0
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		ifaceCopy := iface
		if err := pc.JoinGroup(&ifaceCopy, &net.UDPAddr{IP: group}); err != nil {
			continue
		}
		joined++
	}

	if joined == 0 {
		return &errors.NetworkError{Operation: "join multicast group", Err: fmt.Errorf("no interfaces available"), Details: "failed to join ff02::fb on any interface"}
	}
	return nil
}

// Send transmits a packet to the specified destination address.
func (t *UDPv6Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	select {
	case <-ctx.Done():
		return &errors.NetworkError{Operation: "send query", Err: ctx.Err(), Details: "context canceled before send"}
	default:
	}

	n, err := t.conn.WriteTo(packet, dest)
	if err != nil {
		return &errors.NetworkError{Operation: "send query", Err: err, Details: fmt.Sprintf("failed to send %d bytes to %s", len(packet), dest)}
	}

	if n != len(packet) {
		return &errors.NetworkError{Operation: "send query", Err: fmt.Errorf("partial write: %d/%d bytes", n, len(packet)), Details: "incomplete transmission"}
	}

	return nil
}

// Receive waits for an incoming packet, respecting context cancellation/deadline.
func (t *UDPv6Transport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	select {
	case <-ctx.Done():
		return nil, nil, &errors.NetworkError{Operation: "receive response", Err: ctx.Err(), Details: "context canceled before receive"}
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, &errors.NetworkError{Operation: "set read timeout", Err: err, Details: fmt.Sprintf("failed to set deadline %v", deadline)}
		}
	}

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)
	buffer := *bufPtr

	n, srcAddr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, &errors.NetworkError{Operation: "receive response", Err: err, Details: "timeout"}
		}
		return nil, nil, &errors.NetworkError{Operation: "receive response", Err: err, Details: "failed to read from socket"}
	}

	result := make([]byte, n)
	copy(result, buffer[:n])
	return result, srcAddr, nil
}

// Close releases network resources.
func (t *UDPv6Transport) Close() error {
	if t.conn == nil {
		return nil
	}

	if err := t.conn.Close(); err != nil {
		return &errors.NetworkError{Operation: "close socket", Err: err, Details: "failed to close UDP connection"}
	}

	return nil
}

// Compile-time verification that UDPv6Transport implements Transport interface
var _ Transport = (*UDPv6Transport)(nil)
