package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"github.com/mjansson/mdns-lib/internal/errors"
	"github.com/mjansson/mdns-lib/internal/protocol"
)

// UDPv4Transport implements Transport for IPv4 mDNS multicast.
//
// Binding follows RFC 6762 §5/§6.7: a responder or a listener that wants
// to receive multicast replies binds the fixed mDNS port (5353) and joins
// the multicast group on every up+multicast interface; a one-shot query
// client that only cares about a unicast reply may bind an ephemeral
// port instead, avoiding a conflict with a responder already bound to
// 5353 on the same host.
type UDPv4Transport struct {
	conn net.PacketConn
	pc   *ipv4.PacketConn
}

// NewUDPv4Transport creates a UDPv4Transport. When ephemeralPort is true
// the socket binds an OS-assigned port instead of 5353; the caller is
// then expected to set the QU (unicast-response) bit on outgoing
// questions, since other mDNS listeners bound to 5353 cannot reply to a
// multicast-requesting question on our unbound port.
func NewUDPv4Transport(ephemeralPort bool) (*UDPv4Transport, error) {
	port := protocol.Port
	if ephemeralPort {
		port = 0
	}

	lc := net.ListenConfig{Control: PlatformControl}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind udp4 port %d", port),
		}
	}

	pc := ipv4.NewPacketConn(conn)

	if !ephemeralPort {
		if err := joinIPv4MulticastAllInterfaces(pc); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	if err := pc.SetMulticastTTL(255); err != nil {
		_ = conn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast TTL", Err: err, Details: "failed to set TTL=255"}
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

	return &UDPv4Transport{conn: conn, pc: pc}, nil
}

func joinIPv4MulticastAllInterfaces(pc *ipv4.PacketConn) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return &errors.NetworkError{Operation: "enumerate interfaces", Err: err, Details: "failed to get network interfaces for multicast join"}
	}

	group := net.ParseIP(protocol.MulticastAddrIPv4)
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
		return &errors.NetworkError{Operation: "join multicast group", Err: fmt.Errorf("no interfaces available"), Details: "failed to join 224.0.0.251 on any interface"}
	}
	return nil
}

// Send transmits a packet to the specified destination address.
func (t *UDPv4Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
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
func (t *UDPv4Transport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
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
func (t *UDPv4Transport) Close() error {
	if t.conn == nil {
		return nil
	}

	if err := t.conn.Close(); err != nil {
		return &errors.NetworkError{Operation: "close socket", Err: err, Details: "failed to close UDP connection"}
	}

	return nil
}
