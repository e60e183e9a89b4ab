// Package mdns implements the multicast DNS / DNS-based service discovery
// wire protocol (RFC 6762, RFC 6763). Socket is the core primitive: one
// bound multicast UDP socket plus the individual RFC 6762 §5-§10
// send/receive/build operations (discovery, query, service listen,
// announce, goodbye).
package mdns

import (
	"context"
	goerrors "errors"
	"log/slog"
	"net"

	"github.com/mjansson/mdns-lib/internal/errors"
	"github.com/mjansson/mdns-lib/internal/message"
	"github.com/mjansson/mdns-lib/internal/protocol"
	"github.com/mjansson/mdns-lib/internal/transport"
)

// Socket is a bound mDNS multicast socket for one address family.
type Socket struct {
	transport transport.Transport
	addr      *net.UDPAddr
	logger    *slog.Logger
}

// Option configures a Socket at bind time.
type Option func(*socketConfig)

type socketConfig struct {
	ipv6          bool
	ephemeralPort bool
	logger        *slog.Logger
}

// WithIPv6 binds the ff02::fb group instead of 224.0.0.251.
func WithIPv6() Option {
	return func(c *socketConfig) { c.ipv6 = true }
}

// WithEphemeralPort binds an OS-assigned port instead of 5353. Use this
// for a one-shot query_send/query_recv client that only needs unicast
// replies; a service_listen responder must bind 5353 to receive
// multicast questions from other hosts.
func WithEphemeralPort() Option {
	return func(c *socketConfig) { c.ephemeralPort = true }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *socketConfig) { c.logger = logger }
}

// Bind creates and joins a multicast mDNS socket (socket_bind).
func Bind(opts ...Option) (*Socket, error) {
	cfg := &socketConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	var tr transport.Transport
	var addr *net.UDPAddr
	var err error

	if cfg.ipv6 {
		tr, err = transport.NewUDPv6Transport(cfg.ephemeralPort)
		addr = protocol.MulticastGroupIPv6()
	} else {
		tr, err = transport.NewUDPv4Transport(cfg.ephemeralPort)
		addr = protocol.MulticastGroupIPv4()
	}
	if err != nil {
		return nil, err
	}

	cfg.logger.Info("mdns socket bound", "family", familyName(cfg.ipv6), "ephemeral_port", cfg.ephemeralPort, "group", addr.String())

	return &Socket{transport: tr, addr: addr, logger: cfg.logger}, nil
}

func familyName(ipv6 bool) string {
	if ipv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Close releases the underlying socket.
func (s *Socket) Close() error {
	return s.transport.Close()
}

// DiscoverySend transmits the canonical DNS-SD "_services._dns-sd._udp.local"
// PTR meta-query (discovery_send, RFC 6763 §9).
func (s *Socket) DiscoverySend(ctx context.Context) error {
	return s.transport.Send(ctx, message.BuildDiscovery(), s.addr)
}

// DiscoveryRecv blocks for the next incoming packet and parses it as a
// discovery response (discovery_recv): the packet is rejected unless it
// carries query id 0 and flags 0x8400 (an authoritative reply to the
// meta-query discovery_send sent), and only PTR answers under
// "_services._dns-sd._udp.local" survive into the returned message.
func (s *Socket) DiscoveryRecv(ctx context.Context) (*message.DNSMessage, net.Addr, error) {
	raw, src, err := s.transport.Receive(ctx)
	if err != nil {
		return nil, nil, err
	}
	msg, err := message.ParseDiscoveryResponse(raw)
	if err != nil {
		return nil, src, err
	}
	return msg, src, nil
}

// QuerySend builds and transmits a single-question query (query_send).
// unicastResponse sets the QU bit, requesting a unicast reply; a socket
// bound to an ephemeral port should always set this, since other mDNS
// listeners on 5353 cannot multicast a reply back to an unbound port.
func (s *Socket) QuerySend(ctx context.Context, queryID uint16, name string, recordType uint16, unicastResponse bool) error {
	queryMsg, err := message.BuildQuery(queryID, name, recordType, unicastResponse)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, queryMsg, s.addr)
}

// QueryRecv blocks for the next incoming packet and parses it as a query
// response (query_recv). expectID, if non-nil, rejects replies that don't
// carry the id the corresponding QuerySend call used; pass nil to accept
// a response with any id.
func (s *Socket) QueryRecv(ctx context.Context, expectID *uint16) (*message.DNSMessage, net.Addr, error) {
	raw, src, err := s.transport.Receive(ctx)
	if err != nil {
		return nil, nil, err
	}
	msg, err := message.ParseQueryResponse(raw, expectID)
	if err != nil {
		return nil, src, err
	}
	return msg, src, nil
}

// QueryHandler is invoked by ServiceListen for each incoming question.
type QueryHandler func(ctx context.Context, query *message.DNSMessage, src net.Addr)

// ServiceListen runs the responder receive loop (service_listen): it
// blocks receiving packets, classifies each one per the service_listen
// rules (class masking, IN/ANY acceptance, meta-question suppression) via
// message.ParseServiceQuery, and invokes handler for the result, until ctx
// is canceled. A packet whose questions fail the class check yields a
// handler call with zero questions rather than being skipped outright, so
// the handler sees every received packet with a readable 12-byte header
// exactly once; a shorter packet, or a receive that fails with a
// NetworkError, is skipped without a handler call.
func (s *Socket) ServiceListen(ctx context.Context, handler QueryHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, src, err := s.transport.Receive(ctx)
		if err != nil {
			var netErr *errors.NetworkError
			if goerrors.As(err, &netErr) {
				continue
			}
			return err
		}

		msg, err := message.ParseServiceQuery(raw)
		if err != nil {
			continue
		}
		handler(ctx, msg, src)
	}
}

// QueryAnswerUnicast sends a unicast response directly to the querying
// host (query_answer_unicast, used when the question's QU bit was set).
func (s *Socket) QueryAnswerUnicast(ctx context.Context, dest net.Addr, answers []*message.ResourceRecord) error {
	resp, err := message.BuildResponseUnicast(answers)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, resp, dest)
}

// QueryAnswerMulticast sends a multicast response to the mDNS group
// (query_answer_multicast, used for shared/cache-flush answers that
// benefit every listener on the link).
func (s *Socket) QueryAnswerMulticast(ctx context.Context, answers []*message.ResourceRecord) error {
	resp, err := message.BuildResponseMulticast(answers)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, resp, s.addr)
}

// AnnounceMulticast sends an unsolicited multicast announcement
// (announce_multicast, RFC 6762 §8.3). RFC 6762 §8.3 recommends sending
// it twice, one second apart; callers that want that sequencing call this
// method twice with a one-second sleep between, since the spacing is a
// caller-level concern rather than something AnnounceMulticast imposes.
func (s *Socket) AnnounceMulticast(ctx context.Context, answers []*message.ResourceRecord) error {
	msg, err := message.BuildAnnounce(answers)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, msg, s.addr)
}

// GoodbyeMulticast sends a departing announcement with TTL=0
// (goodbye_multicast, RFC 6762 §10.1), telling other hosts to flush the
// given records from cache immediately.
func (s *Socket) GoodbyeMulticast(ctx context.Context, answers []*message.ResourceRecord) error {
	msg, err := message.BuildGoodbye(answers)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, msg, s.addr)
}
