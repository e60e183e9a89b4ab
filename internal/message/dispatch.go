package message

import (
	"fmt"
	"strings"

	"github.com/mjansson/mdns-lib/internal/errors"
	"github.com/mjansson/mdns-lib/internal/protocol"
)

// CanonicalDiscoveryName is the name queried by the DNS-SD service
// enumeration meta-query per RFC 6763 §9.
const CanonicalDiscoveryName = "_services._dns-sd._udp.local"

// discoveryResponseFlags is the exact header flags (QR=1, AA=1) a
// well-formed discovery_recv response must carry; BuildDiscovery always
// sends query id 0 and expects a genuine reply to echo it back unchanged.
const discoveryResponseFlags = protocol.FlagQR | protocol.FlagAA

// ParseDiscoveryResponse implements the discovery_recv receive rules
// (RFC 6763 §9): a packet that is not an authoritative reply to query id 0
// (flags != 0x8400) is rejected outright, since it cannot be a response to
// the meta-query discovery_send transmitted. Within an accepted packet,
// only PTR answers owned by the canonical enumeration name (compared
// case-insensitively) are kept; any other answer a responder appended is
// skipped rather than causing the whole reply to be discarded, and any
// echoed question not for the canonical enumeration name is likewise
// skipped rather than rejecting the packet.
func ParseDiscoveryResponse(msg []byte) (*DNSMessage, error) {
	header, err := ParseHeader(msg)
	if err != nil {
		return nil, err
	}
	if header.ID != 0 || header.Flags != discoveryResponseFlags {
		return nil, &errors.ValidationError{
			Field:   "header",
			Value:   fmt.Sprintf("id=%d flags=0x%04x", header.ID, header.Flags),
			Message: "discovery response requires query id 0 and flags 0x8400",
		}
	}

	m := &DNSMessage{Header: header}
	offset := 12

	walkQuestions(msg, &offset, int(header.QDCount), func(name string, qtype, qclass uint16) {
		if strings.EqualFold(name, CanonicalDiscoveryName) {
			m.Questions = append(m.Questions, Question{QNAME: name, QTYPE: qtype, QCLASS: qclass})
		}
	})
	walkSection(msg, &offset, protocol.EntryTypeAnswer, int(header.ANCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		if protocol.RecordType(rtype) != protocol.RecordTypePTR || !strings.EqualFold(name, CanonicalDiscoveryName) {
			return
		}
		m.Answers = append(m.Answers, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAuthority, int(header.NSCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Authorities = append(m.Authorities, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAdditional, int(header.ARCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Additionals = append(m.Additionals, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})

	return finalizeCounts(m), nil
}

// ParseQueryResponse implements the query_recv receive rules: expectID, if
// non-nil, filters out replies that do not carry the id the caller's
// query_send used, so a response to someone else's outstanding query
// never gets mistaken for one of ours. The echoed question section is
// walked only to keep the section boundaries correct; it is not returned,
// since the caller already knows what it asked and only wants the answer.
func ParseQueryResponse(msg []byte, expectID *uint16) (*DNSMessage, error) {
	header, err := ParseHeader(msg)
	if err != nil {
		return nil, err
	}
	if expectID != nil && header.ID != *expectID {
		return nil, &errors.ValidationError{
			Field:   "header.ID",
			Value:   header.ID,
			Message: fmt.Sprintf("response id does not match expected query id %d", *expectID),
		}
	}

	m := &DNSMessage{Header: header}
	offset := 12

	walkQuestions(msg, &offset, int(header.QDCount), func(string, uint16, uint16) {})
	walkSection(msg, &offset, protocol.EntryTypeAnswer, int(header.ANCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Answers = append(m.Answers, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAuthority, int(header.NSCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Authorities = append(m.Authorities, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAdditional, int(header.ARCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Additionals = append(m.Additionals, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})

	return finalizeCounts(m), nil
}

// ParseServiceQuery implements the service_listen receive rules: the
// class of every question is masked with protocol.ClassMask before
// comparison, since a unicast-response requester leaves that top bit set;
// a question whose masked class is neither IN nor ANY aborts the whole
// packet (a message with zero questions is returned, nothing is
// answered) rather than partially processing it. A question repeating the
// DNS-SD enumeration name is suppressed when the header's flags are
// nonzero: that combination only arises when a host's own multicast
// discovery query loops back to it tagged as part of a reply, not when
// another host is genuinely asking to enumerate services.
func ParseServiceQuery(msg []byte) (*DNSMessage, error) {
	header, err := ParseHeader(msg)
	if err != nil {
		return nil, err
	}

	m := &DNSMessage{Header: header}
	offset := 12
	aborted := false

	walkQuestions(msg, &offset, int(header.QDCount), func(name string, qtype, qclass uint16) {
		if aborted {
			return
		}
		masked := protocol.MaskClass(qclass)
		if masked != uint16(protocol.ClassIN) && masked != uint16(protocol.ClassANY) {
			aborted = true
			return
		}
		if header.Flags != 0 && strings.EqualFold(name, CanonicalDiscoveryName) {
			return
		}
		m.Questions = append(m.Questions, Question{QNAME: name, QTYPE: qtype, QCLASS: qclass})
	})

	if aborted {
		return &DNSMessage{Header: DNSHeader{ID: header.ID, Flags: header.Flags}}, nil
	}

	walkSection(msg, &offset, protocol.EntryTypeAnswer, int(header.ANCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Answers = append(m.Answers, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAuthority, int(header.NSCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Authorities = append(m.Authorities, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAdditional, int(header.ARCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Additionals = append(m.Additionals, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})

	return finalizeCounts(m), nil
}
