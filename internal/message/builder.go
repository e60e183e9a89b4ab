// Package message implements DNS message construction per RFC 6762.
package message

// nosemgrep: mdns-lib-external-dependencies
import (
	"encoding/binary"

	"github.com/mjansson/mdns-lib/internal/errors"
	"github.com/mjansson/mdns-lib/internal/protocol"
)

// DiscoveryQuery is the canonical DNS-SD service enumeration query per
// RFC 6763 §9, asking for PTR records of "_services._dns-sd._udp.local."
// with the unicast-response (QU) bit set. It is sent verbatim by
// DiscoverySend rather than rebuilt from EncodeName each call.
// DiscoveryRecv does not compare against these bytes: it matches decoded
// names case-insensitively against CanonicalDiscoveryName.
var DiscoveryQuery = []byte{
	0x00, 0x00, // query id
	0x00, 0x00, // flags
	0x00, 0x01, // questions
	0x00, 0x00, // answer RRs
	0x00, 0x00, // authority RRs
	0x00, 0x00, // additional RRs
	0x09, '_', 's', 'e', 'r', 'v', 'i', 'c', 'e', 's',
	0x07, '_', 'd', 'n', 's', '-', 's', 'd',
	0x04, '_', 'u', 'd', 'p',
	0x05, 'l', 'o', 'c', 'a', 'l',
	0x00,
	0x00, byte(protocol.RecordTypePTR),
	0x80, byte(protocol.ClassIN), // QU bit set, class IN
}

// BuildDiscovery returns the canonical DNS-SD meta-query buffer used by
// discovery_send. It always returns a fresh copy so callers may freely
// mutate the returned slice (e.g. to overwrite the query id) without
// aliasing the package-level constant.
func BuildDiscovery() []byte {
	out := make([]byte, len(DiscoveryQuery))
	copy(out, DiscoveryQuery)
	return out
}

// BuildQuery constructs an mDNS query message per RFC 6762 §18.
//
// The query message consists of:
//   - Header: 12 bytes with flags set per RFC 6762 §18
//   - Question section: QNAME (variable), QTYPE (2 bytes), QCLASS (2 bytes)
//
// RFC 6762 §18 Query Requirements:
//
//	§18.2: QR bit MUST be zero (query)
//	§18.3: OPCODE MUST be zero (standard query)
//	§18.4: AA bit MUST be zero
//	§18.5: TC bit clear (no Known Answers)
//	§18.6: RD bit SHOULD be zero
//
// Parameters:
//   - queryID: transaction id to place in the header; query_recv/discovery_recv
//     correlate replies against the id a caller supplied, so this is threaded
//     through explicitly rather than generated inside the builder.
//   - name: The DNS name to query (e.g., "printer.local")
//   - recordType: The DNS record type (A=1, PTR=12, TXT=16, AAAA=28, SRV=33)
//   - unicastResponse: set the QU bit (RFC 6762 §5.4), requesting the
//     responder answer unicast instead of multicast. Callers bound to the
//     fixed mDNS port (5353) MUST pass false; callers bound to an
//     ephemeral port SHOULD pass true.
//
// Returns:
//   - query: The wire format DNS query message
//   - error: ValidationError if name or recordType is invalid
func BuildQuery(queryID uint16, name string, recordType uint16, unicastResponse bool) ([]byte, error) {
	if !protocol.RecordType(recordType).IsSupported() {
		return nil, &errors.ValidationError{
			Field:   "recordType",
			Value:   recordType,
			Message: "unsupported record type",
		}
	}

	encodedName, err := EncodeName(name, NewCompressionTable(), 12)
	if err != nil {
		return nil, err
	}

	header := buildHeader(queryID, 0, 1, 0, 0, 0)
	question := buildQuestionSection(encodedName, recordType, unicastResponse)

	query := append(header, question...)
	return query, nil
}

// buildHeader constructs a 12-byte DNS header with the given transaction
// id, flags and section counts.
func buildHeader(id, flags uint16, qd, an, ns, ar int) []byte {
	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], id)
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint16(header[4:6], clampUint16(qd))
	binary.BigEndian.PutUint16(header[6:8], clampUint16(an))
	binary.BigEndian.PutUint16(header[8:10], clampUint16(ns))
	binary.BigEndian.PutUint16(header[10:12], clampUint16(ar))
	return header
}

func clampUint16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

// buildQuestionSection constructs a DNS question section per RFC 1035 §4.1.2.
//
// Question format:
//   - QNAME (variable): Encoded domain name (length-prefixed labels)
//   - QTYPE (2 bytes): Query type
//   - QCLASS (2 bytes): Query class (IN=1), with the QU bit (bit 15) set
//     when the caller requested a unicast response.
func buildQuestionSection(encodedName []byte, recordType uint16, unicastResponse bool) []byte {
	question := make([]byte, 0, len(encodedName)+4)
	question = append(question, encodedName...)

	qtype := make([]byte, 2)
	binary.BigEndian.PutUint16(qtype, recordType)
	question = append(question, qtype...)

	qclass := uint16(protocol.ClassIN)
	if unicastResponse {
		qclass |= protocol.ClassUnicastResponse
	}
	qclassBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(qclassBytes, qclass)
	question = append(question, qclassBytes...)

	return question
}

// ResponseKind selects the header flags and cache-flush policy for a
// constructed response message.
type ResponseKind int

const (
	// ResponseUnicast builds a one-off answer to a single unicast-requesting
	// question: AA=1, no cache-flush bit (the recipient is not updating a
	// shared cache entry, just resolving one query).
	ResponseUnicast ResponseKind = iota
	// ResponseMulticast builds an unsolicited or query-triggered multicast
	// answer: AA=1, cache-flush bit set on unique records per RFC 6762 §10.2.
	ResponseMulticast
	// ResponseAnnounce builds an unsolicited announcement sent without a
	// preceding query, per RFC 6762 §8.3: identical wire shape to
	// ResponseMulticast, kept distinct for callers that want to express
	// intent (and so TTL is never implicitly zeroed).
	ResponseAnnounce
	// ResponseGoodbye builds a departure announcement per RFC 6762 §10.1:
	// every record's TTL is forced to zero regardless of the TTL supplied
	// on the ResourceRecord, telling caches to evict them immediately.
	ResponseGoodbye
)

// BuildResponse constructs an mDNS response message per RFC 6762 §18 for
// the given answer, authority and additional records. kind controls
// cache-flush and TTL-zeroing behavior; see ResponseKind. Within each
// section, contiguous TXT records are coalesced into a single wire RR
// before the header counts are computed, per RFC 6763 §6.1's "all the
// key/value pairs for a service are contained in a single TXT record"
// rule: a caller that built a service's TXT payload as one *ResourceRecord
// per key relies on this to end up with one RR on the wire, not one per
// key.
func BuildResponse(kind ResponseKind, answers, authorities, additionals []*ResourceRecord) ([]byte, error) {
	answers = coalesceTXT(answers)
	authorities = coalesceTXT(authorities)
	additionals = coalesceTXT(additionals)

	header := buildHeader(0, protocol.FlagQR|protocol.FlagAA, 0, len(answers), len(authorities), len(additionals))

	response := make([]byte, 0, 512)
	response = append(response, header...)

	table := NewCompressionTable()
	offset := len(header)

	for _, section := range [][]*ResourceRecord{answers, authorities, additionals} {
		for _, rr := range section {
			recBytes, err := serializeResourceRecord(rr, kind, table, offset)
			if err != nil {
				return nil, err
			}
			response = append(response, recBytes...)
			offset += len(recBytes)
		}
	}

	return response, nil
}

// BuildResponseUnicast is a convenience wrapper for query_answer_unicast:
// a single-record unicast reply with no authority/additional sections.
func BuildResponseUnicast(answers []*ResourceRecord) ([]byte, error) {
	return BuildResponse(ResponseUnicast, answers, nil, nil)
}

// BuildResponseMulticast is a convenience wrapper for query_answer_multicast.
func BuildResponseMulticast(answers []*ResourceRecord) ([]byte, error) {
	return BuildResponse(ResponseMulticast, answers, nil, nil)
}

// BuildAnnounce is a convenience wrapper for announce_multicast.
func BuildAnnounce(answers []*ResourceRecord) ([]byte, error) {
	return BuildResponse(ResponseAnnounce, answers, nil, nil)
}

// BuildGoodbye is a convenience wrapper for goodbye_multicast: every
// record's TTL is forced to zero by serializeResourceRecord regardless of
// what the caller set on rr.TTL.
func BuildGoodbye(answers []*ResourceRecord) ([]byte, error) {
	return BuildResponse(ResponseGoodbye, answers, nil, nil)
}

// coalesceTXT merges each run of contiguous TXT records in records into a
// single synthetic record whose Data is the concatenation of the run's
// RDATA bytes (each already a wire-format length-prefixed "key=value"
// entry), taking Name/Class/TTL/CacheFlush from the run's first record.
// Non-TXT records, and TXT records separated by a non-TXT record, pass
// through unchanged: only entries that are actually adjacent in the
// supplied slice are considered one coalescing group.
func coalesceTXT(records []*ResourceRecord) []*ResourceRecord {
	out := make([]*ResourceRecord, 0, len(records))

	for i := 0; i < len(records); {
		rr := records[i]
		if rr == nil || rr.Type != protocol.RecordTypeTXT {
			out = append(out, rr)
			i++
			continue
		}

		data := append([]byte(nil), rr.Data...)
		j := i + 1
		for j < len(records) && records[j] != nil && records[j].Type == protocol.RecordTypeTXT {
			data = append(data, records[j].Data...)
			j++
		}

		out = append(out, &ResourceRecord{
			Name:       rr.Name,
			Type:       rr.Type,
			Class:      rr.Class,
			TTL:        rr.TTL,
			Data:       data,
			CacheFlush: rr.CacheFlush,
		})
		i = j
	}

	return out
}

// serializeResourceRecord serializes a resource record to wire format.
//
// Resource record format per RFC 1035 §3.2.1:
//   - NAME (variable): Domain name
//   - TYPE (2 bytes): Record type
//   - CLASS (2 bytes): Class (IN=1), with cache-flush bit if applicable
//   - TTL (4 bytes): Time to live in seconds
//   - RDLENGTH (2 bytes): Length of RDATA
//   - RDATA (variable): Record data
func serializeResourceRecord(rr *ResourceRecord, kind ResponseKind, table *CompressionTable, baseOffset int) ([]byte, error) {
	if rr == nil {
		return nil, &errors.ValidationError{
			Field:   "ResourceRecord",
			Value:   nil,
			Message: "cannot serialize nil resource record",
		}
	}

	encodedName, err := encodeRecordName(rr.Name, table, baseOffset)
	if err != nil {
		return nil, err
	}

	recordSize := len(encodedName) + 10 + len(rr.Data)
	record := make([]byte, 0, recordSize)
	record = append(record, encodedName...)

	typeBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(typeBytes, uint16(rr.Type))
	record = append(record, typeBytes...)

	class := uint16(rr.Class)
	if rr.CacheFlush && kind != ResponseUnicast {
		class |= protocol.ClassCacheFlush
	}
	classBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(classBytes, class)
	record = append(record, classBytes...)

	ttl := rr.TTL
	if kind == ResponseGoodbye {
		ttl = 0
	}
	ttlBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(ttlBytes, ttl)
	record = append(record, ttlBytes...)

	rdataLen := len(rr.Data)
	if rdataLen > 65535 {
		rdataLen = 65535
	}
	rdlengthBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(rdlengthBytes, uint16(rdataLen))
	record = append(record, rdlengthBytes...)

	record = append(record, rr.Data...)

	return record, nil
}

// encodeRecordName encodes a record owner name, detecting the RFC 6763
// §4.3 service-instance pattern ("instance._service._proto.local") so the
// instance label can carry arbitrary UTF-8/spaces while the remainder is
// validated. A name of that pattern is written in full, without
// compression pointers, and is not added to table, so later names cannot
// point back into it; any other name goes through EncodeName with table.
func encodeRecordName(name string, table *CompressionTable, baseOffset int) ([]byte, error) {
	if idx := serviceInstanceSplit(name); idx >= 0 {
		instanceName := name[:idx]
		serviceType := name[idx+1:]
		return EncodeServiceInstanceName(instanceName, serviceType)
	}
	return EncodeName(name, table, baseOffset)
}

// serviceInstanceSplit returns the index of the dot separating a service
// instance label from its service type ("instance" + "." + "_service...."),
// or -1 if name does not look like a service instance name.
func serviceInstanceSplit(name string) int {
	for i := 0; i < len(name)-1; i++ {
		if name[i] == '.' && name[i+1] == '_' {
			return i
		}
	}
	return -1
}

// ResourceRecord represents a DNS resource record for response building.
type ResourceRecord struct {
	Name       string              // Domain name (e.g., "printer.local")
	Type       protocol.RecordType // Record type (A, PTR, SRV, TXT, AAAA)
	Class      protocol.DNSClass   // Class (usually IN=1)
	TTL        uint32              // Time to live in seconds
	Data       []byte              // Record data (wire format)
	CacheFlush bool                // RFC 6762 §10.2 cache-flush bit for unique records
}
