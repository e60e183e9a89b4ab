// Package message implements DNS message parsing per RFC 1035.
package message

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/mjansson/mdns-lib/internal/errors"
	"github.com/mjansson/mdns-lib/internal/protocol"
)

// SRVData represents SRV record data per RFC 2782.
//
// SRV records provide the location of services (hostname and port).
type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

// ParseMessage parses a complete DNS message from wire format per RFC 1035 §4.1.
//
// The message consists of:
//   - Header: 12 bytes (always present)
//   - Question section: Variable length (QDCOUNT entries)
//   - Answer section: Variable length (ANCOUNT entries)
//   - Authority section: Variable length (NSCOUNT entries)
//   - Additional section: Variable length (ARCOUNT entries)
//
// A malformed header rejects the whole datagram (nil, err): there is no
// reliable way to locate the sections that follow it. A bounds violation
// while parsing a question or record, by contrast, only abandons that
// record and whatever follows it in the same buffer: the sections parsed
// up to that point are real, already-delivered data and are returned with
// a nil error and the header's counts adjusted to match what is actually
// present, rather than being discarded along with the bad trailing bytes.
//
func ParseMessage(msg []byte) (*DNSMessage, error) {
	header, err := ParseHeader(msg)
	if err != nil {
		return nil, err
	}

	m := &DNSMessage{Header: header}
	offset := 12 // Header is always 12 bytes

	walkQuestions(msg, &offset, int(header.QDCount), func(name string, qtype, qclass uint16) {
		m.Questions = append(m.Questions, Question{QNAME: name, QTYPE: qtype, QCLASS: qclass})
	})
	walkSection(msg, &offset, protocol.EntryTypeAnswer, int(header.ANCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Answers = append(m.Answers, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAuthority, int(header.NSCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Authorities = append(m.Authorities, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})
	walkSection(msg, &offset, protocol.EntryTypeAdditional, int(header.ARCount), func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int) {
		m.Additionals = append(m.Additionals, buildAnswer(msg, name, rtype, class, ttl, rdataOffset, length))
	})

	finalizeCounts(m)
	return m, nil
}

// finalizeCounts sets the header section counts to the number of entries
// actually present, so a partially parsed message never claims more
// records than it carries.
func finalizeCounts(m *DNSMessage) *DNSMessage {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authorities))
	m.Header.ARCount = uint16(len(m.Additionals))
	return m
}

// buildAnswer copies a record's RDATA out of msg into a standalone Answer,
// the same shape ParseAnswer produces.
func buildAnswer(msg []byte, name string, rtype, class uint16, ttl uint32, rdataOffset, length int) Answer {
	rdata := make([]byte, length)
	copy(rdata, msg[rdataOffset:rdataOffset+length])
	return Answer{
		NAME:        name,
		TYPE:        rtype,
		CLASS:       class,
		TTL:         ttl,
		RDLENGTH:    uint16(length), //nolint:gosec // length is bounds-checked by ParseRecords against the 16-bit RDLENGTH it was read from
		RDATA:       rdata,
		RDATAOffset: rdataOffset,
	}
}

// walkSection calls ParseRecords one record at a time so each record's
// owner name can be recovered (ParseRecords itself reports only the
// type-specific fields, by design, since the record dispatcher it
// implements never needs the name text). Calling it with count=1 in a loop
// preserves its abandon-on-error contract at the granularity of a single
// record: the first record a short buffer can't fit stops the walk, and
// every record delivered to onRecord before that stands.
func walkSection(msg []byte, offset *int, entryType protocol.EntryType, count int, onRecord func(name string, rtype, class uint16, ttl uint32, rdataOffset, length int)) {
	for i := 0; i < count; i++ {
		recordStart := *offset
		parsed, err := ParseRecords(msg, offset, entryType, 1, func(_ protocol.EntryType, rtype, class uint16, ttl uint32, buf []byte, rdataOffset, length int) bool {
			name, _, nameErr := ParseName(buf, recordStart)
			if nameErr != nil {
				return false
			}
			onRecord(name, rtype, class, ttl, rdataOffset, length)
			return false
		})
		if err != nil || parsed == 0 {
			return
		}
	}
}

// walkQuestions mirrors walkSection for the question section, whose fixed
// footer (QTYPE/QCLASS, 4 bytes) differs from a record's (TYPE/CLASS/TTL/
// RDLENGTH, 10 bytes), so it cannot share ParseRecords directly.
func walkQuestions(msg []byte, offset *int, count int, onQuestion func(name string, qtype, qclass uint16)) {
	for i := 0; i < count; i++ {
		q, newOffset, err := ParseQuestion(msg, *offset)
		if err != nil {
			return
		}
		*offset = newOffset
		onQuestion(q.QNAME, q.QTYPE, q.QCLASS)
	}
}

// ParseHeader parses the DNS message header per RFC 1035 §4.1.1.
//
// Header format (12 bytes):
//   - ID (2 bytes): Transaction ID
//   - Flags (2 bytes): QR, OPCODE, AA, TC, RD, RA, Z, RCODE
//   - QDCOUNT (2 bytes): Number of questions
//   - ANCOUNT (2 bytes): Number of answers
//   - NSCOUNT (2 bytes): Number of authority records
//   - ARCOUNT (2 bytes): Number of additional records
//
//
// Parameters:
//   - msg: The complete DNS message buffer (must be at least 12 bytes)
//
// Returns:
//   - header: The parsed DNS header
//   - error: WireFormatError if the header is malformed
func ParseHeader(msg []byte) (DNSHeader, error) {
	if len(msg) < 12 {
		return DNSHeader{}, &errors.WireFormatError{
			Operation: "parse header",
			Offset:    0,
			Message:   fmt.Sprintf("message too short for header: %d bytes, expected at least 12", len(msg)),
		}
	}

	header := DNSHeader{
		ID:      binary.BigEndian.Uint16(msg[0:2]),
		Flags:   binary.BigEndian.Uint16(msg[2:4]),
		QDCount: binary.BigEndian.Uint16(msg[4:6]),
		ANCount: binary.BigEndian.Uint16(msg[6:8]),
		NSCount: binary.BigEndian.Uint16(msg[8:10]),
		ARCount: binary.BigEndian.Uint16(msg[10:12]),
	}

	return header, nil
}

// ParseQuestion parses a DNS question section entry per RFC 1035 §4.1.2.
//
// Question format:
//   - QNAME (variable): Domain name (label-encoded, can be compressed)
//   - QTYPE (2 bytes): Query type
//   - QCLASS (2 bytes): Query class
//
//
// Parameters:
//   - msg: The complete DNS message buffer
//   - offset: The starting offset of this question entry
//
// Returns:
//   - question: The parsed question
//   - newOffset: The offset immediately after this question entry
//   - error: WireFormatError if the question is malformed
func ParseQuestion(msg []byte, offset int) (Question, int, error) {
	// Parse QNAME
	qname, newOffset, err := ParseName(msg, offset)
	if err != nil {
		return Question{}, offset, err
	}

	// Check bounds for QTYPE and QCLASS (4 bytes)
	if newOffset+4 > len(msg) {
		return Question{}, offset, &errors.WireFormatError{
			Operation: "parse question",
			Offset:    newOffset,
			Message:   "truncated question: not enough bytes for QTYPE and QCLASS",
		}
	}

	// Parse QTYPE
	qtype := binary.BigEndian.Uint16(msg[newOffset : newOffset+2])

	// Parse QCLASS
	qclass := binary.BigEndian.Uint16(msg[newOffset+2 : newOffset+4])

	question := Question{
		QNAME:  qname,
		QTYPE:  qtype,
		QCLASS: qclass,
	}

	return question, newOffset + 4, nil
}

// ParseAnswer parses a DNS answer/authority/additional section entry per RFC 1035 §4.1.3.
//
// Answer format:
//   - NAME (variable): Domain name (label-encoded, can be compressed)
//   - TYPE (2 bytes): Record type
//   - CLASS (2 bytes): Record class
//   - TTL (4 bytes): Time-to-live
//   - RDLENGTH (2 bytes): Resource data length
//   - RDATA (variable): Resource data (RDLENGTH bytes)
//
//
// Parameters:
//   - msg: The complete DNS message buffer
//   - offset: The starting offset of this answer entry
//
// Returns:
//   - answer: The parsed answer
//   - newOffset: The offset immediately after this answer entry
//   - error: WireFormatError if the answer is malformed
func ParseAnswer(msg []byte, offset int) (Answer, int, error) {
	// Parse NAME
	name, newOffset, err := ParseName(msg, offset)
	if err != nil {
		return Answer{}, offset, err
	}

	// Check bounds for TYPE, CLASS, TTL, RDLENGTH (10 bytes)
	if newOffset+10 > len(msg) {
		return Answer{}, offset, &errors.WireFormatError{
			Operation: "parse answer",
			Offset:    newOffset,
			Message:   "truncated answer: not enough bytes for fixed fields",
		}
	}

	// Parse TYPE
	rtype := binary.BigEndian.Uint16(msg[newOffset : newOffset+2])

	// Parse CLASS
	class := binary.BigEndian.Uint16(msg[newOffset+2 : newOffset+4])

	// Parse TTL
	ttl := binary.BigEndian.Uint32(msg[newOffset+4 : newOffset+8])

	// Parse RDLENGTH
	rdlength := binary.BigEndian.Uint16(msg[newOffset+8 : newOffset+10])

	newOffset += 10

	// Check bounds for RDATA
	if newOffset+int(rdlength) > len(msg) {
		return Answer{}, offset, &errors.WireFormatError{
			Operation: "parse answer",
			Offset:    newOffset,
			Message:   fmt.Sprintf("truncated RDATA: expected %d bytes, only %d available", rdlength, len(msg)-newOffset),
		}
	}

	// Extract RDATA
	rdata := make([]byte, rdlength)
	copy(rdata, msg[newOffset:newOffset+int(rdlength)])

	answer := Answer{
		NAME:        name,
		TYPE:        rtype,
		CLASS:       class,
		TTL:         ttl,
		RDLENGTH:    rdlength,
		RDATA:       rdata,
		RDATAOffset: newOffset,
	}

	return answer, newOffset + int(rdlength), nil
}

// RecordCallback is invoked once per parsed resource record by
// ParseRecords, mirroring the records_parse dispatch contract: it
// receives offsets into the original message buffer rather than copied
// sub-slices, so it can lazily decode only the fields it needs. Returning
// true tells ParseRecords to stop invoking the callback for the remaining
// records of that ParseRecords call; byte offsets continue to be advanced
// regardless so framing of any trailing sections is preserved. The stop
// does not carry over to another ParseRecords call on the same message:
// each call starts with the callback enabled.
type RecordCallback func(entryType protocol.EntryType, rtype uint16, class uint16, ttl uint32, msg []byte, offset int, length int) (stop bool)

// ParseRecords walks `count` resource records starting at *offset within
// msg, classifying them as entryType, and invokes callback for each one
// until either all records are consumed or the callback returns true. It
// always advances *offset through every record regardless of when the
// callback stops, exactly matching mdns_records_parse's "do_callback"
// flag: once false, parsing keeps going but the callback is no longer
// called. Returns the number of records the callback was actually
// invoked for.
func ParseRecords(msg []byte, offset *int, entryType protocol.EntryType, count int, callback RecordCallback) (int, error) {
	parsed := 0
	doCallback := true

	for i := 0; i < count; i++ {
		newOffset, err := SkipName(msg, *offset)
		if err != nil {
			return parsed, err
		}

		if newOffset+10 > len(msg) {
			return parsed, &errors.WireFormatError{
				Operation: "parse records",
				Offset:    newOffset,
				Message:   "truncated record: not enough bytes for fixed fields",
			}
		}

		rtype := binary.BigEndian.Uint16(msg[newOffset : newOffset+2])
		rclass := binary.BigEndian.Uint16(msg[newOffset+2 : newOffset+4])
		ttl := binary.BigEndian.Uint32(msg[newOffset+4 : newOffset+8])
		length := int(binary.BigEndian.Uint16(msg[newOffset+8 : newOffset+10]))

		newOffset += 10

		if newOffset+length > len(msg) {
			return parsed, &errors.WireFormatError{
				Operation: "parse records",
				Offset:    newOffset,
				Message:   fmt.Sprintf("truncated RDATA: expected %d bytes, only %d available", length, len(msg)-newOffset),
			}
		}

		if doCallback {
			parsed++
			if callback(entryType, rtype, rclass, ttl, msg, newOffset, length) {
				doCallback = false
			}
		}

		*offset = newOffset + length
	}

	return parsed, nil
}

// TXTRecord is a single parsed TXT key/value pair per RFC 6763 §6.4. Value
// is nil (not empty) when nothing follows the "=" separator; entries with
// no "=" at all are skipped by the parser and never produce a TXTRecord.
type TXTRecord struct {
	Key   string
	Value []byte
}

// ParseRDATAAt parses type-specific RDATA into Go types per RFC 1035,
// decoding directly against the full message buffer at an absolute
// offset rather than a copied RDATA sub-slice. This matters for PTR and
// SRV records: their target name may use a compression pointer back to
// labels earlier in the message, outside the byte range RDATA alone
// would cover, so they must be decoded against the buffer the record
// actually lives in (mirroring mdns_record_parse_ptr/mdns_record_parse_srv,
// which both take the full buffer and an absolute offset).
//
// Parameters:
//   - msg: the complete message buffer the record was parsed from
//   - recordType: the DNS record type (A, AAAA, PTR, SRV, TXT)
//   - offset: absolute offset of RDATA within msg
//   - length: RDLENGTH, the number of RDATA bytes
//
// Returns:
//   - parsed: Type-specific parsed data (net.IP, string, []TXTRecord, or SRVData)
//   - error: WireFormatError if RDATA is malformed
func ParseRDATAAt(msg []byte, recordType uint16, offset, length int) (interface{}, error) {
	if offset < 0 || offset+length > len(msg) {
		return nil, &errors.WireFormatError{
			Operation: "parse RDATA",
			Offset:    offset,
			Message:   "RDATA extends beyond message buffer",
		}
	}

	switch protocol.RecordType(recordType) {
	case protocol.RecordTypeA:
		if length != 4 {
			return nil, &errors.WireFormatError{
				Operation: "parse A record",
				Offset:    offset,
				Message:   fmt.Sprintf("invalid A record length: %d bytes, expected 4", length),
			}
		}
		return net.IPv4(msg[offset], msg[offset+1], msg[offset+2], msg[offset+3]), nil

	case protocol.RecordTypeAAAA:
		if length != 16 {
			return nil, &errors.WireFormatError{
				Operation: "parse AAAA record",
				Offset:    offset,
				Message:   fmt.Sprintf("invalid AAAA record length: %d bytes, expected 16", length),
			}
		}
		ip := make(net.IP, 16)
		copy(ip, msg[offset:offset+16])
		return ip, nil

	case protocol.RecordTypePTR:
		if length < 2 {
			return "", nil
		}
		name, _, err := ParseName(msg, offset)
		if err != nil {
			return nil, err
		}
		return name, nil

	case protocol.RecordTypeTXT:
		return parseTXT(msg, offset, length)

	case protocol.RecordTypeSRV:
		if length < 8 {
			return nil, &errors.WireFormatError{
				Operation: "parse SRV record",
				Offset:    offset,
				Message:   fmt.Sprintf("truncated SRV record: %d bytes, expected at least 8", length),
			}
		}

		priority := binary.BigEndian.Uint16(msg[offset : offset+2])
		weight := binary.BigEndian.Uint16(msg[offset+2 : offset+4])
		port := binary.BigEndian.Uint16(msg[offset+4 : offset+6])

		target, _, err := ParseName(msg, offset+6)
		if err != nil {
			return nil, err
		}

		return SRVData{
			Priority: priority,
			Weight:   weight,
			Port:     port,
			Target:   target,
		}, nil

	default:
		return nil, &errors.WireFormatError{
			Operation: "parse RDATA",
			Offset:    offset,
			Message:   fmt.Sprintf("unsupported record type: %d", recordType),
		}
	}
}

// parseTXT decodes length-prefixed "key=value" strings per RFC 6763 §6.4.
//
// Ported from mdns_record_parse_txt: a substring is skipped entirely
// (not an error) when no '=' is found among its printable-ASCII prefix,
// including when the substring's first byte is '=' itself (an empty
// key, treated as "no separator found").
func parseTXT(msg []byte, offset, length int) ([]TXTRecord, error) {
	var out []TXTRecord
	end := offset + length
	if end > len(msg) {
		end = len(msg)
	}

	for offset < end {
		sublength := int(msg[offset])
		strStart := offset + 1
		offset += 1 + sublength

		if strStart+sublength > len(msg) {
			break
		}

		separator := -1
		for c := 0; c < sublength; c++ {
			ch := msg[strStart+c]
			if ch < 0x20 || ch > 0x7E {
				break
			}
			if ch == '=' {
				separator = c
				break
			}
		}

		if separator <= 0 {
			continue
		}

		key := string(msg[strStart : strStart+separator])
		var value []byte
		if separator < sublength {
			value = append([]byte(nil), msg[strStart+separator+1:strStart+sublength]...)
		}
		out = append(out, TXTRecord{Key: key, Value: value})
	}

	return out, nil
}

// ParseRDATA parses type-specific RDATA from a standalone copied RDATA
// slice (e.g. Answer.RDATA). It is only correct for record types whose
// payload never references another name via a compression pointer (A,
// AAAA, TXT); PTR and SRV targets may point outside the slice's own byte
// range and MUST be parsed with ParseRDATAAt against the original message
// buffer and Answer.RDATAOffset instead.
func ParseRDATA(recordType uint16, rdata []byte) (interface{}, error) {
	switch protocol.RecordType(recordType) {
	case protocol.RecordTypePTR, protocol.RecordTypeSRV:
		return ParseRDATAAt(rdata, recordType, 0, len(rdata))
	default:
		return ParseRDATAAt(rdata, recordType, 0, len(rdata))
	}
}
