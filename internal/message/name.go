// Package message implements DNS name encoding, decoding and compression
// per RFC 1035 §4.1.4.
package message

import (
	"fmt"
	"strings"

	"github.com/mjansson/mdns-lib/internal/errors"
	"github.com/mjansson/mdns-lib/internal/protocol"
)

// ParseName parses a DNS name from a message buffer, handling compression pointers
// per RFC 1035 §4.1.4.
//
// DNS names are encoded as a sequence of labels. Each label is prefixed by a length byte.
// A zero-length label (0x00) terminates the name.
//
// RFC 1035 §4.1.4 defines message compression: labels can be replaced by a pointer
// to a prior occurrence of the same name. A pointer is indicated by the two high-order
// bits being set (0xC0), followed by a 14-bit offset.
//
// This function detects compression loops by limiting the number of pointer jumps
// to protocol.MaxCompressionPointers.
//
//
// Parameters:
//   - msg: The complete DNS message buffer (needed for following compression pointers)
//   - offset: The starting offset of the name in the buffer
//
// Returns:
//   - name: The decompressed DNS name (e.g., "printer.local")
//   - newOffset: The offset immediately after the name (for parsing subsequent fields)
//   - error: WireFormatError if the name is malformed
func ParseName(msg []byte, offset int) (name string, newOffset int, err error) {
	if offset < 0 || offset >= len(msg) {
		return "", offset, &errors.WireFormatError{
			Operation: "parse name",
			Offset:    offset,
			Message:   "offset out of bounds",
		}
	}

	var labels []string
	jumps := 0
	pos := offset
	jumped := false

	for {
		if pos >= len(msg) {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   "unexpected end of message while parsing name",
			}
		}

		length := msg[pos]

		// Check for compression pointer per RFC 1035 §4.1.4
		if (length & protocol.CompressionMask) == protocol.CompressionMask {
			if pos+1 >= len(msg) {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   "truncated compression pointer",
				}
			}

			pointerOffset := int(msg[pos]&0x3F)<<8 | int(msg[pos+1])

			// Pointers must point strictly backwards per RFC 1035 §4.1.4.
			if pointerOffset >= pos {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   fmt.Sprintf("invalid compression pointer: points to offset %d (current position %d)", pointerOffset, pos),
				}
			}

			if !jumped {
				newOffset = pos + 2
				jumped = true
			}

			pos = pointerOffset

			jumps++
			if jumps > protocol.MaxCompressionPointers {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   fmt.Sprintf("too many compression jumps (possible loop, exceeded %d jumps)", protocol.MaxCompressionPointers),
				}
			}

			continue
		}

		if length == 0 {
			if !jumped {
				newOffset = pos + 1
			}
			break
		}

		if length > protocol.MaxLabelLength {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   fmt.Sprintf("label length %d exceeds maximum %d bytes per RFC 1035 §3.1", length, protocol.MaxLabelLength),
			}
		}

		if pos+1+int(length) > len(msg) {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   fmt.Sprintf("truncated label: expected %d bytes, only %d available", length, len(msg)-pos-1),
			}
		}

		label := string(msg[pos+1 : pos+1+int(length)])
		labels = append(labels, label)

		pos += 1 + int(length)
	}

	name = strings.Join(labels, ".")

	if len(name) > protocol.MaxNameLength {
		return "", offset, &errors.WireFormatError{
			Operation: "parse name",
			Offset:    offset,
			Message:   fmt.Sprintf("name length %d exceeds maximum %d bytes per RFC 1035 §3.1", len(name), protocol.MaxNameLength),
		}
	}

	return name, newOffset, nil
}

// SkipName advances past a name without building its string form, used by
// the record dispatcher (records_parse) which only needs the name's wire
// length to find the start of the fixed record fields that follow it.
func SkipName(msg []byte, offset int) (newOffset int, err error) {
	_, newOffset, err = ParseName(msg, offset)
	return newOffset, err
}

// NamesEqual reports whether the name starting at offsetA in bufA is the
// same DNS name as the one starting at offsetB in bufB, comparing
// case-insensitively per the ASCII case-folding rule DNS names use for
// comparison (RFC 1035 §3.1 "case insensitive"). Both buffers may use
// compression; each is independently decompressed and then compared.
//
// This deviates deliberately from a byte-for-byte memcmp comparison: DNS
// name comparison has always been defined as case-insensitive, and two
// otherwise-identical names differing only in letter case must compare
// equal.
func NamesEqual(bufA []byte, offsetA int, bufB []byte, offsetB int) bool {
	nameA, _, errA := ParseName(bufA, offsetA)
	if errA != nil {
		return false
	}
	nameB, _, errB := ParseName(bufB, offsetB)
	if errB != nil {
		return false
	}
	return strings.EqualFold(nameA, nameB)
}

// CompressionTable tracks previously encoded name suffixes and the byte
// offset within the message where they were written, so EncodeName can
// emit a two-byte back-pointer instead of repeating labels already present
// earlier in the message. It holds at most protocol.CompressionTableSize
// entries; once full, the oldest entry is evicted to make room for a new
// one (a bounded ring, not an unbounded cache).
type CompressionTable struct {
	entries []compressionEntry
}

type compressionEntry struct {
	name   string // lowercased full dotted name
	offset int
}

// NewCompressionTable returns an empty compression table ready for use by
// a single outgoing message. Tables are never shared across messages:
// offsets are only valid relative to the buffer currently being built.
func NewCompressionTable() *CompressionTable {
	return &CompressionTable{entries: make([]compressionEntry, 0, protocol.CompressionTableSize)}
}

// lookup returns the offset of the longest previously recorded suffix of
// name, plus the leading labels of name (lower-cased) that must still be
// written literally before the pointer. ok is false if no suffix matched.
func (t *CompressionTable) lookup(name string) (offset int, literalLabels []string, ok bool) {
	if t == nil || name == "" {
		return 0, nil, false
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for start := 0; start < len(labels); start++ {
		suffix := strings.Join(labels[start:], ".")
		for i := len(t.entries) - 1; i >= 0; i-- {
			if t.entries[i].name == suffix {
				return t.entries[i].offset, labels[:start], true
			}
		}
	}
	return 0, nil, false
}

// add records that name (in full, not just a suffix) begins at offset in
// the message under construction, evicting the oldest entry if the table
// is already at capacity.
func (t *CompressionTable) add(name string, offset int) {
	if t == nil || offset > protocol.MaxCompressionOffset {
		return
	}
	lower := strings.ToLower(name)
	if len(t.entries) >= protocol.CompressionTableSize {
		t.entries = t.entries[1:]
	}
	t.entries = append(t.entries, compressionEntry{name: lower, offset: offset})
}

// EncodeName encodes a DNS name into wire format per RFC 1035 §3.1.
//
// The name is split into labels (separated by dots), and each label is
// prefixed by its length byte. A zero-length label (0x00) terminates the
// name.
//
// If table is non-nil, EncodeName looks for the longest suffix of name
// already written earlier in the message (tracked in table) and, when
// found, emits only the unmatched leading labels followed by a two-byte
// compression pointer instead of repeating the matched suffix. Every
// label written is recorded in table at its resulting offset (baseOffset
// + the label's position within the returned bytes) so later calls can
// point back into it.
//
// Parameters:
//   - name: The DNS name to encode (e.g., "printer.local")
//   - table: compression table for the message being built, or nil to
//     disable compression
//   - baseOffset: the offset within the full message buffer at which the
//     returned bytes will be written
//
// Returns:
//   - encoded: The wire format representation
//   - error: ValidationError if the name is invalid
func EncodeName(name string, table *CompressionTable, baseOffset int) ([]byte, error) {
	if name == "" || name == "." {
		return []byte{0}, nil
	}

	labels := strings.Split(name, ".")
	if len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}

	for _, label := range labels {
		if err := validateLabel(name, label); err != nil {
			return nil, err
		}
	}

	pointerOffset, literalLabels, hasPointer := table.lookup(name)

	encodeLabels := labels
	if hasPointer {
		encodeLabels = literalLabels
	}

	encoded := make([]byte, 0, protocol.MaxNameLength)
	pos := baseOffset
	// Record a compression entry for every suffix starting at each label
	// boundary so a later, unrelated name sharing only a tail (e.g. the
	// same ".local" domain) can still point into this one.
	for i, label := range encodeLabels {
		suffix := strings.Join(labels[i:], ".")
		table.add(suffix, pos)
		encoded = append(encoded, byte(len(label)))
		encoded = append(encoded, []byte(label)...)
		pos += 1 + len(label)
	}

	if hasPointer {
		encoded = append(encoded, protocol.CompressionMask|byte(pointerOffset>>8), byte(pointerOffset&0xFF))
	} else {
		encoded = append(encoded, 0)
	}

	if len(encoded) > protocol.MaxNameLength {
		return nil, &errors.ValidationError{
			Field:   "name",
			Value:   name,
			Message: fmt.Sprintf("encoded name length %d exceeds maximum %d bytes per RFC 1035 §3.1", len(encoded), protocol.MaxNameLength),
		}
	}

	return encoded, nil
}

func validateLabel(name, label string) error {
	if len(label) == 0 {
		return &errors.ValidationError{
			Field:   "name",
			Value:   name,
			Message: "empty label (consecutive dots)",
		}
	}

	if len(label) > protocol.MaxLabelLength {
		return &errors.ValidationError{
			Field:   "name",
			Value:   name,
			Message: fmt.Sprintf("label %q exceeds maximum length %d bytes per RFC 1035 §3.1", label, protocol.MaxLabelLength),
		}
	}

	for i, ch := range label {
		valid := (ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' ||
			ch == '_'

		if !valid {
			return &errors.ValidationError{
				Field:   "name",
				Value:   name,
				Message: fmt.Sprintf("invalid character %q in label %q (position %d)", ch, label, i),
			}
		}

		if ch == '-' && (i == 0 || i == len(label)-1) {
			return &errors.ValidationError{
				Field:   "name",
				Value:   name,
				Message: fmt.Sprintf("hyphen cannot be first or last character in label %q", label),
			}
		}
	}

	return nil
}

// EncodeServiceInstanceName encodes a service instance name per RFC 6763 §4.3.
//
// RFC 6763 §4.3: Service instance names use length-prefixed labels where the instance
// portion is a SINGLE label that can contain arbitrary UTF-8 characters including spaces.
//
// Example: "My Printer._http._tcp.local" is encoded as:
//
//	[10]My Printer[5]_http[4]_tcp[5]local[0]
//
// Parameters:
//   - instanceName: User-friendly instance name (can contain spaces, UTF-8)
//   - serviceType: Service type (e.g., "_http._tcp.local")
//
// Returns: Fully encoded DNS name (instance.servicetype)
func EncodeServiceInstanceName(instanceName, serviceType string) ([]byte, error) {
	if len(instanceName) == 0 {
		return nil, &errors.ValidationError{
			Field:   "instanceName",
			Value:   instanceName,
			Message: "instance name cannot be empty",
		}
	}

	if len(instanceName) > protocol.MaxLabelLength {
		return nil, &errors.ValidationError{
			Field:   "instanceName",
			Value:   instanceName,
			Message: fmt.Sprintf("instance name exceeds maximum label length %d bytes", protocol.MaxLabelLength),
		}
	}

	encoded := make([]byte, 0, protocol.MaxNameLength)
	encoded = append(encoded, byte(len(instanceName)))
	encoded = append(encoded, []byte(instanceName)...)

	// Service type is encoded without compression: instance names are
	// rarely repeated verbatim elsewhere in the same message, so a table
	// lookup would not pay for itself here.
	serviceTypeEncoded, err := EncodeName(serviceType, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("encoding service type: %w", err)
	}

	if len(serviceTypeEncoded) > 0 && serviceTypeEncoded[len(serviceTypeEncoded)-1] == 0 {
		serviceTypeEncoded = serviceTypeEncoded[:len(serviceTypeEncoded)-1]
	}

	encoded = append(encoded, serviceTypeEncoded...)
	encoded = append(encoded, 0)

	return encoded, nil
}
