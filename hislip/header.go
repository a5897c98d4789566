package hislip

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed length in bytes of a HiSLIP message header.
const HeaderSize = 16

var prologue = [2]byte{'H', 'S'}

// Sentinel errors returned by the frame codec. Callers use errors.Is to
// classify a failure per the error handling design: protocol violations
// are fatal, transport failures are silent disconnects.
var (
	// ErrBadPrologue is returned when the first two header bytes are not "HS".
	ErrBadPrologue = errors.New("hislip: bad prologue")
	// ErrUnknownType is returned for a type code in the reserved range (26-127).
	ErrUnknownType = errors.New("hislip: unknown message type")
	// ErrMessageTooLarge is returned when payload_len exceeds the configured ceiling.
	ErrMessageTooLarge = errors.New("hislip: message too large")
	// ErrConnectionClosed is returned when the peer closes before a full header arrives.
	ErrConnectionClosed = errors.New("hislip: connection closed")
	// ErrTruncatedPayload is returned when the peer closes mid-payload.
	ErrTruncatedPayload = errors.New("hislip: truncated payload")
)

// Header is the decoded form of a HiSLIP message's fixed 16-byte header.
type Header struct {
	Type       Type
	ControlCode uint8
	Parameter  uint32
	PayloadLen uint64
}

// DecodeHeader validates and decodes a 16-byte header. It never panics: any
// malformed input is reported as a typed error.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("hislip: decode header: need %d bytes, got %d", HeaderSize, len(b))
	}
	if b[0] != prologue[0] || b[1] != prologue[1] {
		return Header{}, ErrBadPrologue
	}
	t := Type(b[2])
	if t.Reserved() {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	return Header{
		Type:        t,
		ControlCode: b[3],
		Parameter:   binary.BigEndian.Uint32(b[4:8]),
		PayloadLen:  binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// Encode writes the header's wire representation into a fresh 16-byte slice.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	b[0], b[1] = prologue[0], prologue[1]
	b[2] = byte(h.Type)
	b[3] = h.ControlCode
	binary.BigEndian.PutUint32(b[4:8], h.Parameter)
	binary.BigEndian.PutUint64(b[8:16], h.PayloadLen)
	return b
}
