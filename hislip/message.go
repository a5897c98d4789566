package hislip

import (
	"fmt"
	"io"
)

// Message is a fully decoded HiSLIP frame: header plus payload bytes.
type Message struct {
	Header  Header
	Payload []byte
}

// ReadMessage reads one complete message from r. maxPayload bounds
// payload_len (the session's negotiated max_message_size, or the server's
// pre-negotiation ceiling); exceeding it fails with ErrMessageTooLarge and
// the caller must terminate the connection without reading the payload.
func ReadMessage(r io.Reader, maxPayload uint64) (Message, error) {
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Message{}, ErrConnectionClosed
		}
		return Message{}, fmt.Errorf("hislip: read header: %w", err)
	}

	h, err := DecodeHeader(hb[:])
	if err != nil {
		return Message{}, err
	}

	if h.PayloadLen > maxPayload {
		return Message{}, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, h.PayloadLen, maxPayload)
	}

	var payload []byte
	if h.PayloadLen > 0 {
		payload = make([]byte, h.PayloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return Message{}, ErrTruncatedPayload
			}
			return Message{}, fmt.Errorf("hislip: read payload: %w", err)
		}
	}

	return Message{Header: h, Payload: payload}, nil
}

// WriteMessage encodes m as one contiguous byte sequence and writes it to w.
func WriteMessage(w io.Writer, m Message) error {
	h := m.Header
	h.PayloadLen = uint64(len(m.Payload))
	buf := make([]byte, 0, HeaderSize+len(m.Payload))
	buf = append(buf, h.Encode()...)
	buf = append(buf, m.Payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("hislip: write message: %w", err)
	}
	return nil
}

// New builds a Message with the given type, control code, parameter, and
// payload. It is infallible: callers are responsible for field widths
// (the 4-byte parameter and 8-byte payload length are always representable
// from Go's uint32/uint64, so there is nothing here to validate).
func New(t Type, ctrl uint8, parameter uint32, payload []byte) Message {
	return Message{
		Header: Header{
			Type:        t,
			ControlCode: ctrl,
			Parameter:   parameter,
			PayloadLen:  uint64(len(payload)),
		},
		Payload: payload,
	}
}
