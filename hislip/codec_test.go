package hislip_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ksugimoto/hislipd/hislip"
)

func TestDecodeHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		h    hislip.Header
	}{
		{"initialize", hislip.Header{Type: hislip.TypeInitialize, ControlCode: 0, Parameter: 0x00010000, PayloadLen: 7}},
		{"data end", hislip.Header{Type: hislip.TypeDataEnd, ControlCode: 1, Parameter: 0x1000, PayloadLen: 0}},
		{"max param", hislip.Header{Type: hislip.TypeAsyncStatusResponse, ControlCode: 0x10, Parameter: 0xFFFFFFFF, PayloadLen: 0xFFFFFFFFFFFFFFFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			encoded := tt.h.Encode()
			if len(encoded) != hislip.HeaderSize {
				t.Fatalf("Encode() len = %d, want %d", len(encoded), hislip.HeaderSize)
			}
			got, err := hislip.DecodeHeader(encoded)
			if err != nil {
				t.Fatalf("DecodeHeader() error = %v", err)
			}
			if got != tt.h {
				t.Errorf("DecodeHeader(Encode(h))\n got  %+v\n want %+v", got, tt.h)
			}
		})
	}
}

func TestDecodeHeaderNeverPanics(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		nil,
		{},
		make([]byte, 15),
		make([]byte, 17),
		{0x58, 0x58, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, // bad prologue
		{'H', 'S', 50, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},  // reserved type
		{'H', 'S', 200, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, // vendor-specific, accepted
	}
	for i, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("input %d: DecodeHeader panicked: %v", i, r)
				}
			}()
			_, _ = hislip.DecodeHeader(in)
		}()
	}
}

func TestDecodeHeaderBadPrologue(t *testing.T) {
	t.Parallel()
	b := []byte{'X', 'x', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := hislip.DecodeHeader(b)
	if !errors.Is(err, hislip.ErrBadPrologue) {
		t.Fatalf("DecodeHeader() error = %v, want ErrBadPrologue", err)
	}
}

func TestDecodeHeaderReservedType(t *testing.T) {
	t.Parallel()
	b := []byte{'H', 'S', 26, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := hislip.DecodeHeader(b)
	if !errors.Is(err, hislip.ErrUnknownType) {
		t.Fatalf("DecodeHeader() error = %v, want ErrUnknownType", err)
	}
}

func TestReadWriteMessageRoundTrip(t *testing.T) {
	t.Parallel()

	msg := hislip.New(hislip.TypeDataEnd, hislip.RMTControl(true), hislip.MessageIDParameter(0x1000), []byte("*IDN?\n"))

	var buf bytes.Buffer
	if err := hislip.WriteMessage(&buf, msg); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	got, err := hislip.ReadMessage(&buf, 1<<20)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got.Header.Type != msg.Header.Type || got.Header.ControlCode != msg.Header.ControlCode ||
		got.Header.Parameter != msg.Header.Parameter || !bytes.Equal(got.Payload, msg.Payload) {
		t.Errorf("ReadMessage(WriteMessage(m))\n got  %+v\n want %+v", got, msg)
	}
}

func TestReadMessageTooLarge(t *testing.T) {
	t.Parallel()

	msg := hislip.New(hislip.TypeData, 0, 0, make([]byte, 100))
	var buf bytes.Buffer
	if err := hislip.WriteMessage(&buf, msg); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	_, err := hislip.ReadMessage(&buf, 50)
	if !errors.Is(err, hislip.ErrMessageTooLarge) {
		t.Fatalf("ReadMessage() error = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadMessageConnectionClosed(t *testing.T) {
	t.Parallel()

	_, err := hislip.ReadMessage(bytes.NewReader(nil), 1<<20)
	if !errors.Is(err, hislip.ErrConnectionClosed) {
		t.Fatalf("ReadMessage() error = %v, want ErrConnectionClosed", err)
	}
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	t.Parallel()

	h := hislip.Header{Type: hislip.TypeData, PayloadLen: 10}
	buf := bytes.NewBuffer(h.Encode())
	buf.Write([]byte("short"))

	_, err := hislip.ReadMessage(buf, 1<<20)
	if !errors.Is(err, hislip.ErrTruncatedPayload) {
		t.Fatalf("ReadMessage() error = %v, want ErrTruncatedPayload", err)
	}
}

func TestTypeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  hislip.Type
		want string
	}{
		{hislip.TypeInitialize, "Initialize"},
		{hislip.TypeAsyncLockInfoResponse, "AsyncLockInfoResponse"},
		{hislip.Type(50), "Reserved"},
		{hislip.Type(200), "VendorSpecific"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestFieldPacking(t *testing.T) {
	t.Parallel()

	v := hislip.Version{Major: 1, Minor: 0}
	vendor := [2]byte{'R', 'S'}
	p := hislip.InitializeParameter(v, vendor)
	gotV, gotVendor := hislip.DecodeInitializeParameter(p)
	if gotV != v || gotVendor != vendor {
		t.Errorf("InitializeParameter round trip: got (%+v, %v), want (%+v, %v)", gotV, gotVendor, v, vendor)
	}

	p2 := hislip.InitializeResponseParameter(v, 1)
	gotV2, gotSession := hislip.DecodeInitializeResponseParameter(p2)
	if gotV2 != v || gotSession != 1 {
		t.Errorf("InitializeResponseParameter round trip: got (%+v, %d), want (%+v, %d)", gotV2, gotSession, v, 1)
	}

	size, err := hislip.DecodeMaxMessageSizePayload(hislip.MaxMessageSizePayload(500_000_000))
	if err != nil || size != 500_000_000 {
		t.Errorf("MaxMessageSizePayload round trip: got (%d, %v), want (500000000, nil)", size, err)
	}
}
