package server_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/ksugimoto/hislipd/conn"
	"github.com/ksugimoto/hislipd/hislip"
	"github.com/ksugimoto/hislipd/server"
)

func startTestServer(t *testing.T, upcalls conn.Upcalls) (addr string, cancel context.CancelFunc) {
	t.Helper()

	cfg := server.DefaultConfig()
	cfg.BindAddress = "127.0.0.1:0"
	cfg.MaxMessageSize = 1 << 20

	var lc net.ListenConfig
	lis, err := lc.Listen(context.Background(), "tcp", cfg.BindAddress)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	f := server.New(cfg, upcalls, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = f.Serve(ctx, lis) }()

	t.Cleanup(func() {
		cancel()
		_ = lis.Close()
	})

	return lis.Addr().String(), cancel
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	nc, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = nc.SetDeadline(time.Now().Add(5 * time.Second))
	return nc
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	addr, _ := startTestServer(t, conn.Upcalls{})

	syncConn := dial(t, addr)
	defer syncConn.Close()

	initMsg := hislip.New(hislip.TypeInitialize, 0, hislip.InitializeParameter(hislip.Version{Major: 1}, [2]byte{0, 0}), []byte("hislip0"))
	if err := hislip.WriteMessage(syncConn, initMsg); err != nil {
		t.Fatalf("write Initialize: %v", err)
	}

	resp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read InitializeResponse: %v", err)
	}
	if resp.Header.Type != hislip.TypeInitializeResponse {
		t.Fatalf("got type %s, want InitializeResponse", resp.Header.Type)
	}
	version, sessionID := hislip.DecodeInitializeResponseParameter(resp.Header.Parameter)
	if version != (hislip.Version{Major: 1, Minor: 0}) {
		t.Errorf("negotiated version = %+v, want {1 0}", version)
	}
	if sessionID == 0 {
		t.Fatalf("sessionID = 0, want nonzero")
	}

	asyncConn := dial(t, addr)
	defer asyncConn.Close()

	asyncInit := hislip.New(hislip.TypeAsyncInitialize, 0, hislip.AsyncInitializeParameter(sessionID), nil)
	if err := hislip.WriteMessage(asyncConn, asyncInit); err != nil {
		t.Fatalf("write AsyncInitialize: %v", err)
	}

	asyncResp, err := hislip.ReadMessage(asyncConn, 1<<20)
	if err != nil {
		t.Fatalf("read AsyncInitializeResponse: %v", err)
	}
	if asyncResp.Header.Type != hislip.TypeAsyncInitializeResponse {
		t.Fatalf("got type %s, want AsyncInitializeResponse", asyncResp.Header.Type)
	}
	vendor := hislip.DecodeAsyncInitializeResponseParameter(asyncResp.Header.Parameter)
	if vendor != [2]byte{'R', 'S'} {
		t.Errorf("vendor id = %v, want RS", vendor)
	}
}

func TestQueryRoundTripAndStatusQuery(t *testing.T) {
	t.Parallel()

	upcalls := conn.Upcalls{
		OnMessage: func(_ uint16, subAddress string, data []byte) ([]byte, bool) {
			if string(data) == "*IDN?\n" {
				return []byte("Vendor,Model,Serial,FW\n"), true
			}
			return nil, false
		},
	}
	addr, _ := startTestServer(t, upcalls)

	syncConn := dial(t, addr)
	defer syncConn.Close()
	if err := hislip.WriteMessage(syncConn, hislip.New(hislip.TypeInitialize, 0, 0, []byte("hislip0"))); err != nil {
		t.Fatalf("write Initialize: %v", err)
	}
	initResp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read InitializeResponse: %v", err)
	}
	_, sessionID := hislip.DecodeInitializeResponseParameter(initResp.Header.Parameter)

	asyncConn := dial(t, addr)
	defer asyncConn.Close()
	if err := hislip.WriteMessage(asyncConn, hislip.New(hislip.TypeAsyncInitialize, 0, hislip.AsyncInitializeParameter(sessionID), nil)); err != nil {
		t.Fatalf("write AsyncInitialize: %v", err)
	}
	if _, err := hislip.ReadMessage(asyncConn, 1<<20); err != nil {
		t.Fatalf("read AsyncInitializeResponse: %v", err)
	}

	dataEnd := hislip.New(hislip.TypeDataEnd, hislip.RMTControl(true), hislip.MessageIDParameter(0x1000), []byte("*IDN?\n"))
	if err := hislip.WriteMessage(syncConn, dataEnd); err != nil {
		t.Fatalf("write DataEnd: %v", err)
	}

	reply, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Header.Type != hislip.TypeDataEnd {
		t.Fatalf("reply type = %s, want DataEnd", reply.Header.Type)
	}
	if got := hislip.DecodeMessageIDParameter(reply.Header.Parameter); got != 0x1000 {
		t.Errorf("reply message_id = 0x%x, want 0x1000", got)
	}
	if !bytes.Equal(reply.Payload, []byte("Vendor,Model,Serial,FW\n")) {
		t.Errorf("reply payload = %q, want %q", reply.Payload, "Vendor,Model,Serial,FW\n")
	}

	statusQuery := hislip.New(hislip.TypeAsyncStatusQuery, hislip.RMTControl(true), hislip.MessageIDParameter(1), nil)
	if err := hislip.WriteMessage(asyncConn, statusQuery); err != nil {
		t.Fatalf("write AsyncStatusQuery: %v", err)
	}
	statusResp, err := hislip.ReadMessage(asyncConn, 1<<20)
	if err != nil {
		t.Fatalf("read AsyncStatusResponse: %v", err)
	}
	if statusResp.Header.Type != hislip.TypeAsyncStatusResponse {
		t.Fatalf("got type %s, want AsyncStatusResponse", statusResp.Header.Type)
	}
	if statusResp.Header.ControlCode&0x10 == 0 {
		t.Errorf("MAV bit not set in status byte 0x%02x", statusResp.Header.ControlCode)
	}
}

func TestOversizePayloadIsFatal(t *testing.T) {
	t.Parallel()

	addr, _ := startTestServer(t, conn.Upcalls{})
	syncConn := dial(t, addr)
	defer syncConn.Close()

	if err := hislip.WriteMessage(syncConn, hislip.New(hislip.TypeInitialize, 0, 0, []byte("hislip0"))); err != nil {
		t.Fatalf("write Initialize: %v", err)
	}
	if _, err := hislip.ReadMessage(syncConn, 1<<20); err != nil {
		t.Fatalf("read InitializeResponse: %v", err)
	}

	oversized := hislip.New(hislip.TypeData, 0, 0, make([]byte, 2<<20))
	if err := hislip.WriteMessage(syncConn, oversized); err != nil {
		t.Fatalf("write oversized Data: %v", err)
	}

	resp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Header.Type != hislip.TypeFatalError {
		t.Fatalf("got type %s, want FatalError", resp.Header.Type)
	}
}

func TestBadPrologueClosesConnection(t *testing.T) {
	t.Parallel()

	addr, _ := startTestServer(t, conn.Upcalls{})
	syncConn := dial(t, addr)
	defer syncConn.Close()

	bad := make([]byte, hislip.HeaderSize)
	bad[0], bad[1] = 'X', 'x'
	if _, err := syncConn.Write(bad); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.Header.Type != hislip.TypeFatalError {
		t.Fatalf("got type %s, want FatalError", resp.Header.Type)
	}
}

func TestPushServiceRequestDeliversAsyncServiceRequest(t *testing.T) {
	t.Parallel()

	cfg := server.DefaultConfig()
	cfg.BindAddress = "127.0.0.1:0"
	cfg.MaxMessageSize = 1 << 20

	var lc net.ListenConfig
	lis, err := lc.Listen(context.Background(), "tcp", cfg.BindAddress)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := server.New(cfg, conn.Upcalls{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = lis.Close()
	})
	go func() { _ = f.Serve(ctx, lis) }()
	addr := lis.Addr().String()

	syncConn := dial(t, addr)
	defer syncConn.Close()
	if err := hislip.WriteMessage(syncConn, hislip.New(hislip.TypeInitialize, 0, 0, []byte("hislip0"))); err != nil {
		t.Fatalf("write Initialize: %v", err)
	}
	initResp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read InitializeResponse: %v", err)
	}
	_, sessionID := hislip.DecodeInitializeResponseParameter(initResp.Header.Parameter)

	asyncConn := dial(t, addr)
	defer asyncConn.Close()
	if err := hislip.WriteMessage(asyncConn, hislip.New(hislip.TypeAsyncInitialize, 0, hislip.AsyncInitializeParameter(sessionID), nil)); err != nil {
		t.Fatalf("write AsyncInitialize: %v", err)
	}
	if _, err := hislip.ReadMessage(asyncConn, 1<<20); err != nil {
		t.Fatalf("read AsyncInitializeResponse: %v", err)
	}

	if err := f.PushServiceRequest(sessionID, 0x50); err != nil {
		t.Fatalf("PushServiceRequest() error = %v", err)
	}

	srq, err := hislip.ReadMessage(asyncConn, 1<<20)
	if err != nil {
		t.Fatalf("read AsyncServiceRequest: %v", err)
	}
	if srq.Header.Type != hislip.TypeAsyncServiceRequest {
		t.Fatalf("got type %s, want AsyncServiceRequest", srq.Header.Type)
	}
	if srq.Header.ControlCode != 0x50 {
		t.Errorf("status byte = 0x%02x, want 0x50", srq.Header.ControlCode)
	}

	if err := f.PushServiceRequest(sessionID+1, 0x50); err == nil {
		t.Fatal("PushServiceRequest() on unknown session should error")
	}
}

func TestDeviceClearFencesDataUntilComplete(t *testing.T) {
	t.Parallel()

	addr, _ := startTestServer(t, conn.Upcalls{})

	syncConn := dial(t, addr)
	defer syncConn.Close()
	if err := hislip.WriteMessage(syncConn, hislip.New(hislip.TypeInitialize, 0, 0, []byte("hislip0"))); err != nil {
		t.Fatalf("write Initialize: %v", err)
	}
	initResp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read InitializeResponse: %v", err)
	}
	_, sessionID := hislip.DecodeInitializeResponseParameter(initResp.Header.Parameter)

	asyncConn := dial(t, addr)
	defer asyncConn.Close()
	if err := hislip.WriteMessage(asyncConn, hislip.New(hislip.TypeAsyncInitialize, 0, hislip.AsyncInitializeParameter(sessionID), nil)); err != nil {
		t.Fatalf("write AsyncInitialize: %v", err)
	}
	if _, err := hislip.ReadMessage(asyncConn, 1<<20); err != nil {
		t.Fatalf("read AsyncInitializeResponse: %v", err)
	}

	if err := hislip.WriteMessage(asyncConn, hislip.New(hislip.TypeAsyncDeviceClear, 0, 0, nil)); err != nil {
		t.Fatalf("write AsyncDeviceClear: %v", err)
	}
	ack, err := hislip.ReadMessage(asyncConn, 1<<20)
	if err != nil {
		t.Fatalf("read AsyncDeviceClearAcknowledge: %v", err)
	}
	if ack.Header.Type != hislip.TypeAsyncDeviceClearAcknowledge {
		t.Fatalf("got type %s, want AsyncDeviceClearAcknowledge", ack.Header.Type)
	}

	interrupted, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read Interrupted: %v", err)
	}
	if interrupted.Header.Type != hislip.TypeInterrupted {
		t.Fatalf("got type %s, want Interrupted", interrupted.Header.Type)
	}

	if err := hislip.WriteMessage(syncConn, hislip.New(hislip.TypeDataEnd, 0, 0, []byte("*IDN?\n"))); err != nil {
		t.Fatalf("write fenced DataEnd: %v", err)
	}
	fencedResp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read fenced response: %v", err)
	}
	if fencedResp.Header.Type != hislip.TypeError {
		t.Fatalf("got type %s, want Error (fenced)", fencedResp.Header.Type)
	}

	if err := hislip.WriteMessage(syncConn, hislip.New(hislip.TypeDeviceClearComplete, 0, 0, nil)); err != nil {
		t.Fatalf("write DeviceClearComplete: %v", err)
	}
	complete, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read DeviceClearAcknowledge: %v", err)
	}
	if complete.Header.Type != hislip.TypeDeviceClearAcknowledge {
		t.Fatalf("got type %s, want DeviceClearAcknowledge", complete.Header.Type)
	}
}

func TestDualAsyncAttachRefused(t *testing.T) {
	t.Parallel()

	addr, _ := startTestServer(t, conn.Upcalls{})

	syncConn := dial(t, addr)
	defer syncConn.Close()
	if err := hislip.WriteMessage(syncConn, hislip.New(hislip.TypeInitialize, 0, 0, []byte("hislip0"))); err != nil {
		t.Fatalf("write Initialize: %v", err)
	}
	initResp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		t.Fatalf("read InitializeResponse: %v", err)
	}
	_, sessionID := hislip.DecodeInitializeResponseParameter(initResp.Header.Parameter)

	first := dial(t, addr)
	defer first.Close()
	if err := hislip.WriteMessage(first, hislip.New(hislip.TypeAsyncInitialize, 0, hislip.AsyncInitializeParameter(sessionID), nil)); err != nil {
		t.Fatalf("write first AsyncInitialize: %v", err)
	}
	if _, err := hislip.ReadMessage(first, 1<<20); err != nil {
		t.Fatalf("read first AsyncInitializeResponse: %v", err)
	}

	second := dial(t, addr)
	defer second.Close()
	if err := hislip.WriteMessage(second, hislip.New(hislip.TypeAsyncInitialize, 0, hislip.AsyncInitializeParameter(sessionID), nil)); err != nil {
		t.Fatalf("write second AsyncInitialize: %v", err)
	}
	secondResp, err := hislip.ReadMessage(second, 1<<20)
	if err != nil {
		t.Fatalf("read second response: %v", err)
	}
	if secondResp.Header.Type != hislip.TypeFatalError {
		t.Fatalf("second attach got type %s, want FatalError", secondResp.Header.Type)
	}

	// The first session's channels remain unaffected: a status query on the
	// still-attached async connection must still succeed.
	query := hislip.New(hislip.TypeAsyncStatusQuery, 0, 0, nil)
	if err := hislip.WriteMessage(first, query); err != nil {
		t.Fatalf("write AsyncStatusQuery on surviving session: %v", err)
	}
	if _, err := hislip.ReadMessage(first, 1<<20); err != nil {
		t.Fatalf("surviving session should still respond: %v", err)
	}
}
