// Command instrument runs hislipd against a tiny in-memory simulated
// instrument and drives a demo client against it, the way example/mysql
// drove a sequence of demo queries against a real database.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ksugimoto/hislipd/conn"
	"github.com/ksugimoto/hislipd/hislip"
	"github.com/ksugimoto/hislipd/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// device is a minimal simulated instrument. It recognizes exactly four
// commands — "*IDN?" and "*ESR?" by exact comparison, "PARAM:SET <name>
// <value>" and "PARAM:GET? <name>" by prefix plus whitespace-split
// fields — this is a demo stub, not an SCPI parser.
type device struct {
	mu     sync.Mutex
	params map[string]float64
	esr    uint8
}

func newDevice() *device {
	return &device{params: map[string]float64{"VOLT": 0, "CURR": 0}}
}

// validSubAddress matches the hislip0..hislip9 sub-addresses this demo
// instrument answers on, per SPEC_FULL.md 11's corrected sub-address
// policy (the reference SCPIServer's own check never actually rejected
// anything; this is the policy its author evidently intended).
func validSubAddress(sub string) bool {
	if len(sub) != len("hislip0") {
		return false
	}
	return strings.HasPrefix(sub, "hislip") && sub[6] >= '0' && sub[6] <= '9'
}

// handle runs a command against the simulated instrument. sessionID and
// pushSRQ let it assert a Service Request on the session's async channel
// the way a real instrument raises SRQ on a command error, exercising
// the Server Facade's PushServiceRequest (spec.md 4.5's
// service_request(session, status_byte) embedding-driven push).
func (d *device) handle(sessionID uint16, pushSRQ func(uint16, uint8) error, payload []byte) []byte {
	cmd := strings.TrimSpace(string(payload))

	switch {
	case cmd == "*IDN?":
		return []byte("KSUGIMOTO,SIM-1000,0001,1.0\n")
	case cmd == "*ESR?":
		d.mu.Lock()
		esr := d.esr
		d.esr = 0
		d.mu.Unlock()
		return []byte(fmt.Sprintf("%d\n", esr))
	case strings.HasPrefix(cmd, "PARAM:SET "):
		fields := strings.Fields(cmd)
		if len(fields) == 3 {
			if v, err := strconv.ParseFloat(fields[2], 64); err == nil {
				d.mu.Lock()
				d.params[fields[1]] = v
				d.mu.Unlock()
				return nil
			}
		}
		d.mu.Lock()
		d.esr |= 1 << 5 // command error
		d.mu.Unlock()
		if pushSRQ != nil {
			_ = pushSRQ(sessionID, 1<<6|1<<5)
		}
		return nil
	case strings.HasPrefix(cmd, "PARAM:GET? "):
		fields := strings.Fields(cmd)
		if len(fields) == 2 {
			d.mu.Lock()
			v := d.params[fields[1]]
			d.mu.Unlock()
			return []byte(fmt.Sprintf("%g\n", v))
		}
	}
	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev := newDevice()

	cfg := server.DefaultConfig()
	cfg.BindAddress = "127.0.0.1:0"

	var facade *server.Facade

	upcalls := conn.Upcalls{
		ConnectionRequest: func(subAddress string) (bool, string) {
			if !validSubAddress(subAddress) {
				return false, fmt.Sprintf("unsupported sub-address %q, want hislip0-hislip9", subAddress)
			}
			return true, ""
		},
		OnMessage: func(sessionID uint16, _ string, data []byte) ([]byte, bool) {
			resp := dev.handle(sessionID, facade.PushServiceRequest, data)
			return resp, resp != nil
		},
	}

	facade = server.New(cfg, upcalls, nil, log.New(os.Stdout, "instrument: ", log.LstdFlags))

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	addr := lis.Addr().String()

	go func() {
		if err := facade.Serve(ctx, lis); err != nil {
			log.Printf("serve: %v", err)
		}
	}()

	fmt.Printf("simulated instrument listening on %s\n", addr)

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for i := 1; ; i++ {
		if err := demoRound(ctx, addr, i); err != nil {
			log.Printf("round %d: %v", i, err)
		}

		select {
		case <-ctx.Done():
			fmt.Println("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func demoRound(ctx context.Context, addr string, i int) error {
	var d net.Dialer
	syncConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial sync: %w", err)
	}
	defer syncConn.Close()

	param := hislip.InitializeParameter(hislip.Version{Major: 1, Minor: 0}, [2]byte{0, 0})
	initReq := hislip.New(hislip.TypeInitialize, 0, param, []byte("hislip0"))
	if err := hislip.WriteMessage(syncConn, initReq); err != nil {
		return fmt.Errorf("write initialize: %w", err)
	}
	initResp, err := hislip.ReadMessage(syncConn, 1<<20)
	if err != nil {
		return fmt.Errorf("read initialize response: %w", err)
	}
	_, sessionID := hislip.DecodeInitializeResponseParameter(initResp.Header.Parameter)

	asyncConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial async: %w", err)
	}
	defer asyncConn.Close()

	asyncInit := hislip.New(hislip.TypeAsyncInitialize, 0, hislip.AsyncInitializeParameter(sessionID), nil)
	if err := hislip.WriteMessage(asyncConn, asyncInit); err != nil {
		return fmt.Errorf("write async initialize: %w", err)
	}
	if _, err := hislip.ReadMessage(asyncConn, 1<<20); err != nil {
		return fmt.Errorf("read async initialize response: %w", err)
	}

	query(syncConn, 1, "*IDN?\n")
	send(syncConn, 2, "PARAM:SET VOLT 3.3\n")
	query(syncConn, 3, "PARAM:GET? VOLT\n")

	// PARAM:SET with a non-numeric value is a command error: the
	// simulated instrument sets its event-status bit and raises SRQ on
	// the async channel (exercises the Server Facade's
	// PushServiceRequest / spec.md 4.4's AsyncServiceRequest push). It
	// produces no sync-channel reply, same as the valid PARAM:SET above.
	send(syncConn, 4, "PARAM:SET VOLT not-a-number\n")
	if err := asyncConn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return fmt.Errorf("set async deadline: %w", err)
	}
	srq, err := hislip.ReadMessage(asyncConn, 1<<20)
	if err != nil {
		return fmt.Errorf("read AsyncServiceRequest: %w", err)
	}
	fmt.Printf("  SRQ received, status byte 0x%02x\n", srq.Header.ControlCode)

	query(syncConn, 5, "*ESR?\n")

	fmt.Printf("[%d] session %d round complete\n", i, sessionID)
	return nil
}

// send writes a DataEnd carrying a write-only command (no query mark)
// and does not wait for a reply: the instrument upcall returns no
// response bytes for these, so the server never frames one back.
func send(c net.Conn, msgID uint32, payload string) {
	msg := hislip.New(hislip.TypeDataEnd, 0, msgID, []byte(payload))
	if err := hislip.WriteMessage(c, msg); err != nil {
		log.Printf("write command: %v", err)
	}
}

func query(c net.Conn, msgID uint32, payload string) {
	msg := hislip.New(hislip.TypeDataEnd, 0, msgID, []byte(payload))
	if err := hislip.WriteMessage(c, msg); err != nil {
		log.Printf("write query: %v", err)
		return
	}
	resp, err := hislip.ReadMessage(c, 1<<20)
	if err != nil {
		log.Printf("read response: %v", err)
		return
	}
	fmt.Printf("  > %s< %s", payload, bytes.TrimSpace(resp.Payload))
	fmt.Println()
}
