// Package server implements the HiSLIP Server Facade: the TCP accept
// loop, configuration, and the upward callbacks to the embedding
// application (spec.md 4.5).
package server

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/ksugimoto/hislipd/conn"
	"github.com/ksugimoto/hislipd/event"
	"github.com/ksugimoto/hislipd/hislip"
	"github.com/ksugimoto/hislipd/session"
)

// Config is the Server Facade's enumerated configuration (spec.md 4.5).
type Config struct {
	BindAddress           string
	VendorID              [2]byte
	MaxMessageSize         uint64
	OverlapMode           bool
	ProtocolVersion       hislip.Version
	MaxSessions           int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		BindAddress:     "0.0.0.0:4880",
		VendorID:        [2]byte{'R', 'S'},
		MaxMessageSize:  500_000_000,
		OverlapMode:     false,
		ProtocolVersion: hislip.Version{Major: 1, Minor: 0},
		MaxSessions:     64,
	}
}

// Facade accepts TCP connections and instantiates a Connection Handler for
// each one, all sharing one Session Registry.
type Facade struct {
	cfg      Config
	upcalls  conn.Upcalls
	sink     event.Sink
	registry *session.Registry
	log      *log.Logger
}

// New constructs a Facade. sink may be nil (events are simply not emitted).
func New(cfg Config, upcalls conn.Upcalls, sink event.Sink, logger *log.Logger) *Facade {
	if logger == nil {
		logger = log.Default()
	}
	return &Facade{
		cfg:      cfg,
		upcalls:  upcalls,
		sink:     sink,
		registry: session.NewRegistry(cfg.MaxSessions),
		log:      logger,
	}
}

// Registry exposes the session registry for components that need to look
// up a live session by id.
func (f *Facade) Registry() *session.Registry { return f.registry }

// PushServiceRequest implements spec.md 4.5's service_request(session,
// status_byte): the embedding application calls this to assert SRQ on a
// live session's async channel. Returns an error if sessionID names no
// live session, or if that session has no async channel attached.
func (f *Facade) PushServiceRequest(sessionID uint16, statusByte uint8) error {
	sess, err := f.registry.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.PushServiceRequest(statusByte)
}

// ListenAndServe accepts connections on cfg.BindAddress until ctx is
// canceled. Each accepted connection is handled on its own goroutine,
// mirroring the teacher's per-connection-goroutine accept loop.
func (f *Facade) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", f.cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", f.cfg.BindAddress, err)
	}
	return f.Serve(ctx, lis)
}

// Serve accepts connections on an already-bound listener. Split out from
// ListenAndServe so tests can bind an ephemeral port themselves.
func (f *Facade) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	connCfg := conn.Config{
		VendorID:              f.cfg.VendorID,
		ServerVersion:         f.cfg.ProtocolVersion,
		OverlapMode:           f.cfg.OverlapMode,
		MaxMessageSizeCeiling: f.cfg.MaxMessageSize,
		PreNegotiationCeiling: 256 * 1024,
	}

	for {
		nc, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		h := conn.New(nc, f.registry, connCfg, f.upcalls, f.sink)
		go func() {
			if err := h.Serve(); err != nil {
				f.log.Printf("server: connection handler: %v", err)
			}
		}()
	}
}
