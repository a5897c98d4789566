// Package conn implements the per-connection HiSLIP receive loop: the
// AwaitingInit -> SyncEstablished/AsyncEstablished state machine, per-type
// message dispatch, and the error-to-wire-message translation described by
// spec.md 4.4 and 7.
package conn

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ksugimoto/hislipd/event"
	"github.com/ksugimoto/hislipd/hislip"
	"github.com/ksugimoto/hislipd/session"
)

type state int

const (
	stateAwaitingInit state = iota
	stateSyncEstablished
	stateAsyncEstablished
	stateTerminated
)

// Handler runs the receive loop for one TCP connection (one HiSLIP
// channel). It is the unit of teardown: when its loop exits, it also
// closes the peer channel's connection (if any) and removes the session
// from the registry, per spec.md 5's "both sockets die together" rule.
type Handler struct {
	nc       net.Conn
	registry *session.Registry
	cfg      Config
	upcalls  Upcalls
	sink     event.Sink

	closeOnce sync.Once
	writeMu   sync.Mutex

	state   state
	sess    *session.Session
	channel hislip.Channel
}

// New wraps an accepted connection. The caller must invoke Serve.
func New(nc net.Conn, registry *session.Registry, cfg Config, upcalls Upcalls, sink event.Sink) *Handler {
	return &Handler{
		nc:       nc,
		registry: registry,
		cfg:      cfg,
		upcalls:  upcalls,
		sink:     sink,
		state:    stateAwaitingInit,
	}
}

// Close closes the underlying connection. Safe to call more than once and
// from another Handler's teardown path.
func (h *Handler) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.nc.Close()
	})
	return err
}

// Serve runs the receive loop until the connection closes or a fatal
// protocol error occurs. It always returns nil for ordinary transport
// closure (spec.md 7: transport failure is a silent disconnect); non-nil
// errors indicate a local I/O problem writing a response.
func (h *Handler) Serve() error {
	defer h.Close()

	msg, err := hislip.ReadMessage(h.nc, h.cfg.PreNegotiationCeiling)
	if err != nil {
		return h.handleReadError(err)
	}

	switch msg.Header.Type {
	case hislip.TypeInitialize:
		if err := h.handleSyncInitialize(msg); err != nil {
			h.teardown()
			return err
		}
	case hislip.TypeAsyncInitialize:
		if err := h.handleAsyncInitialize(msg); err != nil {
			h.teardown()
			return err
		}
	default:
		_ = h.sendFatal(hislip.ErrorUnexpectedMessage, fmt.Sprintf("unexpected first message type %s", msg.Header.Type))
		return nil
	}

	// A refused Initialize/AsyncInitialize has been answered with
	// FatalError and left no session behind: close the connection.
	if h.sess == nil {
		return nil
	}

	for {
		ceiling := h.cfg.PreNegotiationCeiling
		if h.sess != nil {
			ceiling = h.sess.MaxMessageSize()
		}

		msg, err := hislip.ReadMessage(h.nc, ceiling)
		if err != nil {
			return h.handleReadError(err)
		}

		if err := h.dispatch(msg); err != nil {
			h.teardown()
			return err
		}
	}
}

// handleReadError classifies a ReadMessage failure per spec.md 7 and
// either sends a FatalError and tears down, or silently disconnects.
func (h *Handler) handleReadError(err error) error {
	switch {
	case errors.Is(err, hislip.ErrConnectionClosed), errors.Is(err, hislip.ErrTruncatedPayload):
		h.teardown()
		return nil
	case errors.Is(err, hislip.ErrMessageTooLarge):
		_ = h.sendFatal(hislip.ErrorMessageTooLarge, err.Error())
		h.teardown()
		return nil
	case errors.Is(err, hislip.ErrBadPrologue):
		_ = h.sendFatal(hislip.ErrorBadHeader, err.Error())
		h.teardown()
		return nil
	case errors.Is(err, hislip.ErrUnknownType):
		_ = h.sendFatal(hislip.ErrorUnexpectedMessage, err.Error())
		h.teardown()
		return nil
	default:
		h.teardown()
		return nil
	}
}

func (h *Handler) dispatch(msg hislip.Message) error {
	if h.channel == hislip.ChannelAsync {
		return h.dispatchAsync(msg)
	}
	return h.dispatchSync(msg)
}

// teardown closes the peer channel's connection (if attached) and removes
// the session from the registry. Idempotent: called from either channel's
// Serve loop, whichever notices the failure first.
func (h *Handler) teardown() {
	sess := h.sess
	if sess == nil {
		return
	}

	syncHandler, asyncHandler := sess.Handlers()
	if syncHandler != nil {
		_ = syncHandler.Close()
	}
	if asyncHandler != nil {
		_ = asyncHandler.Close()
	}

	h.registry.Disconnect(sess)

	if h.sink != nil {
		h.sink.Emit(event.Event{
			ID:         uuid.NewString(),
			Kind:       event.SessionClosed,
			SessionID:  sess.ID(),
			SubAddress: sess.SubAddress(),
			At:         time.Now(),
		})
	}
}

// write serializes all writers of this connection (the receive loop's own
// responses and any server-pushed async notification) behind one mutex,
// since net.Conn.Write is not safe for concurrent use.
func (h *Handler) write(msg hislip.Message) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return hislip.WriteMessage(h.nc, msg)
}

func (h *Handler) sendFatal(code hislip.ErrorCode, diagnostic string) error {
	return h.write(hislip.New(hislip.TypeFatalError, uint8(code), 0, []byte(diagnostic)))
}

func (h *Handler) sendError(code hislip.ErrorCode, diagnostic string) error {
	return h.write(hislip.New(hislip.TypeError, uint8(code), 0, []byte(diagnostic)))
}

func (h *Handler) emit(kind event.Kind, detail string) {
	if h.sink == nil || h.sess == nil {
		return
	}
	h.sink.Emit(event.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		SessionID:  h.sess.ID(),
		SubAddress: h.sess.SubAddress(),
		Detail:     detail,
		At:         time.Now(),
	})
}
