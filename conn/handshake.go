package conn

import (
	"errors"
	"fmt"

	"github.com/ksugimoto/hislipd/event"
	"github.com/ksugimoto/hislipd/hislip"
	"github.com/ksugimoto/hislipd/session"
)

const defaultMaxMessageSize = 1 << 20 // 1 MiB, spec.md's default when the client omits negotiation

func negotiateVersion(client, server hislip.Version) hislip.Version {
	if client.Major != server.Major {
		if client.Major < server.Major {
			return client
		}
		return server
	}
	if client.Minor < server.Minor {
		return client
	}
	return server
}

// handleSyncInitialize processes the first message of a sync connection:
// the Initialize handshake (spec.md 6, step 1-2).
func (h *Handler) handleSyncInitialize(msg hislip.Message) error {
	clientVersion, _ := hislip.DecodeInitializeParameter(msg.Header.Parameter)
	subAddress := string(msg.Payload)
	negotiated := negotiateVersion(clientVersion, h.cfg.ServerVersion)

	if h.upcalls.ConnectionRequest != nil {
		if ok, reason := h.upcalls.ConnectionRequest(subAddress); !ok {
			return h.sendFatal(hislip.ErrorUnknown, reason)
		}
	}

	maxSize := defaultMaxMessageSize
	if uint64(maxSize) > h.cfg.MaxMessageSizeCeiling {
		maxSize = int(h.cfg.MaxMessageSizeCeiling)
	}

	sess, err := h.registry.Create(subAddress, negotiated, h.cfg.OverlapMode, h, uint64(maxSize))
	if err != nil {
		if errors.Is(err, session.ErrAtCapacity) {
			return h.sendFatal(hislip.ErrorUnknown, "server at session capacity")
		}
		return h.sendFatal(hislip.ErrorUnknown, err.Error())
	}

	h.sess = sess
	h.channel = hislip.ChannelSync
	h.state = stateSyncEstablished

	resp := hislip.New(
		hislip.TypeInitializeResponse,
		hislip.OverlapModeControl(h.cfg.OverlapMode),
		hislip.InitializeResponseParameter(negotiated, sess.ID()),
		nil,
	)
	if err := h.write(resp); err != nil {
		return err
	}

	h.emit(event.SessionOpened, fmt.Sprintf("sub_address=%s", subAddress))
	return nil
}

// handleAsyncInitialize processes the first message of an async
// connection (spec.md 6, step 3-4).
func (h *Handler) handleAsyncInitialize(msg hislip.Message) error {
	sessionID := hislip.DecodeAsyncInitializeParameter(msg.Header.Parameter)

	sess, err := h.registry.AttachAsync(sessionID, h)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownSession):
			return h.sendFatal(hislip.ErrorUnknown, "unknown session id")
		case errors.Is(err, session.ErrAlreadyAttached):
			return h.sendFatal(hislip.ErrorAlreadyAttached, "async channel already attached")
		default:
			return h.sendFatal(hislip.ErrorUnknown, err.Error())
		}
	}

	h.sess = sess
	h.channel = hislip.ChannelAsync
	h.state = stateAsyncEstablished

	resp := hislip.New(
		hislip.TypeAsyncInitializeResponse,
		0,
		hislip.AsyncInitializeResponseParameter(h.cfg.VendorID),
		nil,
	)
	return h.write(resp)
}
