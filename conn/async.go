package conn

import (
	"fmt"

	"github.com/ksugimoto/hislipd/event"
	"github.com/ksugimoto/hislipd/hislip"
	"github.com/ksugimoto/hislipd/session"
)

func (h *Handler) dispatchAsync(msg hislip.Message) error {
	switch msg.Header.Type {
	case hislip.TypeAsyncLock:
		return h.handleAsyncLock(msg)
	case hislip.TypeAsyncLockInfo:
		return h.handleAsyncLockInfo(msg)
	case hislip.TypeAsyncStatusQuery:
		return h.handleAsyncStatusQuery(msg)
	case hislip.TypeAsyncMaximumMessageSize:
		return h.handleAsyncMaximumMessageSize(msg)
	case hislip.TypeAsyncDeviceClear:
		return h.handleAsyncDeviceClear(msg)
	case hislip.TypeAsyncRemoteLocalControl:
		return h.handleAsyncRemoteLocalControl(msg)
	default:
		if msg.Header.Type.VendorSpecific() {
			return nil
		}
		_ = h.sendFatal(hislip.ErrorUnexpectedMessage, fmt.Sprintf("unexpected async message %s", msg.Header.Type))
		h.teardown()
		return nil
	}
}

func (h *Handler) handleAsyncLock(msg hislip.Message) error {
	requesting := msg.Header.ControlCode&0x01 == hislip.AsyncLockRequest

	if !requesting {
		h.sess.Unlock()
		h.emit(event.Lock, "release")
		return h.write(hislip.New(hislip.TypeAsyncLockResponse, hislip.AsyncLockSuccess, 0, nil))
	}

	// parameter carries the timeout in milliseconds. The lock attempt is
	// resolved immediately, without waiting: the timeout is not used, and
	// a lock that is not free at once is answered with failure.
	var ok bool
	if len(msg.Payload) > 0 {
		ok = h.sess.TryLockShared(string(msg.Payload))
	} else {
		ok = h.sess.TryLockExclusive()
	}

	result := hislip.AsyncLockFailure
	if ok {
		result = hislip.AsyncLockSuccess
	}
	h.emit(event.Lock, fmt.Sprintf("request ok=%v", ok))
	return h.write(hislip.New(hislip.TypeAsyncLockResponse, result, 0, nil))
}

func (h *Handler) handleAsyncLockInfo(_ hislip.Message) error {
	info := h.sess.LockInfo()
	ctrl := hislip.AsyncLockInfoResponseControl(info.Kind == session.LockExclusive)
	var count uint32
	if info.Kind == session.LockShared {
		count = uint32(info.SharedCount)
	}
	return h.write(hislip.New(hislip.TypeAsyncLockInfoResponse, ctrl, count, nil))
}

func (h *Handler) handleAsyncStatusQuery(msg hislip.Message) error {
	rmt := hislip.DecodeRMTControl(msg.Header.ControlCode)
	srq := h.sess.TakeSRQPending()
	stb := h.sess.StatusByte(srq)
	h.sess.ClearMAVIfRMT(rmt)
	h.emit(event.StatusQuery, fmt.Sprintf("stb=0x%02x", stb))
	return h.write(hislip.New(hislip.TypeAsyncStatusResponse, stb, 0, nil))
}

func (h *Handler) handleAsyncMaximumMessageSize(msg hislip.Message) error {
	proposed, err := hislip.DecodeMaxMessageSizePayload(msg.Payload)
	if err != nil {
		return h.sendError(hislip.ErrorUnknown, err.Error())
	}

	accepted := h.sess.SetMaxMessageSize(proposed, h.cfg.MaxMessageSizeCeiling)
	resp := hislip.New(hislip.TypeAsyncMaximumMessageSizeResponse, 0, 0, hislip.MaxMessageSizePayload(accepted))
	return h.write(resp)
}

// handleAsyncDeviceClear begins the device-clear fencing window
// (spec.md 5: AsyncDeviceClearAck -> sync Interrupted -> sync
// DeviceClearComplete -> sync DeviceClearAcknowledge). Data/DataEnd on
// the sync channel are rejected with a soft Error while the window is
// open (see handleData/handleDataEnd in sync.go). Once acked here, the
// sync channel is notified with Interrupted so the client knows any
// data it has mid-flight was discarded and it should proceed straight
// to DeviceClearComplete.
func (h *Handler) handleAsyncDeviceClear(_ hislip.Message) error {
	h.sess.SetDeviceClearing(true)
	resp := hislip.New(hislip.TypeAsyncDeviceClearAcknowledge, hislip.OverlapModeControl(h.sess.OverlapMode()), 0, nil)
	if err := h.write(resp); err != nil {
		return err
	}

	syncHandler, _ := h.sess.Handlers()
	if syncHandler != nil {
		_ = syncHandler.PushInterrupted()
	}
	return nil
}

func (h *Handler) handleAsyncRemoteLocalControl(msg hislip.Message) error {
	remote := hislip.DecodeRemoteLocalControl(msg.Header.ControlCode)
	return h.write(hislip.New(hislip.TypeAsyncRemoteLocalResponse, hislip.RemoteLocalControl(remote), 0, nil))
}

// PushServiceRequest sends a server-initiated AsyncServiceRequest carrying
// the given status byte. No response is expected (spec.md 4.4). The
// handler must already be the async channel of an established session.
func (h *Handler) PushServiceRequest(statusByte uint8) error {
	return h.write(hislip.New(hislip.TypeAsyncServiceRequest, statusByte, 0, nil))
}

// PushInterrupted notifies a sync channel that its in-progress data
// sequence has been pre-empted by device-clear; any buffered data up to
// this point must be treated as discarded by the receiver.
func (h *Handler) PushInterrupted() error {
	return h.write(hislip.New(hislip.TypeInterrupted, 0, 0, nil))
}

// PushAsyncInterrupted is the async-channel counterpart of PushInterrupted.
func (h *Handler) PushAsyncInterrupted() error {
	return h.write(hislip.New(hislip.TypeAsyncInterrupted, 0, 0, nil))
}
