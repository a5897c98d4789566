package conn

import (
	"fmt"

	"github.com/ksugimoto/hislipd/event"
	"github.com/ksugimoto/hislipd/hislip"
)

func (h *Handler) dispatchSync(msg hislip.Message) error {
	switch msg.Header.Type {
	case hislip.TypeData:
		return h.handleData(msg)
	case hislip.TypeDataEnd:
		return h.handleDataEnd(msg)
	case hislip.TypeTrigger:
		return h.handleTrigger(msg)
	case hislip.TypeDeviceClearComplete:
		return h.handleDeviceClearComplete(msg)
	default:
		if msg.Header.Type.VendorSpecific() {
			return nil
		}
		_ = h.sendFatal(hislip.ErrorUnexpectedMessage, fmt.Sprintf("unexpected sync message %s", msg.Header.Type))
		h.teardown()
		return nil
	}
}

// deviceClearFenced rejects Data/DataEnd with a soft Error while a
// device-clear is in progress (spec.md 5: the window between
// AsyncDeviceClearAck and the client's DeviceClearComplete). The session
// survives a soft Error; the client is expected to send
// DeviceClearComplete instead of continuing its interrupted sequence.
func (h *Handler) deviceClearFenced() bool {
	if !h.sess.DeviceClearing() {
		return false
	}
	_ = h.sendError(hislip.ErrorUnexpectedMessage, "data rejected: device-clear in progress")
	return true
}

func (h *Handler) handleData(msg hislip.Message) error {
	if h.deviceClearFenced() {
		return nil
	}

	rmt := hislip.DecodeRMTControl(msg.Header.ControlCode)

	if err := h.sess.AppendSyncData(msg.Payload); err != nil {
		_ = h.sendFatal(hislip.ErrorMessageTooLarge, err.Error())
		h.teardown()
		return nil
	}

	h.sess.SetLastMessageID(hislip.DecodeMessageIDParameter(msg.Header.Parameter))
	h.sess.ClearMAVIfRMT(rmt)
	return nil
}

func (h *Handler) handleDataEnd(msg hislip.Message) error {
	if h.deviceClearFenced() {
		return nil
	}

	rmt := hislip.DecodeRMTControl(msg.Header.ControlCode)
	messageID := hislip.DecodeMessageIDParameter(msg.Header.Parameter)

	if err := h.sess.AppendSyncData(msg.Payload); err != nil {
		_ = h.sendFatal(hislip.ErrorMessageTooLarge, err.Error())
		h.teardown()
		return nil
	}

	h.sess.SetLastMessageID(messageID)
	h.sess.ClearMAVIfRMT(rmt)

	data := h.sess.TakeSyncBuffer()
	h.emit(event.DataIn, string(data))

	if h.upcalls.OnMessage == nil {
		return nil
	}

	response, ok := h.upcalls.OnMessage(h.sess.ID(), h.sess.SubAddress(), data)
	if !ok || len(response) == 0 {
		return nil
	}

	// Open Question (a): echo the client's message_id on the response,
	// rather than the server's own outbound counter.
	if err := h.writeResponse(messageID, response); err != nil {
		return err
	}

	h.sess.SetMAV(true)
	h.emit(event.DataOut, string(response))
	return nil
}

// writeResponse frames a response as zero-or-more Data messages followed
// by a final DataEnd, chunked to the session's negotiated max_message_size
// (spec.md 4.4: "frame as one-or-more Data plus final DataEnd with the
// same message_id echoed").
func (h *Handler) writeResponse(messageID uint32, response []byte) error {
	chunkSize := int(h.sess.MaxMessageSize())
	if chunkSize <= 0 {
		chunkSize = defaultMaxMessageSize
	}

	for len(response) > chunkSize {
		chunk := response[:chunkSize]
		response = response[chunkSize:]
		msg := hislip.New(hislip.TypeData, 0, hislip.MessageIDParameter(messageID), chunk)
		if err := h.write(msg); err != nil {
			return err
		}
	}

	final := hislip.New(hislip.TypeDataEnd, hislip.RMTControl(true), hislip.MessageIDParameter(messageID), response)
	return h.write(final)
}

func (h *Handler) handleTrigger(msg hislip.Message) error {
	rmt := hislip.DecodeRMTControl(msg.Header.ControlCode)
	h.sess.SetLastMessageID(hislip.DecodeMessageIDParameter(msg.Header.Parameter))
	h.sess.ClearMAVIfRMT(rmt)

	if h.upcalls.OnTrigger != nil {
		h.upcalls.OnTrigger(h.sess.SubAddress())
	}
	h.emit(event.Trigger, "")
	return nil
}

func (h *Handler) handleDeviceClearComplete(_ hislip.Message) error {
	h.sess.TakeSyncBuffer()
	h.sess.SetDeviceClearing(false)

	resp := hislip.New(hislip.TypeDeviceClearAcknowledge, hislip.OverlapModeControl(h.sess.OverlapMode()), 0, nil)
	if err := h.write(resp); err != nil {
		return err
	}

	if h.upcalls.OnDeviceClear != nil {
		h.upcalls.OnDeviceClear(h.sess.SubAddress())
	}
	h.emit(event.DeviceClear, "")
	return nil
}
