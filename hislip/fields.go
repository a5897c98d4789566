package hislip

import "encoding/binary"

// This file packs and unpacks the per-type field overlays the standard
// defines on top of the shared header slots (parameter, control_code) and
// payload. Each function is named after the message type and the field
// group it reads or writes; there is no hidden reinterpretation of bytes
// outside of these functions.

// Version is a HiSLIP protocol version (major.minor), packed as two bytes.
type Version struct {
	Major uint8
	Minor uint8
}

// InitializeParameter packs/unpacks the Initialize message's parameter:
// client protocol version in the high 16 bits, client vendor id (2 ASCII
// bytes) in the low 16 bits.
func InitializeParameter(version Version, vendorID [2]byte) uint32 {
	return uint32(version.Major)<<24 | uint32(version.Minor)<<16 |
		uint32(vendorID[0])<<8 | uint32(vendorID[1])
}

func DecodeInitializeParameter(p uint32) (version Version, vendorID [2]byte) {
	version = Version{Major: uint8(p >> 24), Minor: uint8(p >> 16)}
	vendorID = [2]byte{byte(p >> 8), byte(p)}
	return version, vendorID
}

// InitializeResponseParameter packs/unpacks InitializeResponse's parameter:
// server protocol version in the high 16 bits, session_id in the low 16 bits.
func InitializeResponseParameter(version Version, sessionID uint16) uint32 {
	return uint32(version.Major)<<24 | uint32(version.Minor)<<16 | uint32(sessionID)
}

func DecodeInitializeResponseParameter(p uint32) (version Version, sessionID uint16) {
	return Version{Major: uint8(p >> 24), Minor: uint8(p >> 16)}, uint16(p)
}

// OverlapModeControl packs the overlap-mode preference bit (bit 0) used by
// InitializeResponse's control_code.
func OverlapModeControl(overlap bool) uint8 {
	if overlap {
		return 1
	}
	return 0
}

func DecodeOverlapModeControl(ctrl uint8) bool {
	return ctrl&0x01 != 0
}

// AsyncInitializeParameter packs/unpacks AsyncInitialize's parameter: the
// session_id in the low 16 bits (the high 16 bits are unused/reserved).
func AsyncInitializeParameter(sessionID uint16) uint32 {
	return uint32(sessionID)
}

func DecodeAsyncInitializeParameter(p uint32) uint16 {
	return uint16(p)
}

// AsyncInitializeResponseParameter packs/unpacks AsyncInitializeResponse's
// parameter: the server vendor id (2 ASCII bytes) in the low 16 bits.
func AsyncInitializeResponseParameter(vendorID [2]byte) uint32 {
	return uint32(vendorID[0])<<8 | uint32(vendorID[1])
}

func DecodeAsyncInitializeResponseParameter(p uint32) [2]byte {
	return [2]byte{byte(p >> 8), byte(p)}
}

// RMT is the response-message-terminator flag, carried in bit 0 of the
// control_code on Data, DataEnd, Trigger, and AsyncStatusQuery.
func RMTControl(rmt bool) uint8 {
	if rmt {
		return 1
	}
	return 0
}

func DecodeRMTControl(ctrl uint8) bool {
	return ctrl&0x01 != 0
}

// MessageIDParameter and DecodeMessageIDParameter pack/unpack the 32-bit
// message_id carried as the parameter on Data, DataEnd, Trigger, and
// AsyncStatusQuery.
func MessageIDParameter(id uint32) uint32 { return id }

func DecodeMessageIDParameter(p uint32) uint32 { return p }

// AsyncLock request/release bit (control_code bit 0): 1 = request, 0 = release.
const (
	AsyncLockRelease uint8 = 0
	AsyncLockRequest uint8 = 1
)

// AsyncLockResponse result codes, carried in control_code.
const (
	AsyncLockFailure uint8 = 0
	AsyncLockSuccess uint8 = 1
	AsyncLockError   uint8 = 3
)

// AsyncLockInfoResponseControl packs/unpacks AsyncLockInfoResponse's
// control_code (bit 0: this session holds the exclusive lock). The
// message's parameter (count of sessions sharing a shared lock) is a
// plain uint32 and needs no packing helper.
func AsyncLockInfoResponseControl(exclusiveHeldByThisSession bool) uint8 {
	if exclusiveHeldByThisSession {
		return 1
	}
	return 0
}

func DecodeAsyncLockInfoResponseControl(ctrl uint8) bool {
	return ctrl&0x01 != 0
}

// MaxMessageSizePayload and DecodeMaxMessageSizePayload pack/unpack the
// 8-byte uint64 payload of AsyncMaximumMessageSize and its Response.
//
// The original implementation this is derived from decodes this payload
// into a single-element tuple (struct.unpack always returns a tuple); this
// is a defect in that code, not intended behavior, and this implementation
// returns a plain uint64.
func MaxMessageSizePayload(size uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, size)
	return b
}

func DecodeMaxMessageSizePayload(payload []byte) (uint64, error) {
	if len(payload) != 8 {
		return 0, ErrTruncatedPayload
	}
	return binary.BigEndian.Uint64(payload), nil
}

// ErrorCode values carried in the control_code of FatalError/Error messages.
type ErrorCode uint8

const (
	ErrorUnknown            ErrorCode = 0
	ErrorBadHeader          ErrorCode = 1
	ErrorChannelDisorder    ErrorCode = 2
	ErrorUnexpectedMessage  ErrorCode = 3
	ErrorMessageTooLarge    ErrorCode = 4
	ErrorAlreadyAttached    ErrorCode = 5
)

// RemoteLocalControl bit packs/unpacks AsyncRemoteLocalControl's
// control_code: the requested remote (1) / local (0) state.
func RemoteLocalControl(remote bool) uint8 {
	if remote {
		return 1
	}
	return 0
}

func DecodeRemoteLocalControl(ctrl uint8) bool {
	return ctrl&0x01 != 0
}
