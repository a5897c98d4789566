// Package session holds per-session mutable state shared between a
// session's two HiSLIP connections (sync and async), and the process-wide
// registry that joins those two connections into one logical session.
package session

import (
	"sync"

	"github.com/ksugimoto/hislipd/hislip"
)

// ChannelHandler is the minimal view of a Connection Handler the session
// needs to hold a reference to: enough to tear it down on disconnect, push
// an async-channel service request, or pre-empt a sync-channel data
// sequence for device-clear fencing. Defined here (rather than imported
// from the conn package) so that conn can depend on session without
// creating an import cycle.
type ChannelHandler interface {
	Close() error

	// PushServiceRequest sends AsyncServiceRequest on an async channel.
	// Only meaningful when the handler is the session's async channel.
	PushServiceRequest(statusByte uint8) error

	// PushInterrupted sends Interrupted on the handler's channel,
	// pre-empting an in-progress sync data sequence for device-clear
	// fencing. Only meaningful when the handler is the session's sync
	// channel.
	PushInterrupted() error
}

// LockKind describes the exclusivity state of a session's device lock.
type LockKind int

const (
	LockNone LockKind = iota
	LockExclusive
	LockShared
)

// LockState is the session's current lock holding, per spec 4.13-style
// semantics: either nothing, an exclusive hold by this session, or a named
// shared lock with a count of sharers.
type LockState struct {
	Kind        LockKind
	SharedName  string
	SharedCount int
}

// Session is the per-session mutable state described by the HiSLIP data
// model. All mutable fields are guarded by mu; callers must go through the
// accessor methods rather than touching fields directly from outside the
// package.
//
// Go's sync.Mutex is not reentrant, unlike the "reentrant per-session lock"
// the originating design calls for. Every exported method here takes the
// lock for the duration of its own field access only and never calls
// another locking method while holding it, which gets the same effect
// (every multi-field mutation is atomic, no method ever blocks on I/O
// while holding the lock) without needing true reentrancy.
type Session struct {
	mu sync.Mutex

	id              uint16
	subAddress      string
	protocolVersion hislip.Version
	overlapMode     bool

	syncHandler  ChannelHandler
	asyncHandler ChannelHandler

	maxMessageSize uint64
	syncBuffer     []byte
	lastMessageID  uint32
	mav            bool
	rmtExpected    bool
	deviceClearing bool
	srqPending     bool
	lock           LockState
	msgIDCounter   uint32
}

// New constructs a Session for a freshly accepted sync connection. The
// async handler slot starts nil and is filled in by AttachAsync.
func New(id uint16, subAddress string, version hislip.Version, overlapMode bool, syncHandler ChannelHandler, maxMessageSize uint64) *Session {
	return &Session{
		id:              id,
		subAddress:      subAddress,
		protocolVersion: version,
		overlapMode:     overlapMode,
		syncHandler:     syncHandler,
		maxMessageSize:  maxMessageSize,
		msgIDCounter:    0xFFFFFF00,
	}
}

func (s *Session) ID() uint16 { return s.id }

func (s *Session) SubAddress() string { return s.subAddress }

func (s *Session) ProtocolVersion() hislip.Version { return s.protocolVersion }

func (s *Session) OverlapMode() bool { return s.overlapMode }

// AttachAsync installs the async handler. Returns false if a handler is
// already attached (dual-attach refusal, spec.md scenario 6).
func (s *Session) AttachAsync(h ChannelHandler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asyncHandler != nil {
		return false
	}
	s.asyncHandler = h
	return true
}

// Handlers returns both channel handlers, either of which may be nil if
// that channel has not connected (or has disconnected) yet.
func (s *Session) Handlers() (sync_, async ChannelHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncHandler, s.asyncHandler
}

// ClearSyncHandler and ClearAsyncHandler detach a handler reference on
// teardown so a second disconnect of the same channel is a no-op.
func (s *Session) ClearSyncHandler() {
	s.mu.Lock()
	s.syncHandler = nil
	s.mu.Unlock()
}

func (s *Session) ClearAsyncHandler() {
	s.mu.Lock()
	s.asyncHandler = nil
	s.mu.Unlock()
}

// MaxMessageSize returns the session's negotiated payload ceiling.
func (s *Session) MaxMessageSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxMessageSize
}

// SetMaxMessageSize stores min(proposed, ceiling) and returns the accepted
// value, per the AsyncMaximumMessageSize handler's negotiation rule. A
// result of zero is replaced by 1 MiB, so the stored size is never zero.
func (s *Session) SetMaxMessageSize(proposed, ceiling uint64) uint64 {
	accepted := proposed
	if ceiling < accepted {
		accepted = ceiling
	}
	if accepted == 0 {
		accepted = 1 << 20
	}
	s.mu.Lock()
	s.maxMessageSize = accepted
	s.mu.Unlock()
	return accepted
}

// AppendSyncData appends a Data payload chunk to the sync buffer. It
// reports ErrBufferFull if the cumulative size would exceed the session's
// max_message_size.
func (s *Session) AppendSyncData(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(len(s.syncBuffer)+len(b)) > s.maxMessageSize {
		return ErrBufferFull
	}
	s.syncBuffer = append(s.syncBuffer, b...)
	return nil
}

// TakeSyncBuffer returns the accumulated sync buffer and resets it to
// empty, per the DataEnd handler's consume-and-clear rule.
func (s *Session) TakeSyncBuffer() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.syncBuffer
	s.syncBuffer = nil
	return buf
}

// SetLastMessageID records the most recent sync-channel message_id.
func (s *Session) SetLastMessageID(id uint32) {
	s.mu.Lock()
	s.lastMessageID = id
	s.mu.Unlock()
}

func (s *Session) LastMessageID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessageID
}

// SetMAV sets the message-available bit.
func (s *Session) SetMAV(v bool) {
	s.mu.Lock()
	s.mav = v
	s.mu.Unlock()
}

// MAV returns the message-available bit.
func (s *Session) MAV() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mav
}

// ClearMAVIfRMT clears MAV when rmt is true, leaving it unchanged
// otherwise, and returns the bit's value as observed (before any clear) so
// callers can build a status byte from a single atomic read-then-maybe-clear.
func (s *Session) ClearMAVIfRMT(rmt bool) (wasSet bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasSet = s.mav
	if rmt {
		s.mav = false
	}
	return wasSet
}

// StatusByte builds the STB per spec.md 4.4: bit 4 is MAV. Bit 6 is a
// pending Service Request, set by PushServiceRequest and cleared the next
// time an AsyncStatusQuery observes it (see TakeSRQPending), which makes
// spec.md 4.5's service_request push observable over the wire (see
// SPEC_FULL.md 11).
func (s *Session) StatusByte(srqPending bool) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stb uint8
	if s.mav {
		stb |= 1 << 4
	}
	if srqPending {
		stb |= 1 << 6
	}
	return stb
}

// SetRMTExpected and RMTExpected track whether the server has sent
// DataEnd and is awaiting an RMT-flagged inbound message.
func (s *Session) SetRMTExpected(v bool) {
	s.mu.Lock()
	s.rmtExpected = v
	s.mu.Unlock()
}

func (s *Session) RMTExpected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rmtExpected
}

// SetDeviceClearing marks whether device-clear is in progress (fencing
// window between AsyncDeviceClear and the sync-side Complete/Acknowledge
// handshake).
func (s *Session) SetDeviceClearing(v bool) {
	s.mu.Lock()
	s.deviceClearing = v
	s.mu.Unlock()
}

func (s *Session) DeviceClearing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceClearing
}

// PushServiceRequest implements spec.md 4.5's service_request(session,
// status_byte) embedding-driven push: marks SRQ pending and forwards
// statusByte as an AsyncServiceRequest on this session's async channel.
// Returns ErrNoAsyncChannel if no async channel is currently attached.
func (s *Session) PushServiceRequest(statusByte uint8) error {
	s.mu.Lock()
	async := s.asyncHandler
	s.mu.Unlock()
	if async == nil {
		return ErrNoAsyncChannel
	}
	s.SetSRQPending(true)
	return async.PushServiceRequest(statusByte)
}

// SetSRQPending sets or clears the SRQ-pending bit directly.
func (s *Session) SetSRQPending(v bool) {
	s.mu.Lock()
	s.srqPending = v
	s.mu.Unlock()
}

// TakeSRQPending returns the SRQ-pending bit and clears it, mirroring how
// a serial poll (AsyncStatusQuery) clears an asserted SRQ once observed.
func (s *Session) TakeSRQPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.srqPending
	s.srqPending = false
	return v
}

// NextMessageID returns the next value of the server's outbound message-id
// counter, starting at 0xFFFFFF00 and wrapping on overflow.
func (s *Session) NextMessageID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.msgIDCounter
	s.msgIDCounter++
	return id
}

// TryLockExclusive attempts to acquire the exclusive device lock for this
// session. Fails if any lock (exclusive or shared) is already held.
func (s *Session) TryLockExclusive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock.Kind != LockNone {
		return false
	}
	s.lock = LockState{Kind: LockExclusive}
	return true
}

// TryLockShared acquires (or joins) a named shared lock. Fails only if an
// exclusive lock is held, or a shared lock under a different name is held.
func (s *Session) TryLockShared(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.lock.Kind {
	case LockNone:
		s.lock = LockState{Kind: LockShared, SharedName: name, SharedCount: 1}
		return true
	case LockShared:
		if s.lock.SharedName != name {
			return false
		}
		s.lock.SharedCount++
		return true
	default:
		return false
	}
}

// Unlock releases whatever this session holds. A release with nothing
// held is a no-op (matches the original implementation's release path).
func (s *Session) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock = LockState{}
}

// LockInfo returns the current lock state for AsyncLockInfoResponse.
func (s *Session) LockInfo() LockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock
}
