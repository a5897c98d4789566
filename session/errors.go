package session

import "errors"

var (
	// ErrBufferFull is returned by AppendSyncData when appending would
	// exceed the session's negotiated max_message_size.
	ErrBufferFull = errors.New("session: sync buffer would exceed max_message_size")
	// ErrUnknownSession is returned by Registry.Get/AttachAsync for an id
	// with no live session.
	ErrUnknownSession = errors.New("session: unknown session id")
	// ErrAlreadyAttached is returned by Registry.AttachAsync when the
	// session already has an async handler (dual-attach refusal).
	ErrAlreadyAttached = errors.New("session: async channel already attached")
	// ErrAtCapacity is returned by Registry.Create when the configured
	// session ceiling has been reached.
	ErrAtCapacity = errors.New("session: at session capacity")
	// ErrNoAsyncChannel is returned by Session.PushServiceRequest when the
	// session has no async channel attached (or it has since disconnected)
	// to push AsyncServiceRequest on.
	ErrNoAsyncChannel = errors.New("session: no async channel attached")
)
