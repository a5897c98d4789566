package conn

import "github.com/ksugimoto/hislipd/hislip"

// Config holds the per-server settings a Connection Handler needs to
// perform the init handshake and enforce resource bounds. It is
// constructed once by the Server Facade and shared read-only across all
// connections (spec.md 4.5's enumerated configuration).
type Config struct {
	VendorID               [2]byte
	ServerVersion           hislip.Version
	OverlapMode             bool
	MaxMessageSizeCeiling   uint64
	PreNegotiationCeiling   uint64
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		VendorID:             [2]byte{'R', 'S'},
		ServerVersion:         hislip.Version{Major: 1, Minor: 0},
		OverlapMode:           false,
		MaxMessageSizeCeiling: 500_000_000,
		PreNegotiationCeiling: 256 * 1024,
	}
}

// Upcalls are the four downward embedding-application callbacks the
// Server Facade provides (spec.md 4.5). A nil field uses the package's
// permissive default behavior (accept all sub-addresses, no-op
// triggers/clears). The fifth item spec.md 4.5 enumerates,
// service_request(session, status_byte), is the opposite direction — an
// upward, embedding-driven push rather than a callback — and is exposed
// instead as Facade.PushServiceRequest, keyed by the session_id reported
// to OnMessage (OnTrigger and OnDeviceClear receive only the sub-address).
type Upcalls struct {
	// ConnectionRequest is called once, after the sync Initialize is
	// parsed but before the session is registered. Returning ok=false
	// rejects the session; reason becomes the FatalError diagnostic.
	ConnectionRequest func(subAddress string) (ok bool, reason string)

	// OnMessage is called with the concatenated Data+DataEnd payload.
	// A non-empty response is framed back as Data/DataEnd on the sync
	// channel with the same message_id. sessionID identifies the session
	// for a later Facade.PushServiceRequest call.
	OnMessage func(sessionID uint16, subAddress string, data []byte) (response []byte, hasResponse bool)

	OnTrigger     func(subAddress string)
	OnDeviceClear func(subAddress string)
}
