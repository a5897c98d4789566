package hislip

// Type is a HiSLIP message type code, as carried in the header's type byte.
type Type uint8

// The 26 defined message types. Codes 26-127 are reserved by the standard
// and must be rejected; 128-255 are vendor-specific. There is no decoder
// registration: DecodeHeader accepts the whole vendor-specific range, and
// the connection handler ignores such messages without logging them.
const (
	TypeInitialize                      Type = 0
	TypeInitializeResponse              Type = 1
	TypeFatalError                       Type = 2
	TypeError                            Type = 3
	TypeAsyncLock                        Type = 4
	TypeAsyncLockResponse                Type = 5
	TypeData                             Type = 6
	TypeDataEnd                          Type = 7
	TypeDeviceClearComplete              Type = 8
	TypeDeviceClearAcknowledge           Type = 9
	TypeAsyncRemoteLocalControl          Type = 10
	TypeAsyncRemoteLocalResponse         Type = 11
	TypeTrigger                          Type = 12
	TypeInterrupted                      Type = 13
	TypeAsyncInterrupted                 Type = 14
	TypeAsyncMaximumMessageSize          Type = 15
	TypeAsyncMaximumMessageSizeResponse  Type = 16
	TypeAsyncInitialize                  Type = 17
	TypeAsyncInitializeResponse          Type = 18
	TypeAsyncDeviceClear                 Type = 19
	TypeAsyncServiceRequest              Type = 20
	TypeAsyncStatusQuery                 Type = 21
	TypeAsyncStatusResponse              Type = 22
	TypeAsyncDeviceClearAcknowledge      Type = 23
	TypeAsyncLockInfo                    Type = 24
	TypeAsyncLockInfoResponse            Type = 25
)

var typeNames = [...]string{
	TypeInitialize:                     "Initialize",
	TypeInitializeResponse:             "InitializeResponse",
	TypeFatalError:                     "FatalError",
	TypeError:                          "Error",
	TypeAsyncLock:                      "AsyncLock",
	TypeAsyncLockResponse:              "AsyncLockResponse",
	TypeData:                           "Data",
	TypeDataEnd:                        "DataEnd",
	TypeDeviceClearComplete:            "DeviceClearComplete",
	TypeDeviceClearAcknowledge:         "DeviceClearAcknowledge",
	TypeAsyncRemoteLocalControl:        "AsyncRemoteLocalControl",
	TypeAsyncRemoteLocalResponse:       "AsyncRemoteLocalResponse",
	TypeTrigger:                        "Trigger",
	TypeInterrupted:                    "Interrupted",
	TypeAsyncInterrupted:               "AsyncInterrupted",
	TypeAsyncMaximumMessageSize:        "AsyncMaximumMessageSize",
	TypeAsyncMaximumMessageSizeResponse: "AsyncMaximumMessageSizeResponse",
	TypeAsyncInitialize:                "AsyncInitialize",
	TypeAsyncInitializeResponse:        "AsyncInitializeResponse",
	TypeAsyncDeviceClear:               "AsyncDeviceClear",
	TypeAsyncServiceRequest:            "AsyncServiceRequest",
	TypeAsyncStatusQuery:               "AsyncStatusQuery",
	TypeAsyncStatusResponse:            "AsyncStatusResponse",
	TypeAsyncDeviceClearAcknowledge:    "AsyncDeviceClearAcknowledge",
	TypeAsyncLockInfo:                  "AsyncLockInfo",
	TypeAsyncLockInfoResponse:          "AsyncLockInfoResponse",
}

// String returns the message type's name, or a numeric fallback for
// reserved, vendor-specific, or otherwise unrecognized codes.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		if name := typeNames[t]; name != "" {
			return name
		}
	}
	switch {
	case t >= 26 && t <= 127:
		return "Reserved"
	case t >= 128:
		return "VendorSpecific"
	default:
		return "Unknown"
	}
}

// Defined reports whether t is one of the 26 standard message types.
func (t Type) Defined() bool {
	return int(t) < len(typeNames) && typeNames[t] != ""
}

// Reserved reports whether t falls in the standard-reserved range (26-127).
func (t Type) Reserved() bool {
	return t >= 26 && t <= 127
}

// VendorSpecific reports whether t falls in the vendor-specific range (128-255).
func (t Type) VendorSpecific() bool {
	return t >= 128
}

// Channel identifies which of the two HiSLIP connections a message type
// belongs to.
type Channel uint8

const (
	ChannelSync Channel = iota
	ChannelAsync
	ChannelEither
)

func (c Channel) String() string {
	switch c {
	case ChannelSync:
		return "sync"
	case ChannelAsync:
		return "async"
	case ChannelEither:
		return "either"
	default:
		return "unknown"
	}
}

var typeChannels = [...]Channel{
	TypeInitialize:                     ChannelSync,
	TypeInitializeResponse:             ChannelSync,
	TypeFatalError:                     ChannelEither,
	TypeError:                          ChannelEither,
	TypeAsyncLock:                      ChannelAsync,
	TypeAsyncLockResponse:              ChannelAsync,
	TypeData:                           ChannelSync,
	TypeDataEnd:                        ChannelSync,
	TypeDeviceClearComplete:            ChannelSync,
	TypeDeviceClearAcknowledge:         ChannelSync,
	TypeAsyncRemoteLocalControl:        ChannelAsync,
	TypeAsyncRemoteLocalResponse:       ChannelAsync,
	TypeTrigger:                        ChannelSync,
	TypeInterrupted:                    ChannelSync,
	TypeAsyncInterrupted:               ChannelAsync,
	TypeAsyncMaximumMessageSize:        ChannelAsync,
	TypeAsyncMaximumMessageSizeResponse: ChannelAsync,
	TypeAsyncInitialize:                ChannelAsync,
	TypeAsyncInitializeResponse:        ChannelAsync,
	TypeAsyncDeviceClear:               ChannelAsync,
	TypeAsyncServiceRequest:            ChannelAsync,
	TypeAsyncStatusQuery:               ChannelAsync,
	TypeAsyncStatusResponse:            ChannelAsync,
	TypeAsyncDeviceClearAcknowledge:    ChannelAsync,
	TypeAsyncLockInfo:                  ChannelAsync,
	TypeAsyncLockInfoResponse:          ChannelAsync,
}

// ChannelOf returns the channel a defined type belongs to. It returns
// ChannelEither for types outside the defined range.
func ChannelOf(t Type) Channel {
	if int(t) < len(typeChannels) {
		return typeChannels[t]
	}
	return ChannelEither
}
