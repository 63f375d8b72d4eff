// Package rtc defines the boundary to the external RTC platform SDK. Media
// capture, encoding, transport and SFU routing all live behind these
// interfaces; this repo only orchestrates them.
package rtc

import "context"

// MediaKind distinguishes audio and video tracks.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// ConnState mirrors the collaborator's connection lifecycle.
type ConnState string

const (
	ConnDisconnected ConnState = "DISCONNECTED"
	ConnConnecting   ConnState = "CONNECTING"
	ConnConnected    ConnState = "CONNECTED"
	ConnReconnecting ConnState = "RECONNECTING"
)

// EventKind enumerates the collaborator events the session controller
// consumes.
type EventKind int

const (
	EventUserPublished EventKind = iota
	EventUserUnpublished
	EventTokenWillExpire
	EventTokenDidExpire
	EventConnectionState
	EventError
)

// Event is one collaborator notification. Which fields are meaningful
// depends on Kind.
type Event struct {
	Kind        EventKind
	Participant string
	Media       MediaKind
	Current     ConnState
	Previous    ConnState
	Err         error
}

// JoinParams carries everything a join needs. Token must be bound to
// exactly (Channel, UID) or the platform rejects the join.
type JoinParams struct {
	AppID   string
	Channel string
	Token   string
	UID     string
}

// Engine is the RTC SDK entry point.
type Engine interface {
	Join(ctx context.Context, params JoinParams) (Conn, error)
}

// Conn is a joined session handle.
type Conn interface {
	// Publish advertises local tracks to remote participants.
	Publish(ctx context.Context, tracks ...LocalTrack) error
	Unpublish(ctx context.Context, tracks ...LocalTrack) error
	// Subscribe starts receiving a remote participant's published media.
	Subscribe(ctx context.Context, participant string, kind MediaKind) error
	// RenewToken submits a fresh token in place, without leaving the
	// channel or disturbing published tracks.
	RenewToken(ctx context.Context, token string) error
	Leave(ctx context.Context) error
	// Events delivers collaborator notifications. The channel is closed
	// when the underlying session ends.
	Events() <-chan Event
}

// LocalTrack is a captured device track. Stop halts capture; Close releases
// the device for other acquirers.
type LocalTrack interface {
	Kind() MediaKind
	Stop()
	Close() error
}

// DeviceManager acquires local capture devices. The camera and microphone
// are exclusively owned by at most one live track pair at a time; callers
// must Close a previous pair before acquiring a new one.
type DeviceManager interface {
	AcquireTracks(ctx context.Context) (mic, cam LocalTrack, err error)
}
