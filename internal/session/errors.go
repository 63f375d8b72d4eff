package session

import (
	"errors"
	"fmt"

	"github.com/Baoanh2610/callvideo/internal/credential"
	"github.com/Baoanh2610/callvideo/internal/rtc"
	"github.com/Baoanh2610/callvideo/internal/token"
)

var (
	// ErrDisconnected marks a session the platform dropped.
	ErrDisconnected = errors.New("connection lost")

	// ErrNotJoined is returned by operations that need a live session.
	ErrNotJoined = errors.New("not joined to a channel")
)

// RenewalError is a token refresh failure mid-session. The session stays
// connected but degraded: the next expiry will hard-disconnect it.
type RenewalError struct {
	Stage string // "fetch" or "submit"
	Err   error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("token renewal failed during %s: %v", e.Stage, e.Err)
}

func (e *RenewalError) Unwrap() error { return e.Err }

// UserMessage maps an error to the message surfaced to the user. A failure
// is never silently dropped.
func UserMessage(err error) string {
	var renewErr *RenewalError
	var fetchErr *credential.FetchError
	var devErr *rtc.DeviceError
	var joinErr *rtc.JoinError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, token.ErrInvalidRequest):
		return "invalid room or identity"
	case errors.As(err, &renewErr):
		return "connection at risk, please rejoin"
	case errors.As(err, &fetchErr):
		return "cannot reach server"
	case errors.As(err, &devErr):
		return "cannot access camera or microphone"
	case errors.Is(err, ErrDisconnected):
		return "disconnected, please rejoin"
	case errors.As(err, &joinErr):
		return "could not join the room, please try again"
	default:
		return "something went wrong, please try again"
	}
}
