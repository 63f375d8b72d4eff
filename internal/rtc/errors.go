package rtc

import "fmt"

// CodeUIDConflict is the collaborator error code for a uid already taken in
// the channel.
const CodeUIDConflict = "UID_CONFLICT"

// JoinError is a join rejected by the collaborator.
type JoinError struct {
	Code    string
	Message string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join rejected (%s): %s", e.Code, e.Message)
}

// UIDConflict reports whether the join failed because the uid is already in
// use by a concurrently joined participant.
func (e *JoinError) UIDConflict() bool {
	return e.Code == CodeUIDConflict
}

// DeviceError is a camera or microphone acquisition failure. It never tears
// down an already-joined session.
type DeviceError struct {
	Device string // "camera" or "microphone"
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("cannot acquire %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
