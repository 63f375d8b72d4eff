package session

import (
	"github.com/Baoanh2610/callvideo/internal/rtc"
	"github.com/Baoanh2610/callvideo/internal/token"
)

// Every external stimulus reaches the controller as one of these events,
// consumed by the single loop goroutine. Async completions carry the epoch
// of the attempt that spawned them; the loop discards stale epochs.
type event interface{ isEvent() }

type ensureReq struct {
	identity string
	channel  string
}

type leaveReq struct {
	done chan error
}

type mediaReq struct {
	enable bool
	done   chan error
}

type tokenFetched struct {
	epoch uint64
	cred  *token.Credential
	err   error
}

type joinDone struct {
	epoch uint64
	conn  rtc.Conn
	err   error
}

type renewFetched struct {
	epoch uint64
	cred  *token.Credential
	err   error
}

type renewSubmitted struct {
	epoch uint64
	err   error
}

type mediaAcquired struct {
	epoch  uint64
	tracks []rtc.LocalTrack
	err    error
	done   chan error
}

type teardownDone struct {
	epoch uint64
	err   error
}

type connEvent struct {
	epoch uint64
	ev    rtc.Event
}

func (ensureReq) isEvent()      {}
func (leaveReq) isEvent()       {}
func (mediaReq) isEvent()       {}
func (tokenFetched) isEvent()   {}
func (joinDone) isEvent()       {}
func (renewFetched) isEvent()   {}
func (renewSubmitted) isEvent() {}
func (mediaAcquired) isEvent()  {}
func (teardownDone) isEvent()   {}
func (connEvent) isEvent()      {}
