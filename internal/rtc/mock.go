package rtc

import (
	"context"
	"sync"
)

// CallRecorder keeps one ordered log of instrumented calls across mocks, so
// tests can assert sequencing (e.g. tracks closed before leave).
type CallRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *CallRecorder) Record(call string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// Calls returns a copy of the recorded call log.
func (r *CallRecorder) Calls() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// MockEngine returns canned join results for testing.
type MockEngine struct {
	Recorder *CallRecorder
	JoinErrs []error       // consumed one per call; nil entry or exhausted list means success
	JoinGate chan struct{} // when non-nil, Join blocks until the gate is closed

	mu    sync.Mutex
	joins []JoinParams
	conns []*MockConn
}

func (m *MockEngine) Join(ctx context.Context, params JoinParams) (Conn, error) {
	if gate := m.JoinGate; gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.joins = append(m.joins, params)
	var err error
	if len(m.JoinErrs) > 0 {
		err = m.JoinErrs[0]
		m.JoinErrs = m.JoinErrs[1:]
	}
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	conn := NewMockConn(m.Recorder)
	m.conns = append(m.conns, conn)
	m.mu.Unlock()

	m.Recorder.Record("join:" + params.Channel)
	return conn, nil
}

// JoinCalls returns the params of every Join attempt, including failed ones.
func (m *MockEngine) JoinCalls() []JoinParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JoinParams, len(m.joins))
	copy(out, m.joins)
	return out
}

// Conns returns every successfully joined mock connection.
func (m *MockEngine) Conns() []*MockConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockConn, len(m.conns))
	copy(out, m.conns)
	return out
}

// MockConn is a scripted session handle. Emit feeds collaborator events to
// the consumer; Leave closes the event channel.
type MockConn struct {
	RenewErr  error
	LeaveErr  error
	LeaveGate chan struct{} // when non-nil, Leave blocks until the gate is closed

	rec       *CallRecorder
	events    chan Event
	closeOnce sync.Once

	mu      sync.Mutex
	renewed []string
	subs    []string
	left    bool
}

func NewMockConn(rec *CallRecorder) *MockConn {
	return &MockConn{rec: rec, events: make(chan Event, 16)}
}

func (c *MockConn) Publish(ctx context.Context, tracks ...LocalTrack) error {
	for _, t := range tracks {
		c.rec.Record("publish:" + string(t.Kind()))
	}
	return nil
}

func (c *MockConn) Unpublish(ctx context.Context, tracks ...LocalTrack) error {
	for _, t := range tracks {
		c.rec.Record("unpublish:" + string(t.Kind()))
	}
	return nil
}

func (c *MockConn) Subscribe(ctx context.Context, participant string, kind MediaKind) error {
	c.rec.Record("subscribe:" + participant + ":" + string(kind))
	c.mu.Lock()
	c.subs = append(c.subs, participant+":"+string(kind))
	c.mu.Unlock()
	return nil
}

func (c *MockConn) RenewToken(ctx context.Context, token string) error {
	c.rec.Record("renew")
	if c.RenewErr != nil {
		return c.RenewErr
	}
	c.mu.Lock()
	c.renewed = append(c.renewed, token)
	c.mu.Unlock()
	return nil
}

func (c *MockConn) Leave(ctx context.Context) error {
	if gate := c.LeaveGate; gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.rec.Record("leave")
	c.mu.Lock()
	c.left = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.events) })
	return c.LeaveErr
}

func (c *MockConn) Events() <-chan Event { return c.events }

// Emit delivers a collaborator event to the consumer. Panics if called
// after Leave, same as a real SDK callback racing a closed session would.
func (c *MockConn) Emit(ev Event) { c.events <- ev }

func (c *MockConn) Renewed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.renewed))
	copy(out, c.renewed)
	return out
}

func (c *MockConn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.subs))
	copy(out, c.subs)
	return out
}

func (c *MockConn) Left() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left
}

// MockTrack is an instrumented local track.
type MockTrack struct {
	kind MediaKind
	rec  *CallRecorder

	mu      sync.Mutex
	stopped bool
	closed  bool
}

func NewMockTrack(kind MediaKind, rec *CallRecorder) *MockTrack {
	return &MockTrack{kind: kind, rec: rec}
}

func (t *MockTrack) Kind() MediaKind { return t.kind }

func (t *MockTrack) Stop() {
	t.rec.Record("stop:" + string(t.kind))
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *MockTrack) Close() error {
	t.rec.Record("close:" + string(t.kind))
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *MockTrack) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// MockDeviceManager hands out instrumented track pairs.
type MockDeviceManager struct {
	Recorder   *CallRecorder
	AcquireErr error

	mu       sync.Mutex
	acquired int
}

func (m *MockDeviceManager) AcquireTracks(ctx context.Context) (LocalTrack, LocalTrack, error) {
	if m.AcquireErr != nil {
		return nil, nil, m.AcquireErr
	}
	m.mu.Lock()
	m.acquired++
	m.mu.Unlock()
	m.Recorder.Record("acquire")
	return NewMockTrack(MediaAudio, m.Recorder), NewMockTrack(MediaVideo, m.Recorder), nil
}

// Acquired returns how many track pairs were handed out.
func (m *MockDeviceManager) Acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}
