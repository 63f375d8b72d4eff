package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Baoanh2610/callvideo/internal/credential"
	"github.com/Baoanh2610/callvideo/internal/identity"
	"github.com/Baoanh2610/callvideo/internal/metrics"
	"github.com/Baoanh2610/callvideo/internal/rtc"
)

const (
	// A uid conflict triggers exactly one identity regeneration; a second
	// consecutive conflict surfaces instead of looping.
	maxConflictRetries = 1

	teardownTimeout = 10 * time.Second
)

// Config wires a Controller to its collaborators. Nothing here is global:
// two controllers never share state.
type Config struct {
	AppID       string
	Engine      rtc.Engine
	Devices     rtc.DeviceManager
	Credentials *credential.Store
	Mint        identity.Minter
	Logger      *zap.Logger

	// OnStateChange, when set, runs on the controller loop after every
	// transition. Keep it fast.
	OnStateChange func(State)
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	State        State
	Channel      string
	Identity     string
	Participants []string
	Degraded     bool
	Err          error
}

// Controller owns the join/leave/renew state machine for one session. All
// mutable state lives on a single event-loop goroutine; public methods only
// post events, so no transition ever races another and re-entrant triggers
// are checked against the current state before acting.
type Controller struct {
	cfg    Config
	logger *zap.Logger
	mint   identity.Minter

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Loop-owned state. Never touched off-loop.
	state           State
	epoch           uint64
	channel         string
	baseIdentity    string
	identity        string
	conn            rtc.Conn
	tracks          []rtc.LocalTrack
	participants    map[string]rtc.MediaKind
	renewInFlight   bool
	conflictRetries int
	degraded        bool
	lastErr         error
	counted         bool
	pending         *ensureReq
	leaveWaiters    []chan error

	snapMu sync.Mutex
	snap   Snapshot
}

// New creates a controller and starts its event loop.
func New(cfg Config) *Controller {
	if cfg.Mint == nil {
		cfg.Mint = identity.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:          cfg,
		logger:       cfg.Logger,
		mint:         cfg.Mint,
		ctx:          ctx,
		cancel:       cancel,
		events:       make(chan event, 32),
		done:         make(chan struct{}),
		participants: make(map[string]rtc.MediaKind),
	}
	c.snap = Snapshot{State: StateIdle}
	c.wg.Add(1)
	go c.run()
	return c
}

// Ensure reconciles the controller toward a live session for (userID,
// channel). Idempotent: an ensure matching the current target is a no-op,
// and a Failed session is not retried until Leave resets it, so callers may
// invoke this on every upstream change without re-issuing network calls.
func (c *Controller) Ensure(userID, channel string) {
	c.post(ensureReq{identity: userID, channel: channel})
}

// Leave tears the session down and blocks until done: unpublish and close
// every local track, leave the channel, then release the credential — in
// that order. Leave is also the reset path out of Failed.
func (c *Controller) Leave(ctx context.Context) error {
	done := make(chan error, 1)
	c.post(leaveReq{done: done})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return nil
	}
}

// EnableMedia opens the microphone and camera and publishes both tracks.
// Requires a joined session. A device failure surfaces as rtc.DeviceError
// and leaves the session up.
func (c *Controller) EnableMedia(ctx context.Context) error {
	return c.media(ctx, true)
}

// DisableMedia unpublishes and closes the active track pair, releasing the
// capture devices.
func (c *Controller) DisableMedia(ctx context.Context) error {
	return c.media(ctx, false)
}

func (c *Controller) media(ctx context.Context, enable bool) error {
	done := make(chan error, 1)
	c.post(mediaReq{enable: enable, done: done})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrNotJoined
	}
}

// Close leaves any active session and stops the event loop.
func (c *Controller) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		err = c.Leave(ctx)
		close(c.done)
		c.cancel()
		c.wg.Wait()
	})
	return err
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Snapshot {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	return c.snap
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
			c.publishSnapshot()
		case <-c.done:
			return
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case ensureReq:
		c.handleEnsure(ev)
	case leaveReq:
		c.handleLeave(ev)
	case mediaReq:
		c.handleMedia(ev)
	case tokenFetched:
		c.handleTokenFetched(ev)
	case joinDone:
		c.handleJoinDone(ev)
	case renewFetched:
		c.handleRenewFetched(ev)
	case renewSubmitted:
		c.handleRenewSubmitted(ev)
	case mediaAcquired:
		c.handleMediaAcquired(ev)
	case teardownDone:
		c.handleTeardownDone(ev)
	case connEvent:
		c.handleConnEvent(ev)
	}
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state transition", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

func (c *Controller) handleEnsure(ev ensureReq) {
	if ev.identity == "" || ev.channel == "" {
		return // target not yet available
	}
	switch c.state {
	case StateIdle:
		c.begin(ev.identity, ev.channel)
	case StateFailed:
		// Re-entry from Failed requires an explicit Leave first; an ensure
		// retriggered by the UI must not retry on its own.
	case StateLeaving:
		// The teardown in flight will complete regardless, so even an ensure
		// for the current target is a genuine rejoin request: queue it and
		// let teardown completion re-enter begin.
		c.pending = &ev
	default:
		if ev.identity == c.baseIdentity && ev.channel == c.channel {
			return // already reconciled
		}
		// Target changed: tear the current session down first, then enter
		// the new channel.
		c.pending = &ev
		c.startTeardown()
	}
}

func (c *Controller) begin(userID, channel string) {
	c.epoch++
	c.baseIdentity = userID
	c.identity = userID
	c.channel = channel
	c.conflictRetries = 0
	c.degraded = false
	c.lastErr = nil
	c.setState(StateAcquiringToken)
	c.fetchToken()
}

func (c *Controller) fetchToken() {
	epoch, id, ch := c.epoch, c.identity, c.channel
	go func() {
		cred, err := c.cfg.Credentials.Acquire(c.ctx, id, ch)
		c.post(tokenFetched{epoch: epoch, cred: cred, err: err})
	}()
}

func (c *Controller) handleTokenFetched(ev tokenFetched) {
	if ev.epoch != c.epoch || c.state != StateAcquiringToken {
		return
	}
	if ev.err != nil {
		c.fail(ev.err)
		return
	}
	c.setState(StateJoining)
	epoch := c.epoch
	params := rtc.JoinParams{
		AppID:   c.cfg.AppID,
		Channel: ev.cred.Channel,
		Token:   ev.cred.Token,
		UID:     ev.cred.UID,
	}
	go func() {
		conn, err := c.cfg.Engine.Join(c.ctx, params)
		c.post(joinDone{epoch: epoch, conn: conn, err: err})
	}()
}

func (c *Controller) handleJoinDone(ev joinDone) {
	if ev.epoch != c.epoch || c.state != StateJoining {
		// The attempt was cancelled while the join was in flight. Never
		// adopt the handle; tear it down so nothing dangles.
		if ev.conn != nil {
			go func(conn rtc.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
				defer cancel()
				conn.Leave(ctx)
			}(ev.conn)
		}
		return
	}
	if ev.err != nil {
		var joinErr *rtc.JoinError
		if errors.As(ev.err, &joinErr) && joinErr.UIDConflict() {
			metrics.UIDConflictsTotal.Inc()
			metrics.JoinsTotal.WithLabelValues("uid_conflict").Inc()
			if c.conflictRetries < maxConflictRetries {
				c.conflictRetries++
				// Never reuse the colliding value.
				c.identity = c.mint(c.baseIdentity)
				c.logger.Info("uid conflict, regenerating identity",
					zap.String("channel", c.channel),
					zap.String("identity", c.identity),
				)
				c.setState(StateAcquiringToken)
				c.fetchToken()
				return
			}
		} else {
			metrics.JoinsTotal.WithLabelValues("error").Inc()
		}
		c.fail(ev.err)
		return
	}
	c.conn = ev.conn
	c.conflictRetries = 0
	c.setState(StateJoined)
	c.count()
	metrics.JoinsTotal.WithLabelValues("success").Inc()
	c.logger.Info("joined channel",
		zap.String("channel", c.channel),
		zap.String("identity", c.identity),
	)
	c.pumpEvents(c.epoch, ev.conn)
}

// pumpEvents forwards collaborator notifications into the loop, tagged with
// the epoch of the session they belong to.
func (c *Controller) pumpEvents(epoch uint64, conn rtc.Conn) {
	go func() {
		for ev := range conn.Events() {
			select {
			case c.events <- connEvent{epoch: epoch, ev: ev}:
			case <-c.done:
				return
			}
		}
	}()
}

func (c *Controller) handleConnEvent(ev connEvent) {
	if ev.epoch != c.epoch {
		return
	}
	e := ev.ev
	switch e.Kind {
	case rtc.EventUserPublished:
		// Idempotent: re-publishing the same id never duplicates the entry.
		c.participants[e.Participant] = e.Media
		if conn := c.conn; conn != nil {
			participant, kind := e.Participant, e.Media
			go func() {
				if err := conn.Subscribe(c.ctx, participant, kind); err != nil {
					c.logger.Warn("subscribe failed",
						zap.String("participant", participant), zap.Error(err))
				}
			}()
		}
	case rtc.EventUserUnpublished:
		delete(c.participants, e.Participant)
	case rtc.EventTokenWillExpire, rtc.EventTokenDidExpire:
		c.startRenewal()
	case rtc.EventConnectionState:
		c.logger.Info("connection state",
			zap.String("from", string(e.Previous)), zap.String("to", string(e.Current)))
		if e.Current == rtc.ConnDisconnected && (c.state == StateJoined || c.state == StateRenewing) {
			c.fail(ErrDisconnected)
		}
	case rtc.EventError:
		c.logger.Warn("collaborator error", zap.Error(e.Err))
	}
}

// startRenewal coalesces expiry triggers: only a Joined session renews, and
// at most one fetch is outstanding. Leaving and Idle suppress the trigger
// entirely.
func (c *Controller) startRenewal() {
	if c.state != StateJoined || c.renewInFlight {
		return
	}
	c.renewInFlight = true
	c.setState(StateRenewing)
	epoch, id, ch := c.epoch, c.identity, c.channel
	go func() {
		cred, err := c.cfg.Credentials.Renew(c.ctx, id, ch)
		c.post(renewFetched{epoch: epoch, cred: cred, err: err})
	}()
}

func (c *Controller) handleRenewFetched(ev renewFetched) {
	if ev.epoch != c.epoch {
		return
	}
	if c.state != StateRenewing {
		c.renewInFlight = false
		return
	}
	if ev.err != nil {
		c.renewInFlight = false
		metrics.RenewalsTotal.WithLabelValues("fetch_error").Inc()
		// The session stays connected, but the next expiry will drop it.
		c.degraded = true
		c.fail(&RenewalError{Stage: "fetch", Err: ev.err})
		return
	}
	conn := c.conn
	epoch, tok := c.epoch, ev.cred.Token
	go func() {
		err := conn.RenewToken(c.ctx, tok)
		c.post(renewSubmitted{epoch: epoch, err: err})
	}()
}

func (c *Controller) handleRenewSubmitted(ev renewSubmitted) {
	if ev.epoch != c.epoch {
		return
	}
	c.renewInFlight = false
	if c.state != StateRenewing {
		return
	}
	if ev.err != nil {
		metrics.RenewalsTotal.WithLabelValues("submit_error").Inc()
		c.degraded = true
		c.fail(&RenewalError{Stage: "submit", Err: ev.err})
		return
	}
	metrics.RenewalsTotal.WithLabelValues("success").Inc()
	c.setState(StateJoined)
}

func (c *Controller) handleLeave(ev leaveReq) {
	if c.state == StateIdle {
		ev.done <- nil
		return
	}
	c.leaveWaiters = append(c.leaveWaiters, ev.done)
	if c.state == StateLeaving {
		return
	}
	c.pending = nil // an explicit leave overrides a queued retarget
	c.startTeardown()
}

// startTeardown begins the ordered shutdown: unpublish, then stop and close
// each track, then leave, then release the credential. Bumping the epoch
// first makes every in-flight completion stale.
func (c *Controller) startTeardown() {
	c.epoch++
	epoch := c.epoch
	conn := c.conn
	tracks := c.tracks
	c.conn = nil
	c.tracks = nil
	c.renewInFlight = false
	c.participants = make(map[string]rtc.MediaKind)
	c.setState(StateLeaving)

	go func() {
		var firstErr error
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		if conn != nil && len(tracks) > 0 {
			if err := conn.Unpublish(ctx, tracks...); err != nil {
				firstErr = err
			}
		}
		// Closing tracks before leave releases the capture devices even if
		// leave is slow or fails.
		for _, t := range tracks {
			t.Stop()
			if err := t.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if conn != nil {
			if err := conn.Leave(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		c.post(teardownDone{epoch: epoch, err: firstErr})
	}()
}

func (c *Controller) handleTeardownDone(ev teardownDone) {
	if ev.epoch != c.epoch || c.state != StateLeaving {
		return
	}
	// The credential is released only after leave has completed, and is
	// never reused.
	c.cfg.Credentials.Clear()
	c.uncount()
	metrics.LeavesTotal.Inc()
	c.degraded = false
	c.lastErr = nil
	c.channel, c.identity, c.baseIdentity = "", "", ""
	c.setState(StateIdle)
	for _, w := range c.leaveWaiters {
		w <- ev.err
	}
	c.leaveWaiters = nil
	if p := c.pending; p != nil {
		c.pending = nil
		c.begin(p.identity, p.channel)
	}
}

func (c *Controller) handleMedia(ev mediaReq) {
	if !ev.enable {
		if len(c.tracks) == 0 {
			ev.done <- nil
			return
		}
		conn := c.conn
		tracks := c.tracks
		c.tracks = nil
		go func() {
			var firstErr error
			if conn != nil {
				if err := conn.Unpublish(c.ctx, tracks...); err != nil {
					firstErr = err
				}
			}
			for _, t := range tracks {
				t.Stop()
				if err := t.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			ev.done <- firstErr
		}()
		return
	}

	if c.state != StateJoined {
		ev.done <- ErrNotJoined
		return
	}
	if len(c.tracks) > 0 {
		// The devices are exclusively owned by the active pair.
		ev.done <- nil
		return
	}
	if c.cfg.Devices == nil {
		ev.done <- &rtc.DeviceError{Device: "camera", Err: errors.New("no device manager configured")}
		return
	}

	epoch, conn := c.epoch, c.conn
	go func() {
		mic, cam, err := c.cfg.Devices.AcquireTracks(c.ctx)
		if err != nil {
			c.post(mediaAcquired{epoch: epoch, err: err, done: ev.done})
			return
		}
		// Publish must complete before the tracks count as advertised.
		if err := conn.Publish(c.ctx, mic, cam); err != nil {
			mic.Stop()
			mic.Close()
			cam.Stop()
			cam.Close()
			c.post(mediaAcquired{epoch: epoch, err: err, done: ev.done})
			return
		}
		c.post(mediaAcquired{epoch: epoch, tracks: []rtc.LocalTrack{mic, cam}, done: ev.done})
	}()
}

func (c *Controller) handleMediaAcquired(ev mediaAcquired) {
	if ev.epoch != c.epoch || c.state == StateLeaving || c.state == StateIdle || c.state == StateFailed {
		// The session went away while the devices were opening: release
		// them immediately instead of adopting.
		for _, t := range ev.tracks {
			t.Stop()
			t.Close()
		}
		ev.done <- ErrNotJoined
		return
	}
	if ev.err != nil {
		// Surfaced to the user; the joined session stays up.
		c.lastErr = ev.err
		c.logger.Warn("media enable failed",
			zap.Error(ev.err), zap.String("message", UserMessage(ev.err)))
		ev.done <- ev.err
		return
	}
	c.tracks = ev.tracks
	ev.done <- nil
}

func (c *Controller) fail(err error) {
	c.lastErr = err
	c.setState(StateFailed)
	c.uncount()
	c.logger.Warn("session failed",
		zap.String("channel", c.channel),
		zap.Error(err),
		zap.String("message", UserMessage(err)),
	)
}

func (c *Controller) count() {
	if !c.counted {
		c.counted = true
		metrics.ActiveSessions.Inc()
	}
}

func (c *Controller) uncount() {
	if c.counted {
		c.counted = false
		metrics.ActiveSessions.Dec()
	}
}

func (c *Controller) publishSnapshot() {
	parts := make([]string, 0, len(c.participants))
	for p := range c.participants {
		parts = append(parts, p)
	}
	sort.Strings(parts)

	c.snapMu.Lock()
	c.snap = Snapshot{
		State:        c.state,
		Channel:      c.channel,
		Identity:     c.identity,
		Participants: parts,
		Degraded:     c.degraded,
		Err:          c.lastErr,
	}
	c.snapMu.Unlock()
}
