package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/mission-realtime/internal/listener"
	"github.com/rickgao/mission-realtime/internal/outbox"
	"github.com/rickgao/mission-realtime/internal/protocol"
	"github.com/rickgao/mission-realtime/internal/router"
)

// Manager owns the single connection and runs its state machine.
// All methods are safe for concurrent use.
type Manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	policy    Policy
	router    *router.Router
	creds     CredentialSource
	hooks     Hooks
	newClient ClientFactory

	status  listener.List[StatusEvent]
	notices listener.List[Notice]

	wg sync.WaitGroup

	mu             sync.Mutex
	state          State
	authenticated  bool
	client         Client
	session        uint64 // bumped whenever a session starts or is torn down
	sessionCtx     context.Context
	sessionCancel  context.CancelFunc
	dialCancel     context.CancelFunc
	token          string // explicit token from the last Connect
	intentional    bool
	recovering     bool // inside a reconnect cycle
	attempts       int
	reconnectTimer *time.Timer
	reconnectSeq   uint64
	authTimer      *time.Timer
	authInFlight   bool // authenticate sent or credential lookup running
	rooms          *RoomSet
	queue          *outbox.Queue[protocol.Envelope]
	heartbeat      *Heartbeat
	lastErr        error
	sessions       int64

	events   []event
	flushing bool
}

type event struct {
	status *StatusEvent
	notice *Notice
}

// Option configures a Manager.
type Option func(*Manager)

// WithCredentials sets the source consulted when Connect gets no token.
func WithCredentials(src CredentialSource) Option {
	return func(m *Manager) {
		m.creds = src
	}
}

// WithRouter sets the Message Router inbound frames are dispatched to.
func WithRouter(r *router.Router) Option {
	return func(m *Manager) {
		m.router = r
	}
}

// WithHooks installs outbound traffic hooks. Hooks run with the manager
// lock held and must not call back into the Manager.
func WithHooks(h Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}

// WithClientFactory replaces the transport constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		m.newClient = f
	}
}

// NewManager creates a new Connection Manager in the Disconnected state.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger,
		policy: Policy{
			BaseDelay:   cfg.ReconnectBaseDelay,
			MaxAttempts: cfg.ReconnectMaxAttempts,
			MaxDelay:    cfg.ReconnectMaxDelay,
		},
		newClient: NewClient,
		state:     StateDisconnected,
		rooms:     NewRoomSet(),
		queue:     outbox.New[protocol.Envelope](64, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.router == nil {
		m.router = router.New(logger.With("component", "router"))
	}
	m.heartbeat = NewHeartbeat(cfg.HeartbeatInterval, m.beat)

	return m
}

// Connect opens the transport and returns once it is open, not once it is
// authenticated. A non-empty token is sent in the address query and in an
// authenticate frame; otherwise the credential source is asked for one.
// On an open but unauthenticated session Connect retries authentication
// instead of dialing. It is a no-op while opening, while authenticated and
// while an authentication attempt is pending, and cancels any pending
// reconnect otherwise.
func (m *Manager) Connect(ctx context.Context, token string) error {
	return m.open(ctx, token, true, 0)
}

// open starts a session. Manual opens come from Connect; the others come
// from the reconnect timer identified by seq.
func (m *Manager) open(ctx context.Context, token string, manual bool, seq uint64) error {
	m.mu.Lock()
	if manual {
		switch m.state {
		case StateConnecting, StateAuthenticated:
			m.mu.Unlock()
			return nil
		case StateConnected:
			m.reauthenticateLocked(token)
			m.unlockAndEmit()
			return nil
		}
		m.cancelReconnectLocked()
		m.attempts = 0
		m.intentional = false
		m.recovering = false
		m.token = token
	} else {
		if seq != m.reconnectSeq || m.intentional || m.state != StateReconnecting {
			m.mu.Unlock()
			return nil
		}
		m.reconnectTimer = nil
	}

	addr, err := BuildURL(m.cfg.Origin, m.cfg.Path, m.token)
	if err != nil {
		m.lastErr = err
		m.logger.Error("cannot build socket address", "origin", m.cfg.Origin, "error", err)
		m.transitionLocked(StateError, err)
		m.unlockAndEmit()
		return fmt.Errorf("build socket address: %w", err)
	}

	m.session++
	gen := m.session
	dialCtx, cancel := context.WithCancel(ctx)
	m.dialCancel = cancel
	m.transitionLocked(StateConnecting, nil)

	clientCfg := m.cfg.Client
	clientCfg.URL = addr
	c := m.newClient(clientCfg, m.logger.With("session", gen))
	attempt := m.attempts
	m.unlockAndEmit()

	m.logger.Info("connecting", "url", redactToken(addr), "attempt", attempt)
	err = c.Connect(dialCtx)
	cancel()

	m.mu.Lock()
	if gen != m.session {
		m.unlockAndEmit()
		if err == nil {
			c.Close()
		}
		return ErrConnectAborted
	}
	m.dialCancel = nil

	if err != nil {
		m.lastErr = err
		m.logger.Warn("connect failed", "error", err, "attempt", attempt)
		m.scheduleReconnectLocked(err)
		m.unlockAndEmit()
		return fmt.Errorf("connect: %w", err)
	}

	m.client = c
	m.sessions++
	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	m.sessionCtx = sessionCtx
	m.sessionCancel = sessionCancel
	m.transitionLocked(StateConnected, nil)

	m.wg.Add(1)
	go m.readLoop(sessionCtx, gen, c)

	m.beginAuthLocked(gen)
	m.unlockAndEmit()

	return nil
}

// CredentialChanged applies a sign-in or sign-out reported by a credential
// subscription. An empty token disconnects. Any other token connects, or
// retries authentication on an open session, through the credential source.
func (m *Manager) CredentialChanged(ctx context.Context, token string) error {
	if token == "" {
		m.Disconnect()
		return nil
	}
	return m.Connect(ctx, "")
}

// Disconnect closes the connection intentionally. It cancels any pending
// reconnect, stops the heartbeat, clears authentication and the room set,
// and keeps the Offline Queue. The transport is closed in the background.
// Disconnect is idempotent.
func (m *Manager) Disconnect() {
	if c := m.disconnect(); c != nil {
		go c.Close()
	}
}

// Close disconnects and waits for the manager's goroutines to exit.
func (m *Manager) Close(ctx context.Context) error {
	if c := m.disconnect(); c != nil {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) disconnect() Client {
	m.mu.Lock()
	m.intentional = true
	m.recovering = false
	m.cancelReconnectLocked()
	c := m.dropSessionLocked()
	m.rooms.Clear()

	if m.state != StateDisconnected {
		m.logger.Info("disconnected", "previous", m.state)
		m.transitionLocked(StateDisconnected, nil)
	}
	m.unlockAndEmit()
	return c
}

// Send transmits env if authenticated and queues it otherwise. The only
// error is an envelope that cannot be encoded.
func (m *Manager) Send(env protocol.Envelope) error {
	if _, err := protocol.Encode(env); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state == StateAuthenticated && m.client != nil {
		if err := m.writeLocked(env); err != nil {
			m.enqueueLocked(env)
			m.transportFailedLocked(err)
		}
	} else {
		m.enqueueLocked(env)
	}
	m.unlockAndEmit()
	return nil
}

// Authenticate sends an authenticate frame. The outcome arrives later as an
// authentication_success or authentication_failed frame.
func (m *Manager) Authenticate(token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	m.mu.Lock()
	if m.state != StateConnected && m.state != StateAuthenticated {
		m.mu.Unlock()
		return ErrNotConnected
	}
	err := m.sendAuthLocked(token)
	if err != nil {
		m.transportFailedLocked(err)
	}
	m.unlockAndEmit()
	return err
}

// beginAuthLocked starts authentication for session gen: the explicit token
// is sent at once, otherwise the credential source is asked.
func (m *Manager) beginAuthLocked(gen uint64) {
	m.startAuthTimerLocked(gen)

	if m.token != "" {
		if err := m.sendAuthLocked(m.token); err != nil {
			m.transportFailedLocked(err)
		}
		return
	}

	m.authInFlight = true
	m.wg.Add(1)
	go m.authenticateFromSource(m.sessionCtx, gen)
}

// reauthenticateLocked retries authentication on the open session, such as
// after a sign-in on a session that started without credentials.
func (m *Manager) reauthenticateLocked(token string) {
	if m.authInFlight {
		return
	}
	if token != "" {
		m.token = token
	}
	m.logger.Info("retrying authentication", "explicit_token", m.token != "")
	m.beginAuthLocked(m.session)
}

func (m *Manager) sendAuthLocked(token string) error {
	if err := m.writeLocked(protocol.Authenticate(token)); err != nil {
		return err
	}
	m.authInFlight = true
	return nil
}

// Join adds room to the room set and, when authenticated, asks the server to
// join it. Joining a room already in the set sends nothing.
func (m *Manager) Join(room string) error {
	if room == "" {
		return ErrEmptyRoom
	}

	m.mu.Lock()
	if m.rooms.Add(room) && m.state == StateAuthenticated {
		if err := m.writeLocked(protocol.JoinRoom(room)); err != nil {
			m.transportFailedLocked(err)
		}
	}
	m.unlockAndEmit()
	return nil
}

// Leave removes room from the room set and, when authenticated, asks the
// server to leave it. Leaving a room not in the set sends nothing.
func (m *Manager) Leave(room string) error {
	if room == "" {
		return ErrEmptyRoom
	}

	m.mu.Lock()
	if m.rooms.Remove(room) && m.state == StateAuthenticated {
		if err := m.writeLocked(protocol.LeaveRoom(room)); err != nil {
			m.transportFailedLocked(err)
		}
	}
	m.unlockAndEmit()
	return nil
}

// Status returns the current connection state.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether the current session is authenticated.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// JoinedRooms returns a snapshot of the room set in join order.
func (m *Manager) JoinedRooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms.Snapshot()
}

// QueueLen returns the number of envelopes waiting in the Offline Queue.
func (m *Manager) QueueLen() int {
	return m.queue.Len()
}

// LastError returns the error behind the most recent failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queue.Stats()
	return ManagerStats{
		State:         m.state,
		Authenticated: m.authenticated,
		Attempts:      m.attempts,
		Rooms:         m.rooms.Len(),
		Queued:        q.Count,
		QueueDropped:  q.Dropped,
		Sessions:      m.sessions,
	}
}

// Router returns the Message Router inbound frames are dispatched to.
func (m *Manager) Router() *router.Router {
	return m.router
}

// On registers a listener for message type t.
func (m *Manager) On(t protocol.MessageType, fn router.Listener) router.Handle {
	return m.router.On(t, fn)
}

// Off removes a listener registered with On.
func (m *Manager) Off(h router.Handle) bool {
	return m.router.Off(h)
}

// OnAny registers a listener for every message type.
func (m *Manager) OnAny(fn router.Listener) router.Handle {
	return m.router.OnAny(fn)
}

// OffAny removes a listener registered with OnAny.
func (m *Manager) OffAny(h router.Handle) bool {
	return m.router.OffAny(h)
}

// OnStatus registers fn for every state transition.
func (m *Manager) OnStatus(fn func(StatusEvent)) listener.ID {
	return m.status.Add(fn)
}

// OffStatus removes a status listener.
func (m *Manager) OffStatus(id listener.ID) bool {
	return m.status.Remove(id)
}

// OnNotice registers fn for user-facing notices.
func (m *Manager) OnNotice(fn func(Notice)) listener.ID {
	return m.notices.Add(fn)
}

// OffNotice removes a notice listener.
func (m *Manager) OffNotice(id listener.ID) bool {
	return m.notices.Remove(id)
}

// readLoop forwards frames from one session's transport until the session
// ends or the transport fails.
func (m *Manager) readLoop(ctx context.Context, gen uint64, c Client) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-c.Errors():
			// Frames read before the failure still go out first.
			m.drain(gen, c)
			m.handleClose(gen, err)
			return

		case msg := <-c.Messages():
			m.handleFrame(gen, msg)
		}
	}
}

func (m *Manager) drain(gen uint64, c Client) {
	for {
		select {
		case msg := <-c.Messages():
			m.handleFrame(gen, msg)
		default:
			return
		}
	}
}

// handleFrame decodes one inbound frame, applies the control frames to the
// state machine and dispatches everything to the router.
func (m *Manager) handleFrame(gen uint64, msg TimestampedMessage) {
	env, ok := m.router.Decode(msg.Data)
	if !ok {
		return
	}

	m.mu.Lock()
	if gen != m.session {
		m.mu.Unlock()
		return
	}

	switch env.Type {
	case protocol.TypeAuthenticationSuccess:
		m.authSucceededLocked(env)
	case protocol.TypeAuthenticationFailed:
		m.authFailedLocked(env)
	case protocol.TypeNotification:
		m.noticeFromNotificationLocked(env)
	case protocol.TypeAlert:
		m.noticeFromAlertLocked(env)
	}
	m.unlockAndEmit()

	m.router.Dispatch(env)
}

func (m *Manager) authSucceededLocked(env protocol.Envelope) {
	m.authInFlight = false
	if m.state != StateConnected {
		m.logger.Debug("ignoring authentication_success", "state", m.state)
		return
	}

	m.stopAuthTimerLocked()
	m.authenticated = true
	m.attempts = 0
	m.lastErr = nil

	if auth, err := protocol.DecodePayload[protocol.AuthSuccess](env); err == nil {
		m.logger.Info("authenticated", "user_id", auth.UserID, "role", auth.Role)
	} else {
		m.logger.Info("authenticated")
	}

	m.transitionLocked(StateAuthenticated, nil)
	m.recovering = false
	m.heartbeat.Start()

	if !m.flushQueueLocked() {
		return
	}
	for _, room := range m.rooms.Snapshot() {
		if err := m.writeLocked(protocol.JoinRoom(room)); err != nil {
			m.transportFailedLocked(err)
			return
		}
	}
}

func (m *Manager) authFailedLocked(env protocol.Envelope) {
	m.stopAuthTimerLocked()
	m.authInFlight = false
	m.lastErr = ErrAuthenticationFail

	failure, _ := protocol.DecodePayload[protocol.AuthFailure](env)
	m.logger.Warn("authentication failed", "reason", failure.Reason, "code", failure.Code)

	msg := failure.Reason
	if msg == "" {
		msg = "The server rejected the credentials."
	}
	m.noticeLocked(Notice{
		Level:   LevelError,
		Title:   "Authentication failed",
		Message: msg,
		Type:    env.Type,
	})
}

func (m *Manager) noticeFromNotificationLocked(env protocol.Envelope) {
	n, err := protocol.DecodePayload[protocol.Notification](env)
	if err != nil {
		return
	}
	level := n.Level
	if level == "" {
		level = LevelInfo
	}
	m.noticeLocked(Notice{
		Level:   level,
		Title:   n.Title,
		Message: n.Message,
		Type:    env.Type,
	})
}

func (m *Manager) noticeFromAlertLocked(env protocol.Envelope) {
	a, err := protocol.DecodePayload[protocol.Alert](env)
	if err != nil {
		return
	}
	level := LevelWarning
	if a.Severity == "high" || a.Severity == "critical" {
		level = LevelError
	}
	m.noticeLocked(Notice{
		Level:      level,
		Title:      a.Title,
		Message:    a.Message,
		Persistent: true,
		Type:       env.Type,
	})
}

// flushQueueLocked sends every queued envelope in FIFO order. On a write
// failure the unsent remainder goes back in the queue, in order.
func (m *Manager) flushQueueLocked() bool {
	items := m.queue.Drain()
	if len(items) > 0 {
		m.logger.Info("flushing offline queue", "count", len(items))
	}

	for i, env := range items {
		if err := m.writeLocked(env); err != nil {
			for _, rest := range items[i:] {
				m.queue.Enqueue(rest)
			}
			m.transportFailedLocked(err)
			return false
		}
	}
	return true
}

// handleClose reacts to the transport of session gen going away.
func (m *Manager) handleClose(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.session || m.intentional {
		m.mu.Unlock()
		return
	}

	if errors.Is(err, ErrStaleConnection) {
		m.lastErr = err
		m.transitionLocked(StateError, err)
	}

	m.logger.Warn("connection closed unexpectedly",
		"error", err,
		"close_code", closeCode(err),
		"state", m.state,
	)
	if c := m.dropSessionLocked(); c != nil {
		go c.Close()
	}
	m.scheduleReconnectLocked(fmt.Errorf("%w: %w", ErrUnexpectedClose, err))
	m.unlockAndEmit()
}

// transportFailedLocked handles a live transport error. The error is
// reported as Error, then the session is torn down and the resulting close
// drives the reconnect.
func (m *Manager) transportFailedLocked(err error) {
	if m.client == nil {
		return
	}

	m.logger.Warn("transport error", "error", err, "state", m.state)
	m.lastErr = err
	m.transitionLocked(StateError, err)

	if c := m.dropSessionLocked(); c != nil {
		go c.Close()
	}
	m.scheduleReconnectLocked(err)
}

// scheduleReconnectLocked arms the single reconnect timer, or moves to Error
// when reconnecting is disabled or the attempts are used up.
func (m *Manager) scheduleReconnectLocked(cause error) {
	m.cancelReconnectLocked()

	if !m.cfg.ReconnectEnabled {
		m.lastErr = ErrReconnectDisabled
		m.transitionLocked(StateError, fmt.Errorf("%w: %w", ErrReconnectDisabled, cause))
		return
	}

	m.attempts++
	delay, ok := m.policy.Next(m.attempts)
	if !ok {
		m.recovering = false
		m.lastErr = ErrReconnectExhausted
		m.logger.Error("giving up reconnect",
			"attempts", m.attempts-1,
			"error", cause,
		)
		m.transitionLocked(StateError, ErrReconnectExhausted)
		return
	}

	m.recovering = true
	m.reconnectSeq++
	seq := m.reconnectSeq
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.open(context.Background(), "", false, seq)
	})

	m.logger.Info("reconnect scheduled",
		"attempt", m.attempts,
		"delay", delay,
		"max_attempts", m.policy.MaxAttempts,
	)
	m.emitStatusLocked(StateReconnecting, cause, m.attempts, delay)
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	// Invalidates a timer callback that already fired but has not run yet.
	m.reconnectSeq++
}

// dropSessionLocked ends the current session and returns its transport for
// the caller to close.
func (m *Manager) dropSessionLocked() Client {
	m.stopAuthTimerLocked()
	m.heartbeat.Stop()
	m.authenticated = false
	m.authInFlight = false
	m.session++

	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCancel = nil
	}
	m.sessionCtx = nil
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}

	c := m.client
	m.client = nil
	return c
}

func (m *Manager) startAuthTimerLocked(gen uint64) {
	m.stopAuthTimerLocked()
	if m.cfg.AuthTimeout <= 0 {
		return
	}
	m.authTimer = time.AfterFunc(m.cfg.AuthTimeout, func() {
		m.authTimedOut(gen)
	})
}

func (m *Manager) stopAuthTimerLocked() {
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
}

func (m *Manager) authTimedOut(gen uint64) {
	m.mu.Lock()
	if gen != m.session || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.authTimer = nil
	m.lastErr = ErrAuthTimeout
	m.logger.Warn("authentication timed out", "timeout", m.cfg.AuthTimeout)

	if c := m.dropSessionLocked(); c != nil {
		go c.Close()
	}
	m.scheduleReconnectLocked(ErrAuthTimeout)
	m.unlockAndEmit()
}

// authenticateFromSource asks the credential source for a token and sends
// the authenticate frame for session gen.
func (m *Manager) authenticateFromSource(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	if m.creds == nil {
		m.noCredential(gen, ErrNoCredentialSource)
		return
	}

	if m.cfg.CredentialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CredentialTimeout)
		defer cancel()
	}

	token, err := m.creds.Token(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		// The auth timer, if any, turns this into a reconnect.
		m.logger.Warn("credential lookup failed", "error", err)
		m.mu.Lock()
		if gen == m.session {
			m.authInFlight = false
		}
		m.mu.Unlock()
		return
	}
	if token == "" {
		m.noCredential(gen, nil)
		return
	}

	m.mu.Lock()
	if gen != m.session || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.authInFlight = false
	if err := m.sendAuthLocked(token); err != nil {
		m.transportFailedLocked(err)
	}
	m.unlockAndEmit()
}

// noCredential leaves the session Connected and unauthenticated.
func (m *Manager) noCredential(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.session {
		m.mu.Unlock()
		return
	}
	m.stopAuthTimerLocked()
	m.authInFlight = false
	m.logger.Warn("no credential available, staying unauthenticated", "error", err)
	m.noticeLocked(Notice{
		Level:   LevelWarning,
		Title:   "Not signed in",
		Message: "Connected without credentials; live updates are unavailable.",
	})
	m.unlockAndEmit()
}

// beat sends one heartbeat ping.
func (m *Manager) beat() {
	m.mu.Lock()
	if m.state != StateAuthenticated || m.client == nil {
		m.mu.Unlock()
		return
	}
	if err := m.writeLocked(protocol.Ping()); err != nil {
		m.transportFailedLocked(err)
	}
	m.unlockAndEmit()
}

func (m *Manager) writeLocked(env protocol.Envelope) error {
	if m.client == nil {
		return ErrNotConnected
	}

	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	if err := m.client.Send(data); err != nil {
		if m.hooks.OnSendFailed != nil {
			m.hooks.OnSendFailed(env.Type, err)
		}
		return fmt.Errorf("send %s: %w", env.Type, err)
	}

	m.logger.Debug("frame sent", "type", env.Type, "message_id", env.MessageID)
	if m.hooks.OnFrameSent != nil {
		m.hooks.OnFrameSent(env.Type)
	}
	return nil
}

func (m *Manager) enqueueLocked(env protocol.Envelope) {
	evicted, dropped := m.queue.Enqueue(env)

	m.logger.Debug("queued while offline", "type", env.Type, "queued", m.queue.Len())
	if m.hooks.OnQueued != nil {
		m.hooks.OnQueued(env.Type)
	}

	if dropped {
		m.logger.Warn("offline queue full, dropped oldest",
			"type", evicted.Type,
			"message_id", evicted.MessageID,
			"max", m.cfg.QueueSize,
		)
		if m.hooks.OnQueueDrop != nil {
			m.hooks.OnQueueDrop(evicted.Type)
		}
	}
}

func (m *Manager) transitionLocked(next State, err error) {
	m.emitStatusLocked(next, err, 0, 0)
}

// emitStatusLocked records a transition and the notice it implies. Events
// are delivered by unlockAndEmit.
func (m *Manager) emitStatusLocked(next State, err error, attempt int, delay time.Duration) {
	prev := m.state
	m.state = next
	if next != StateAuthenticated {
		m.authenticated = false
	}

	now := time.Now()
	ev := StatusEvent{
		State:         next,
		Previous:      prev,
		Authenticated: m.authenticated,
		Attempt:       attempt,
		Delay:         delay,
		Err:           err,
		At:            now,
	}
	m.events = append(m.events, event{status: &ev})

	switch next {
	case StateAuthenticated:
		n := Notice{Level: LevelSuccess, Title: "Connected", Message: "Live updates are on."}
		if m.recovering {
			n.Title = "Back online"
			n.Message = "Connection restored."
		}
		m.noticeLocked(n)

	case StateReconnecting:
		m.noticeLocked(Notice{
			Level:   LevelWarning,
			Title:   "Connection lost",
			Message: fmt.Sprintf("Reconnecting in %s (attempt %d).", delay.Round(time.Millisecond), attempt),
		})

	case StateError:
		if errors.Is(err, ErrReconnectExhausted) {
			m.noticeLocked(Notice{
				Level:      LevelError,
				Title:      "Offline",
				Message:    "Could not reach the server. Connect again to retry.",
				Persistent: true,
			})
			break
		}
		msg := "The connection failed."
		if err != nil {
			msg = err.Error()
		}
		m.noticeLocked(Notice{Level: LevelError, Title: "Connection error", Message: msg})
	}
}

func (m *Manager) noticeLocked(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	m.events = append(m.events, event{notice: &n})
}

// unlockAndEmit releases m.mu and delivers pending events in the order they
// were recorded. Only one goroutine delivers at a time; events recorded
// meanwhile, including by listeners, are picked up by that goroutine.
func (m *Manager) unlockAndEmit() {
	if m.flushing || len(m.events) == 0 {
		m.mu.Unlock()
		return
	}

	m.flushing = true
	for len(m.events) > 0 {
		batch := m.events
		m.events = nil
		m.mu.Unlock()

		for _, ev := range batch {
			switch {
			case ev.status != nil:
				m.status.Emit(*ev.status, m.listenerPanicked("status"))
			case ev.notice != nil:
				m.notices.Emit(*ev.notice, m.listenerPanicked("notice"))
			}
		}

		m.mu.Lock()
	}
	m.flushing = false
	m.mu.Unlock()
}

func (m *Manager) listenerPanicked(kind string) func(listener.ID, error) {
	return func(id listener.ID, err error) {
		m.logger.Error("listener failed", "kind", kind, "listener", id, "error", err)
	}
}

// closeCode extracts the WebSocket close code, or -1.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}
