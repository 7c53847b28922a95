// Package connectivity watches the network and the session and decides when
// the sync queue is drained.
package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apiclient "github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/client/auth"
	"github.com/iudanet/offsync/internal/client/bus"
	syncmgr "github.com/iudanet/offsync/internal/client/sync"
	"github.com/iudanet/offsync/internal/models"
)

//go:generate moq -out drainer_mock.go . Drainer

// Drainer runs a drain pass
type Drainer interface {
	Drain(ctx context.Context, opts ...syncmgr.DrainOption) (*syncmgr.Result, error)
}

// Pinger checks that the remote API is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Session is the credential lifecycle the coordinator drives
type Session interface {
	Current(ctx context.Context) (*models.Credentials, error)
	Refresh(ctx context.Context) (*models.Credentials, error)
	ForgetSession(ctx context.Context) error
}

// QueueLen reports how many operations are waiting
type QueueLen interface {
	Len(ctx context.Context) (int, error)
}

// SessionState describes the credentials as seen by the engine
type SessionState string

const (
	SessionValid     SessionState = "valid"
	SessionGrace     SessionState = "grace"  // токен истек, обновить пока не удалось
	SessionReauth    SessionState = "reauth" // нужен новый логин, очередь сохранена
	SessionLoggedOut SessionState = "logged-out"
)

// Значения по умолчанию
const (
	DefaultPingInterval         = 15 * time.Second
	DefaultRetryInterval        = 30 * time.Second
	DefaultRefreshBefore        = time.Minute
	DefaultRefreshCheckInterval = 20 * time.Second
	DefaultPingTimeout          = 5 * time.Second
)

// Config of the coordinator. PingInterval < 0 disables health pings;
// connectivity is then driven by SetOnline only.
type Config struct {
	PingInterval         time.Duration
	PingTimeout          time.Duration
	RetryInterval        time.Duration
	RefreshBefore        time.Duration
	RefreshCheckInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.RefreshBefore <= 0 {
		c.RefreshBefore = DefaultRefreshBefore
	}
	if c.RefreshCheckInterval <= 0 {
		c.RefreshCheckInterval = DefaultRefreshCheckInterval
	}
	return c
}

// Status is a snapshot of the coordinator
type Status struct {
	Session SessionState
	Online  bool
}

// trigger is a pending drain request; concurrent requests merge into one
type trigger struct {
	reason        string
	ignoreBackoff bool
}

// Coordinator triggers drains on reconnect, on bus messages and on a retry
// timer, and keeps the session fresh.
type Coordinator struct {
	drainer  Drainer
	pinger   Pinger
	session  Session
	queue    QueueLen
	events   *bus.Bus[bus.Event]
	messages *bus.Bus[bus.Message]
	logger   *slog.Logger
	now      func() time.Time
	kick     chan struct{}
	pending  *trigger
	cfg      Config
	state    SessionState
	mu       sync.Mutex // защищает pending, draining и state
	draining bool       // проход Drain выполняется прямо сейчас
	online   atomic.Bool
}

// New creates a coordinator. pinger may be nil when PingInterval < 0;
// events and messages may be nil.
func New(
	drainer Drainer,
	pinger Pinger,
	session Session,
	queue QueueLen,
	events *bus.Bus[bus.Event],
	messages *bus.Bus[bus.Message],
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		drainer:  drainer,
		pinger:   pinger,
		session:  session,
		queue:    queue,
		events:   events,
		messages: messages,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		kick:     make(chan struct{}, 1),
		state:    SessionLoggedOut,
	}
}

// SetClock replaces the time source, tests only
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Online reports the last known connectivity
func (c *Coordinator) Online() bool {
	return c.online.Load()
}

// Status returns connectivity and session state
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Online: c.online.Load(), Session: c.state}
}

// SetOnline records connectivity. An offline to online edge requests a
// drain that ignores backoff.
func (c *Coordinator) SetOnline(online bool) {
	prev := c.online.Swap(online)
	if prev == online {
		return
	}

	c.logger.Info("Connectivity changed", "online", online)
	c.publish(bus.Event{Kind: bus.EventConnectivityChanged, Online: online})

	if online {
		c.Trigger("reconnect", true)
	}
}

// Trigger requests a drain. Requests arriving before the worker picks them
// up are merged; ignoreBackoff wins if any request asked for it. A request
// arriving while a pass is running is dropped, it does not schedule another one.
func (c *Coordinator) Trigger(reason string, ignoreBackoff bool) {
	if !c.schedule(reason, ignoreBackoff, false) {
		c.logger.Debug("Drain already running, trigger dropped", "reason", reason)
	}
}

// schedule records a drain request for the worker. Unless force is set the
// request is refused while a pass is running.
func (c *Coordinator) schedule(reason string, ignoreBackoff, force bool) bool {
	c.mu.Lock()
	if c.draining && !force {
		c.mu.Unlock()
		return false
	}
	if c.pending == nil {
		c.pending = &trigger{reason: reason}
	}
	c.pending.ignoreBackoff = c.pending.ignoreBackoff || ignoreBackoff
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
	return true
}

// OnLogin is called after a successful interactive login
func (c *Coordinator) OnLogin() {
	c.setState(SessionValid)
	c.Trigger("login", true)
}

// Run drives the coordinator until ctx is done
func (c *Coordinator) Run(ctx context.Context) error {
	// начальное состояние сессии
	c.checkSession(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.drainLoop(ctx)
		return nil
	})
	g.Go(func() error {
		c.watchLoop(ctx)
		return nil
	})

	return g.Wait()
}

func (c *Coordinator) drainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			c.mu.Lock()
			t := c.pending
			c.pending = nil
			c.draining = t != nil
			c.mu.Unlock()

			if t != nil {
				c.drainOnce(ctx, *t)
				c.setDraining(false)
			}
		}
	}
}

func (c *Coordinator) watchLoop(ctx context.Context) {
	var pingC <-chan time.Time
	if c.cfg.PingInterval > 0 && c.pinger != nil {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		pingC = ticker.C
		c.ping(ctx)
	}

	retryTicker := time.NewTicker(c.cfg.RetryInterval)
	defer retryTicker.Stop()

	refreshTicker := time.NewTicker(c.cfg.RefreshCheckInterval)
	defer refreshTicker.Stop()

	var messages <-chan bus.Message
	if c.messages != nil {
		ch, unsubscribe := c.messages.Subscribe(64)
		defer unsubscribe()
		messages = ch
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingC:
			c.ping(ctx)
		case <-retryTicker.C:
			c.retryTick(ctx)
		case <-refreshTicker.C:
			c.checkSession(ctx)
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			c.HandleMessage(msg)
		}
	}
}

// HandleMessage reacts to a cross-context message
func (c *Coordinator) HandleMessage(msg bus.Message) {
	switch msg.Type {
	case bus.MessageSyncRequested:
		reason := "sync-requested"
		if p, err := msg.SyncRequested(); err == nil && p.Reason != "" {
			reason = p.Reason
		}
		c.Trigger(reason, true)
	case bus.MessageOperationQueued:
		if c.Online() {
			c.Trigger("operation-queued", false)
		}
	default:
		c.logger.Debug("Ignoring message", "type", msg.Type)
	}
}

func (c *Coordinator) ping(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.PingTimeout)
	defer cancel()

	err := c.pinger.Ping(pingCtx)
	if ctx.Err() != nil {
		return
	}
	c.SetOnline(err == nil)
}

func (c *Coordinator) retryTick(ctx context.Context) {
	if !c.Online() {
		return
	}
	n, err := c.queue.Len(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to read queue length", "error", err)
		return
	}
	if n > 0 {
		c.Trigger("retry-timer", false)
	}
}

func (c *Coordinator) drainOnce(ctx context.Context, t trigger) {
	if !c.Online() {
		c.logger.DebugContext(ctx, "Offline, drain skipped", "reason", t.reason)
		return
	}
	if !c.checkSession(ctx) {
		c.logger.DebugContext(ctx, "No valid session, drain skipped", "reason", t.reason)
		return
	}

	opts := []syncmgr.DrainOption{syncmgr.WithReason(t.reason)}
	if t.ignoreBackoff {
		opts = append(opts, syncmgr.WithIgnoreBackoff())
	}

	_, err := c.drainer.Drain(ctx, opts...)
	switch {
	case err == nil:
	case errors.Is(err, syncmgr.ErrDrainInProgress):
		c.logger.DebugContext(ctx, "Drain already running", "reason", t.reason)
	case errors.Is(err, syncmgr.ErrUnauthenticated):
		// сервер отверг токен: пробуем обновить и повторить
		// повтор после refresh планируется в обход отбрасывания
		if c.refresh(ctx) {
			c.schedule("token-refreshed", t.ignoreBackoff, true)
		}
	case errors.Is(err, syncmgr.ErrAborted), ctx.Err() != nil:
	default:
		c.logger.WarnContext(ctx, "Drain failed", "reason", t.reason, "error", err)
	}
}

// checkSession refreshes the access token if it expires soon and reports
// whether a valid token is available now.
func (c *Coordinator) checkSession(ctx context.Context) bool {
	creds, err := c.session.Current(ctx)
	if err != nil {
		if !errors.Is(err, auth.ErrNotAuthenticated) {
			c.logger.WarnContext(ctx, "Failed to load session", "error", err)
			return false
		}
		// после принудительного выхода состояние reauth сохраняется до логина
		if c.State() != SessionReauth {
			c.setState(SessionLoggedOut)
		}
		return false
	}

	now := c.now()
	if !creds.AccessExpiresWithin(now, c.cfg.RefreshBefore) {
		c.setState(SessionValid)
		return true
	}

	if !c.Online() {
		// Офлайн: не обновляем, мутации продолжают вставать в очередь
		if !creds.AccessValid(now) {
			c.enterGrace(ctx, nil)
			return false
		}
		return true
	}

	if c.refresh(ctx) {
		return true
	}
	// refresh не удался, но текущий токен еще может быть жив
	return creds.AccessValid(now) && c.State() != SessionReauth
}

// refresh exchanges the refresh token and updates the session state
func (c *Coordinator) refresh(ctx context.Context) bool {
	_, err := c.session.Refresh(ctx)
	if err == nil {
		c.setState(SessionValid)
		c.publish(bus.Event{Kind: bus.EventSessionRefreshed})
		c.logger.InfoContext(ctx, "Session refreshed")
		return true
	}

	if auth.NeedsLogin(err) && c.Online() && !apiclient.IsTransient(err) {
		c.forceReauth(ctx, err)
		return false
	}

	c.enterGrace(ctx, err)
	return false
}

func (c *Coordinator) enterGrace(ctx context.Context, err error) {
	if c.State() == SessionGrace {
		return
	}
	c.setState(SessionGrace)
	c.publish(bus.Event{Kind: bus.EventSessionGrace, Err: err})
	c.logger.WarnContext(ctx, "Session in grace window, operations keep queueing", "error", err)
}

// forceReauth drops the credentials; the sync queue is left as is
func (c *Coordinator) forceReauth(ctx context.Context, cause error) {
	if err := c.session.ForgetSession(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Failed to drop session", "error", err)
	}
	c.setState(SessionReauth)
	c.publish(bus.Event{Kind: bus.EventReauthRequired, Err: cause})
	c.logger.WarnContext(ctx, "Re-authentication required", "error", cause)
}

// State returns the session state
func (c *Coordinator) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Coordinator) setDraining(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = v
}

func (c *Coordinator) publish(ev bus.Event) {
	if c.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	c.events.Publish(ev)
}
