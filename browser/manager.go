// Package browser owns the shared headless browser session.
//
// A Manager holds at most one Session at a time. Ensure launches it on
// demand, retrying with orphan cleanup when a launch fails, and an idle timer
// closes it after it has gone unused for the configured keep-alive period.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/models"
)

// ErrUnavailable is returned by Ensure once every launch attempt has failed.
var ErrUnavailable = errors.New("browser unavailable")

// Session is one connected browser.
type Session interface {
	// ID identifies the session to its Provider.
	ID() string
	// Connected reports whether the browser still answers.
	Connected() bool
	// NewPage opens a blank tab.
	NewPage() (*rod.Page, error)
	// Close releases the remote resource. Closing twice is not an error.
	Close() error
}

// Provider launches and enumerates browser sessions.
type Provider interface {
	Launch(ctx context.Context) (Session, error)
	// Sessions lists the IDs of every session the provider still knows about.
	Sessions(ctx context.Context) ([]string, error)
	// Connect attaches to an existing session by ID.
	Connect(ctx context.Context, id string) (Session, error)
}

// Observer receives lifecycle events. Metrics hook in here.
type Observer interface {
	Launched(ok bool)
	IdleShutdown()
}

type nopObserver struct{}

func (nopObserver) Launched(bool) {}
func (nopObserver) IdleShutdown() {}

// Manager serializes launch, reuse and shutdown of the shared session.
// It is safe for concurrent use.
type Manager struct {
	provider  Provider
	retries   int
	tick      time.Duration
	keepAlive time.Duration
	observer  Observer

	// launchMu serializes Ensure so concurrent callers never launch twice.
	launchMu sync.Mutex

	mu      sync.Mutex
	session Session
	idle    time.Duration
	active  int
	timer   *time.Timer
	pending bool
	closed  bool

	// afterFunc is time.AfterFunc, swapped in tests.
	afterFunc func(time.Duration, func()) *time.Timer

	// liveness bounds Session.Connected; a session that does not answer in
	// time is treated as stale.
	liveness time.Duration

	launches atomic.Int64
}

// NewManager creates a Manager. No browser is started until Ensure is called.
func NewManager(p Provider, cfg config.BrowserConfig, obs Observer) *Manager {
	if obs == nil {
		obs = nopObserver{}
	}
	retries := cfg.LaunchRetries
	if retries <= 0 {
		retries = 3
	}
	tick := cfg.IdleTick
	if tick <= 0 {
		tick = 10 * time.Second
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 60 * time.Second
	}
	// A keep-alive shorter than one tick would close a session on the first
	// tick after it was handed out.
	if keepAlive < tick {
		keepAlive = tick
	}
	return &Manager{
		provider:  p,
		retries:   retries,
		tick:      tick,
		keepAlive: keepAlive,
		observer:  obs,
		afterFunc: time.AfterFunc,
		liveness:  5 * time.Second,
	}
}

// Ensure returns a connected session, launching one if there is none or the
// current one stopped answering. It fails with ErrUnavailable only after
// every attempt has failed; before each retry the provider's known sessions
// are connected to and closed so orphaned browsers do not pile up.
func (m *Manager) Ensure(ctx context.Context) (Session, error) {
	return m.ensure(ctx, false)
}

// Acquire is Ensure plus a hold on the session: the idle timer does not
// advance while any hold is outstanding. The hold is taken before launchMu
// is released, so no tick can close the session in between. The returned
// release func must be called exactly once.
func (m *Manager) Acquire(ctx context.Context) (Session, func(), error) {
	s, err := m.ensure(ctx, true)
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	return s, func() {
		once.Do(func() {
			m.mu.Lock()
			m.active--
			m.idle = 0
			m.mu.Unlock()
		})
	}, nil
}

func (m *Manager) ensure(ctx context.Context, hold bool) (Session, error) {
	m.launchMu.Lock()
	defer m.launchMu.Unlock()

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, models.NewScrapeError(models.ErrCodeBrowserUnavailable, "browser manager closed", ErrUnavailable)
	}

	if s := m.current(); s != nil {
		if m.alive(s) {
			m.touch(hold)
			return s, nil
		}
		slog.Warn("stale browser session detected, relaunching", "session", s.ID())
		m.drop(s)
	}

	budget := m.retries
	for {
		if err := ctx.Err(); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserUnavailable, "browser launch canceled", err)
		}

		s, err := m.provider.Launch(ctx)
		if err == nil {
			m.launches.Add(1)
			m.observer.Launched(true)
			slog.Info("browser session launched", "session", s.ID())
			m.install(s, hold)
			return s, nil
		}

		m.observer.Launched(false)
		budget--
		slog.Error("browser launch failed", "error", err, "attemptsLeft", budget)
		if budget <= 0 {
			return nil, models.NewScrapeError(models.ErrCodeBrowserUnavailable, "could not start browser instance", errors.Join(ErrUnavailable, err))
		}
		m.reclaimOrphans(ctx)
	}
}

// alive runs the liveness check with a deadline.
func (m *Manager) alive(s Session) bool {
	done := make(chan bool, 1)
	go func() { done <- s.Connected() }()

	t := time.NewTimer(m.liveness)
	defer t.Stop()
	select {
	case ok := <-done:
		return ok
	case <-t.C:
		slog.Warn("browser liveness check timed out", "session", s.ID(), "timeout", m.liveness)
		return false
	}
}

// reclaimOrphans closes every session the provider still tracks.
func (m *Manager) reclaimOrphans(ctx context.Context) {
	ids, err := m.provider.Sessions(ctx)
	if err != nil {
		slog.Warn("listing browser sessions failed", "error", err)
		return
	}
	for _, id := range ids {
		s, err := m.provider.Connect(ctx, id)
		if err != nil {
			slog.Warn("connecting to orphaned session failed", "session", id, "error", err)
			continue
		}
		if err := s.Close(); err != nil {
			slog.Warn("closing orphaned session failed", "session", id, "error", err)
			continue
		}
		slog.Info("closed orphaned browser session", "session", id)
	}
}

func (m *Manager) current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// install makes s the current session and arms the idle timer.
func (m *Manager) install(s Session, hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.idle = 0
	if hold {
		m.active++
	}
	m.armLocked()
}

// touch resets the idle counter and arms the timer if it is not pending.
func (m *Manager) touch(hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle = 0
	if hold {
		m.active++
	}
	m.armLocked()
}

// drop forgets s and closes it in the background; a session that failed
// its liveness check may not answer Close either.
func (m *Manager) drop(s Session) {
	m.mu.Lock()
	if m.session == s {
		m.session = nil
	}
	m.mu.Unlock()
	go func() {
		if err := s.Close(); err != nil {
			slog.Debug("closing stale session returned error", "session", s.ID(), "error", err)
		}
	}()
}

func (m *Manager) armLocked() {
	if m.pending || m.closed {
		return
	}
	m.pending = true
	m.timer = m.afterFunc(m.tick, m.onTick)
}

func (m *Manager) onTick() {
	m.mu.Lock()
	m.pending = false
	m.mu.Unlock()
	m.advance()
}

// advance adds one tick to the idle counter. Below the keep-alive threshold
// the timer is re-armed; at the threshold the session is closed.
func (m *Manager) advance() {
	m.mu.Lock()
	if m.session == nil || m.closed {
		m.mu.Unlock()
		return
	}
	if m.active == 0 {
		m.idle += m.tick
	}
	if m.idle < m.keepAlive {
		m.armLocked()
		m.mu.Unlock()
		return
	}
	s := m.session
	m.session = nil
	m.idle = 0
	m.mu.Unlock()

	slog.Info("closing idle browser session", "session", s.ID(), "keepAlive", m.keepAlive)
	m.observer.IdleShutdown()
	if err := s.Close(); err != nil {
		slog.Debug("idle close returned error", "session", s.ID(), "error", err)
	}
}

// Stats returns a snapshot of the session state.
func (m *Manager) Stats() models.BrowserStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := models.BrowserStats{
		IdleSeconds: int(m.idle / time.Second),
		Launches:    m.launches.Load(),
	}
	if m.session != nil {
		st.Connected = true
		st.SessionID = m.session.ID()
	}
	return st
}

// Close stops the idle timer and closes the current session.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (m *Manager) Close() error {
	m.launchMu.Lock()
	defer m.launchMu.Unlock()

	m.mu.Lock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.pending = false
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	slog.Info("browser manager shutting down", "session", s.ID())
	return s.Close()
}
