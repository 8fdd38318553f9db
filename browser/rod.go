package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/markdowner/config"
)

// RodProvider launches local Chromium through the rod launcher, or connects
// to a remote DevTools endpoint when CDPURL is configured. Every session it
// creates is tracked until closed so that Sessions can report orphans.
type RodProvider struct {
	cfg config.BrowserConfig

	mu      sync.Mutex
	tracked map[string]*launcher.Launcher // nil launcher for remote sessions
}

// NewRodProvider creates a provider for cfg.
func NewRodProvider(cfg config.BrowserConfig) *RodProvider {
	return &RodProvider{cfg: cfg, tracked: make(map[string]*launcher.Launcher)}
}

// Launch starts (or attaches to) a browser and connects to it.
func (p *RodProvider) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.cfg.CDPURL != "" {
		b := rod.New().ControlURL(p.cfg.CDPURL)
		if err := b.Connect(); err != nil {
			return nil, fmt.Errorf("connect to remote browser: %w", err)
		}
		p.track(p.cfg.CDPURL, nil)
		return &rodSession{id: p.cfg.CDPURL, browser: b, provider: p}, nil
	}

	l := p.newLauncher()
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	p.track(controlURL, l)
	return &rodSession{id: controlURL, browser: b, launcher: l, provider: p}, nil
}

// Sessions lists every session launched by p that has not been closed.
func (p *RodProvider) Sessions(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.tracked))
	for id := range p.tracked {
		ids = append(ids, id)
	}
	return ids, nil
}

// Connect attaches to the session with the given control URL.
func (p *RodProvider) Connect(_ context.Context, id string) (Session, error) {
	p.mu.Lock()
	l := p.tracked[id]
	p.mu.Unlock()

	b := rod.New().ControlURL(id)
	if err := b.Connect(); err != nil {
		// An unreachable local browser is still a process worth killing.
		if l != nil {
			l.Kill()
			p.untrack(id)
		}
		return nil, fmt.Errorf("connect to session %s: %w", id, err)
	}
	return &rodSession{id: id, browser: b, launcher: l, provider: p}, nil
}

func (p *RodProvider) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(p.cfg.Headless).
		NoSandbox(p.cfg.NoSandbox)

	if p.cfg.BrowserBin != "" {
		l = l.Bin(p.cfg.BrowserBin)
	}
	if p.cfg.Proxy != "" {
		l = l.Proxy(p.cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

func (p *RodProvider) track(id string, l *launcher.Launcher) {
	p.mu.Lock()
	p.tracked[id] = l
	p.mu.Unlock()
}

func (p *RodProvider) untrack(id string) {
	p.mu.Lock()
	delete(p.tracked, id)
	p.mu.Unlock()
}

const versionTimeout = 2 * time.Second

type rodSession struct {
	id       string
	browser  *rod.Browser
	launcher *launcher.Launcher
	provider *RodProvider

	once     sync.Once
	closeErr error
}

func (s *rodSession) ID() string { return s.id }

// Connected asks the browser for its version; any answer within
// versionTimeout means it is alive.
func (s *rodSession) Connected() bool {
	_, err := s.browser.Timeout(versionTimeout).Version()
	return err == nil
}

func (s *rodSession) NewPage() (*rod.Page, error) {
	return s.browser.Page(proto.TargetCreateTarget{})
}

func (s *rodSession) Close() error {
	s.once.Do(func() {
		s.closeErr = s.browser.Close()
		if s.launcher != nil {
			s.launcher.Kill()
			// The process is gone even if the CDP close failed.
			s.closeErr = nil
		}
		s.provider.untrack(s.id)
	})
	return s.closeErr
}
