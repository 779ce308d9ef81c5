// Package rod implements the engine and page ports on top of go-rod.
package rod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"browser-pilot/internal/application/port/output"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var _ output.Engine = (*Engine)(nil)

const (
	defaultTimeout      = 10 * time.Second
	defaultSlowMotion   = 0
	defaultViewportW    = 1440
	defaultViewportH    = 900
	defaultMaxShotWidth = 1440
)

type Config struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
	Trace      bool
	// ControlURL attaches to an already running browser instead of launching one.
	ControlURL string
	// Bin overrides the browser binary the launcher looks up.
	Bin string

	ViewportWidth  int
	ViewportHeight int
	// MaxScreenshotWidth downscales wider screenshots; 0 keeps the native size.
	MaxScreenshotWidth int
}

func DefaultConfig() Config {
	return Config{
		Headless:           false,
		SlowMotion:         defaultSlowMotion,
		Timeout:            defaultTimeout,
		ViewportWidth:      defaultViewportW,
		ViewportHeight:     defaultViewportH,
		MaxScreenshotWidth: defaultMaxShotWidth,
	}
}

type Engine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
	logger   output.LoggerPort

	mu     sync.Mutex
	pages  map[proto.TargetTargetID]*Page
	closed bool
}

// NewEngine launches a browser (or attaches to cfg.ControlURL) and connects to it.
func NewEngine(ctx context.Context, cfg Config, logger output.LoggerPort) (*Engine, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = defaultViewportW, defaultViewportH
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		pages:  make(map[proto.TargetTargetID]*Page),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			Devtools(cfg.DevTools).
			NoSandbox(cfg.NoSandbox).
			Delete("use-mock-keychain")
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		e.launcher = l
		controlURL = u
	}

	browser := rod.New().
		ControlURL(controlURL).
		Trace(cfg.Trace).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	e.browser = browser

	logger.Info("Browser connected", "headless", cfg.Headless, "control_url", controlURL)
	return e, nil
}

// Pages lists the open page targets. Handles are cached per target so the
// first-seen time stays stable across calls.
func (e *Engine) Pages(ctx context.Context) ([]output.Page, error) {
	pages, err := e.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	alive := make(map[proto.TargetTargetID]bool, len(pages))
	out := make([]output.Page, 0, len(pages))
	for _, rp := range pages {
		alive[rp.TargetID] = true
		p, ok := e.pages[rp.TargetID]
		if !ok {
			p = newPage(rp, time.Now(), e.cfg)
			e.pages[rp.TargetID] = p
		}
		out = append(out, p)
	}
	for id := range e.pages {
		if !alive[id] {
			delete(e.pages, id)
		}
	}
	return out, nil
}

// ActivePage returns the page that currently holds focus, or nil.
func (e *Engine) ActivePage(ctx context.Context) (output.Page, error) {
	pages, err := e.Pages(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		res, err := p.RunJS(ctx, `() => document.visibilityState === 'visible' && document.hasFocus()`)
		if err != nil {
			continue
		}
		if res.Bool() {
			return p, nil
		}
	}
	return nil, nil
}

func (e *Engine) NewPage(ctx context.Context, url string) (output.Page, error) {
	rp, err := e.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := rp.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             e.cfg.ViewportWidth,
		Height:            e.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		e.logger.Warn("Failed to set viewport", "error", err)
	}
	if err := rp.Context(ctx).Timeout(e.cfg.Timeout).WaitLoad(); err != nil {
		e.logger.Debug("New page did not finish loading", "url", url, "error", err)
	}

	p := newPage(rp, time.Now(), e.cfg)
	e.mu.Lock()
	e.pages[rp.TargetID] = p
	e.mu.Unlock()

	e.logger.Debug("Page created", "id", p.ID(), "url", url)
	return p, nil
}

func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			e.logger.Debug("Browser close failed", "error", err)
		}
	}
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher.Cleanup()
	}
}
