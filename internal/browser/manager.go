// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/config"
	"github.com/xkilldash9x/igpilot/internal/observability"
)

// Manager owns the single persistent browser context. The browser is started
// lazily against an on-disk profile and restarted if it has gone away.
type Manager struct {
	cfg    config.BrowserConfig
	site   config.SiteConfig
	logger *zap.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewManager creates a manager. No browser is started until EnsureContext.
func NewManager(cfg config.BrowserConfig, site config.SiteConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		site:   site,
		logger: logger.With(zap.String("component", "browser_manager")),
	}
}

// EnsureContext returns once a live browser context exists, launching one if needed.
// It is idempotent: a healthy context is reused.
func (m *Manager) EnsureContext(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(ctx)
}

func (m *Manager) ensureLocked(ctx context.Context) error {
	if m.liveLocked() {
		return nil
	}
	if m.browserCtx != nil {
		m.logger.Warn("Browser context is gone, relaunching.", zap.Error(m.browserCtx.Err()))
	}
	m.teardownLocked()

	profile, err := homedir.Expand(m.cfg.ProfileDir)
	if err != nil {
		return fmt.Errorf("%w: expand profile dir: %v", ErrLaunch, err)
	}
	if err := os.MkdirAll(profile, 0o700); err != nil {
		return fmt.Errorf("%w: create profile dir: %v", ErrLaunch, err)
	}

	// The allocator must not inherit a request context: its lifetime is the process's.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), m.allocatorOptions(profile)...)

	sugar := m.logger.Sugar()
	ctxOpts := []chromedp.ContextOption{chromedp.WithLogf(sugar.Infof), chromedp.WithErrorf(sugar.Errorf)}
	if m.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// The first Run starts the browser process and binds it to browserCtx,
	// so it cannot carry a deadline. The launch timeout is enforced around it.
	if err := awaitRun(ctx, browserCtx, m.cfg.LaunchTimeout); err != nil {
		browserCancel()
		allocCancel()
		observability.BrowserLaunches.WithLabelValues("failed").Inc()
		m.logger.Error("Failed to launch browser.", zap.String("profile", profile), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	m.allocCtx, m.allocCancel = allocCtx, allocCancel
	m.browserCtx, m.browserCancel = browserCtx, browserCancel
	observability.BrowserLaunches.WithLabelValues("ok").Inc()
	m.logger.Info("Browser context ready.", zap.String("profile", profile), zap.Bool("headless", m.cfg.Headless))
	return nil
}

// allocatorOptions turns the browser config into chromedp allocator options.
func (m *Manager) allocatorOptions(profile string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := launchFlags(m.cfg, profile)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	return opts
}

// launchFlags is the Chromium command line beyond chromedp's defaults.
// Extra args of the form "--name" or "--name=value" override the built-ins.
func launchFlags(cfg config.BrowserConfig, profile string) map[string]interface{} {
	flags := map[string]interface{}{
		"user-data-dir":         profile,
		"no-sandbox":            true,
		"disable-dev-shm-usage": true,
		"window-size":           fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight),
		"lang":                  cfg.Locale,
		"headless":              cfg.Headless,
	}
	if !cfg.Headless {
		// chromedp's defaults include these for headless runs only.
		flags["hide-scrollbars"] = false
		flags["mute-audio"] = false
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		name, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			flags[name] = true
			continue
		}
		if b, err := strconv.ParseBool(value); err == nil {
			flags[name] = b
		} else {
			flags[name] = value
		}
	}
	return flags
}

// WithPage opens a fresh tab, prepares it, runs fn and always closes the tab.
func (m *Manager) WithPage(ctx context.Context, fn func(ctx context.Context, page Page) error) error {
	m.mu.Lock()
	if err := m.ensureLocked(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	browserCtx := m.browserCtx
	m.mu.Unlock()

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer func() {
		// Cancel closes the target through CDP; closeTab releases the context.
		if err := chromedp.Cancel(tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Debug("Failed to close tab cleanly.", zap.Error(err))
		}
		closeTab()
	}()

	if err := m.preparePage(ctx, tabCtx); err != nil {
		return fmt.Errorf("prepare page: %w", err)
	}

	page := &cdpPage{
		ctx:        tabCtx,
		timeout:    m.cfg.PageTimeout,
		navTimeout: m.cfg.NavTimeout,
		logger:     m.logger,
	}
	return fn(ctx, page)
}

// preparePage creates the tab target and applies the session fingerprint:
// language header, user agent, viewport and locale.
func (m *Manager) preparePage(ctx, tabCtx context.Context) error {
	setup := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": m.cfg.AcceptLanguage}),
		emulation.SetUserAgentOverride(m.cfg.UserAgent).WithAcceptLanguage(m.cfg.AcceptLanguage),
		emulation.SetDeviceMetricsOverride(int64(m.cfg.ViewportWidth), int64(m.cfg.ViewportHeight), 1, false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Some Chromium builds reject a locale override; the launch flag still applies.
			if err := emulation.SetLocaleOverride().WithLocale(m.cfg.Locale).Do(ctx); err != nil {
				m.logger.Debug("Locale override rejected.", zap.String("locale", m.cfg.Locale), zap.Error(err))
			}
			return nil
		}),
	}
	return awaitRun(ctx, tabCtx, m.cfg.PageTimeout, setup)
}

// SeedCookies installs the given cookies into the persistent profile and
// returns their names in input order.
func (m *Manager) SeedCookies(ctx context.Context, cookies []Cookie) ([]string, error) {
	m.mu.Lock()
	if err := m.ensureLocked(ctx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	browserCtx := m.browserCtx
	m.mu.Unlock()

	names := make([]string, 0, len(cookies))
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
		params = append(params, &network.CookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: m.site.CookieDomain,
			Path:   "/",
		})
	}
	if len(params) == 0 {
		return names, nil
	}

	if err := awaitRun(ctx, browserCtx, m.cfg.PageTimeout, network.SetCookies(params)); err != nil {
		return nil, fmt.Errorf("set cookies: %w", err)
	}
	m.logger.Info("Seeded cookies.", zap.Strings("names", names))
	return names, nil
}

// live reports whether a browser context is currently up, without launching one.
func (m *Manager) live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked()
}

func (m *Manager) liveLocked() bool {
	return m.browserCtx != nil && m.browserCtx.Err() == nil
}

// Shutdown closes the browser gracefully so the profile is flushed to disk.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browserCtx == nil {
		return nil
	}
	m.logger.Info("Shutting down browser.")

	done := make(chan error, 1)
	browserCtx := m.browserCtx
	go func() { done <- chromedp.Cancel(browserCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	m.teardownLocked()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("browser shutdown: %w", err)
	}
	return nil
}

func (m *Manager) teardownLocked() {
	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.allocCtx, m.allocCancel = nil, nil
	m.browserCtx, m.browserCancel = nil, nil
}

// awaitRun runs actions on target without deriving a deadline from it, and
// gives up waiting after timeout or when ctx ends. The run itself stops when
// target is canceled by its owner.
func awaitRun(ctx, target context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(target, actions...) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.C:
		return fmt.Errorf("timed out after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
