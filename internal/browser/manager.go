// Package browser provides the Playwright-backed driver for login runs.
package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/axonops/dfa-automation/internal/config"
	"github.com/axonops/dfa-automation/internal/login"
	"github.com/axonops/dfa-automation/pkg/errors"
)

// ErrNotStarted is returned by Driver before Start succeeds or after Close
var ErrNotStarted = stderrors.New("browser session not started")

// Manager owns the Playwright runtime and the single browser session used
// by a login run.
type Manager struct {
	mu      sync.Mutex
	cfg     config.BrowserConfig
	logger  *logrus.Logger
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	session *Session
}

// NewManager creates a browser manager for the given configuration
func NewManager(cfg config.BrowserConfig, logger *logrus.Logger) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if !isSupportedEngine(cfg.Engine) {
		return nil, errors.NewConfigError("browser.engine", fmt.Sprintf("unsupported browser engine: %s", cfg.Engine), nil)
	}

	return &Manager{cfg: cfg, logger: logger}, nil
}

// Start launches Playwright, the configured browser and one page
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return errors.NewDriverError("start", err)
	}

	opts := runOptions(m.cfg, m.logger)
	startTime := time.Now()

	if m.cfg.InstallBrowsers {
		m.logger.WithField("engine", m.cfg.Engine).Info("Installing Playwright browsers")
		if err := playwright.Install(opts); err != nil {
			return errors.NewDriverError("install", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return errors.NewDriverError("start", err)
	}

	browser, err := browserType(pw, m.cfg.Engine).Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		Timeout:  playwright.Float(timeoutMillis(m.cfg)),
	})
	if err != nil {
		_ = pw.Stop()
		return errors.NewDriverError("launch", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  m.cfg.ViewportWidth,
			Height: m.cfg.ViewportHeight,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return errors.NewDriverError("context", err)
	}

	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return errors.NewDriverError("page", err)
	}

	pg.SetDefaultTimeout(timeoutMillis(m.cfg))
	pg.SetDefaultNavigationTimeout(timeoutMillis(m.cfg))

	m.pw = pw
	m.browser = browser
	m.context = bctx
	m.page = pg
	m.session = newSession(pg, strings.ToLower(m.cfg.WaitUntil), timeoutMillis(m.cfg), m.logger)

	m.logger.WithFields(logrus.Fields{
		"engine":   m.cfg.Engine,
		"headless": m.cfg.Headless,
		"version":  browser.Version(),
		"duration": time.Since(startTime),
	}).Info("Browser session started")

	return nil
}

// Driver returns the active session
func (m *Manager) Driver(ctx context.Context) (login.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, errors.NewDriverError("driver", ErrNotStarted)
	}
	return m.session, nil
}

// Session returns the active Playwright session, or nil before Start
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Close shuts down the page, context, browser and Playwright driver.
// Calling Close on a manager that never started is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pw == nil {
		return nil
	}

	var errs []error
	if err := m.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.pw.Stop(); err != nil {
		errs = append(errs, err)
	}

	m.pw, m.browser, m.context, m.page, m.session = nil, nil, nil, nil, nil

	if len(errs) > 0 {
		return errors.NewDriverError("close", fmt.Errorf("errors closing browser session: %v", errs))
	}

	m.logger.Debug("Browser session closed")
	return nil
}

// Install downloads the Playwright driver and the configured browser
func Install(cfg config.BrowserConfig, logger *logrus.Logger) error {
	if !isSupportedEngine(cfg.Engine) {
		return errors.NewConfigError("browser.engine", fmt.Sprintf("unsupported browser engine: %s", cfg.Engine), nil)
	}

	logger.WithField("engine", cfg.Engine).Info("Installing Playwright driver and browser")
	if err := playwright.Install(runOptions(cfg, logger)); err != nil {
		return errors.NewDriverError("install", err)
	}
	return nil
}

func runOptions(cfg config.BrowserConfig, logger *logrus.Logger) *playwright.RunOptions {
	var out io.Writer = io.Discard
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		out = logger.Out
	}

	return &playwright.RunOptions{
		DriverDirectory: cfg.DriverDirectory,
		Browsers:        []string{strings.ToLower(cfg.Engine)},
		Verbose:         logger.IsLevelEnabled(logrus.DebugLevel),
		Stdout:          out,
		Stderr:          out,
	}
}

func browserType(pw *playwright.Playwright, engine string) playwright.BrowserType {
	switch strings.ToLower(engine) {
	case "firefox":
		return pw.Firefox
	case "webkit":
		return pw.WebKit
	default:
		return pw.Chromium
	}
}

func isSupportedEngine(engine string) bool {
	switch strings.ToLower(engine) {
	case "chromium", "firefox", "webkit":
		return true
	default:
		return false
	}
}

func timeoutMillis(cfg config.BrowserConfig) float64 {
	return float64(cfg.Timeout().Milliseconds())
}
