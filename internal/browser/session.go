package browser

import (
	"context"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/axonops/dfa-automation/pkg/errors"
)

// Navigation action names used in logs and NavigationError.Action
const (
	ActionGet        = "get"
	ActionNavigateTo = "navigate"
	ActionRefresh    = "refresh"
)

// page is the subset of playwright.Page a Session drives
type page interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Reload(options ...playwright.PageReloadOptions) (playwright.Response, error)
	URL() string
	Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator
}

// Session is a single Playwright page exposed through the login.Session actions
type Session struct {
	page      page
	waitUntil *playwright.WaitUntilState
	timeout   float64
	logger    *logrus.Logger
}

func newSession(p page, waitUntil string, timeoutMs float64, logger *logrus.Logger) *Session {
	state := playwright.WaitUntilState(waitUntil)
	return &Session{
		page:      p,
		waitUntil: &state,
		timeout:   timeoutMs,
		logger:    logger,
	}
}

// Get loads url directly
func (s *Session) Get(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewNavigationError(ActionGet, url, err)
	}

	s.logger.WithField("url", url).Debug("Loading page")

	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: s.waitUntil,
		Timeout:   playwright.Float(s.timeout),
	})
	if err != nil {
		return errors.NewNavigationError(ActionGet, url, err)
	}
	return nil
}

// NavigateTo navigates to url as if following a link from the current page
func (s *Session) NavigateTo(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewNavigationError(ActionNavigateTo, url, err)
	}

	opts := playwright.PageGotoOptions{
		WaitUntil: s.waitUntil,
		Timeout:   playwright.Float(s.timeout),
	}
	if referer := s.page.URL(); referer != "" && referer != "about:blank" {
		opts.Referer = playwright.String(referer)
	}

	s.logger.WithFields(logrus.Fields{
		"url":     url,
		"referer": s.page.URL(),
	}).Debug("Navigating")

	if _, err := s.page.Goto(url, opts); err != nil {
		return errors.NewNavigationError(ActionNavigateTo, url, err)
	}
	return nil
}

// Refresh reloads the current page
func (s *Session) Refresh(ctx context.Context) error {
	current := s.page.URL()
	if err := ctx.Err(); err != nil {
		return errors.NewNavigationError(ActionRefresh, current, err)
	}

	s.logger.WithField("url", current).Debug("Reloading page")

	_, err := s.page.Reload(playwright.PageReloadOptions{
		WaitUntil: s.waitUntil,
		Timeout:   playwright.Float(s.timeout),
	})
	if err != nil {
		return errors.NewNavigationError(ActionRefresh, current, err)
	}
	return nil
}

// CurrentURL returns the URL of the loaded page
func (s *Session) CurrentURL() string {
	return s.page.URL()
}

// FocusedElement returns a locator for the element that currently has focus
func (s *Session) FocusedElement() playwright.Locator {
	return s.page.Locator(":focus")
}
