// Package login drives a browser session to an environment's login page.
package login

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/axonops/dfa-automation/internal/environment"
	"github.com/axonops/dfa-automation/pkg/errors"
)

// Session is the set of navigation actions the login sequence issues.
type Session interface {
	// Get loads url directly.
	Get(ctx context.Context, url string) error
	// NavigateTo performs history-aware navigation to url.
	NavigateTo(ctx context.Context, url string) error
	// Refresh reloads the current page.
	Refresh(ctx context.Context) error
}

// Provider supplies the session a login run borrows. The navigator never
// creates or closes sessions.
type Provider interface {
	Driver(ctx context.Context) (Session, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Session, error)

func (f ProviderFunc) Driver(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Static returns a Provider that always hands out s.
func Static(s Session) Provider {
	return ProviderFunc(func(context.Context) (Session, error) {
		return s, nil
	})
}

// Outcome describes what a login run did.
type Outcome int

const (
	// OutcomeSkipped means the environment was not recognised and nothing was navigated
	OutcomeSkipped Outcome = iota
	// OutcomeNavigated means the full load, navigate, refresh sequence ran
	OutcomeNavigated
)

func (o Outcome) String() string {
	if o == OutcomeNavigated {
		return "navigated"
	}
	return "skipped"
}

// Result reports a completed login run.
type Result struct {
	Environment environment.Environment
	Outcome     Outcome
	Route       environment.Route
	Actions     int
}

// Navigator runs the login navigation sequence. It holds no per-call state.
type Navigator struct {
	provider Provider
	routes   environment.Table
	logger   logrus.FieldLogger
}

// New creates a Navigator over the given provider and route table
func New(provider Provider, routes environment.Table, logger logrus.FieldLogger) *Navigator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Navigator{
		provider: provider,
		routes:   routes,
		logger:   logger,
	}
}

// Login borrows a session from the provider and, for a recognised
// environment, loads the initial URL, navigates to the target URL and
// refreshes. Unrecognised environments are skipped without error.
// Provider and session errors are returned unchanged.
func (n *Navigator) Login(ctx context.Context, env environment.Environment) (Result, error) {
	result := Result{Environment: env, Outcome: OutcomeSkipped}

	session, err := n.provider.Driver(ctx)
	if err != nil {
		return result, err
	}

	if !env.IsKnown() {
		n.logger.WithField("environment", env).Warn("Unrecognised environment, skipping login navigation")
		return result, nil
	}

	route, ok := n.routes.Lookup(env)
	if !ok {
		return result, errors.NewConfigError("environments."+env.Slug(),
			fmt.Sprintf("no route configured for environment %s", env.Identifier()), nil)
	}
	result.Route = route

	log := n.logger.WithFields(logrus.Fields{
		"environment": env.Identifier(),
		"initial_url": route.InitialURL,
		"target_url":  route.TargetURL,
	})

	log.Debug("Loading initial URL")
	if err := session.Get(ctx, route.InitialURL); err != nil {
		return result, err
	}
	result.Actions++

	log.Debug("Navigating to target URL")
	if err := session.NavigateTo(ctx, route.TargetURL); err != nil {
		return result, err
	}
	result.Actions++

	log.Debug("Refreshing page")
	if err := session.Refresh(ctx); err != nil {
		return result, err
	}
	result.Actions++

	result.Outcome = OutcomeNavigated
	log.WithField("actions", result.Actions).Info("Login navigation complete")
	return result, nil
}
