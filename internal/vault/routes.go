package vault

import (
	"context"
	"fmt"
	"path"

	"github.com/axonops/dfa-automation/internal/environment"
	"github.com/axonops/dfa-automation/pkg/errors"
)

// SecretReader reads KV secrets. *Client satisfies it.
type SecretReader interface {
	ReadSecret(ctx context.Context, path string) (map[string]interface{}, error)
	WithRetry(ctx context.Context, operation func() error) error
}

// RouteSource resolves environment routes stored in Vault under
// <routes_path>/<slug> with keys initial_url and target_url.
type RouteSource struct {
	reader     SecretReader
	routesPath string
}

// NewRouteSource creates a route source rooted at routesPath
func NewRouteSource(reader SecretReader, routesPath string) *RouteSource {
	return &RouteSource{reader: reader, routesPath: routesPath}
}

// SecretPath returns the KV path holding env's route
func (s *RouteSource) SecretPath(env environment.Environment) string {
	return path.Join(s.routesPath, env.Slug())
}

// Route reads the route for env, retrying transient failures
func (s *RouteSource) Route(ctx context.Context, env environment.Environment) (environment.Route, error) {
	if !env.IsKnown() {
		return environment.Route{}, errors.New(fmt.Sprintf("no Vault route for unrecognised environment %q", env.Identifier()))
	}

	secretPath := s.SecretPath(env)

	var data map[string]interface{}
	err := s.reader.WithRetry(ctx, func() error {
		var readErr error
		data, readErr = s.reader.ReadSecret(ctx, secretPath)
		return readErr
	})
	if err != nil {
		return environment.Route{}, err
	}

	initialURL, err := stringField(data, secretPath, "initial_url")
	if err != nil {
		return environment.Route{}, err
	}

	targetURL, err := stringField(data, secretPath, "target_url")
	if err != nil {
		return environment.Route{}, err
	}

	return environment.Route{InitialURL: initialURL, TargetURL: targetURL}, nil
}

// Table resolves the routes for each of envs
func (s *RouteSource) Table(ctx context.Context, envs ...environment.Environment) (environment.Table, error) {
	table := make(environment.Table, len(envs))
	for _, env := range envs {
		route, err := s.Route(ctx, env)
		if err != nil {
			return nil, err
		}
		table[env] = route
	}
	return table, nil
}

func stringField(data map[string]interface{}, secretPath, key string) (string, error) {
	raw, ok := data[key]
	if !ok {
		return "", errors.NewVaultReadError(secretPath, fmt.Errorf("missing key %q", key))
	}

	value, ok := raw.(string)
	if !ok {
		return "", errors.NewVaultReadError(secretPath, fmt.Errorf("key %q is not a string", key))
	}

	return value, nil
}
