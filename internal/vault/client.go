package vault

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/sirupsen/logrus"

	"github.com/axonops/dfa-automation/internal/config"
	"github.com/axonops/dfa-automation/pkg/errors"
)

// ErrSecretNotFound is returned, wrapped in a VaultReadError, when the KV
// path holds no secret. WithRetry does not retry it.
var ErrSecretNotFound = stderrors.New("secret not found")

// Client wraps the Vault API client with AppRole login and KV v2 reads
type Client struct {
	client   *api.Client
	config   *config.VaultConfig
	auth     AuthMethod
	logger   *logrus.Logger
	token    string
	tokenExp time.Time
}

// NewClient creates a new Vault client with the provided configuration
func NewClient(cfg *config.VaultConfig, logger *logrus.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("vault configuration cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.URL
	vaultConfig.Timeout = cfg.Timeout()
	// Retries are driven by WithRetry so they honour retry_delay
	vaultConfig.MaxRetries = 0

	if cfg.CABundle != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CABundle,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, errors.Wrap(err, "failed to configure TLS")
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Vault client")
	}
	// Ignore any VAULT_TOKEN in the environment, AppRole is the only login
	client.ClearToken()

	return &Client{
		client: client,
		config: cfg,
		auth:   NewAppRoleAuth(cfg.AppRole, cfg.SecretID, logger),
		logger: logger,
	}, nil
}

// Authenticate performs AppRole authentication and sets the client token
func (c *Client) Authenticate(ctx context.Context) error {
	c.logger.WithField("auth_method", c.auth.GetName()).Debug("Starting authentication")

	resp, err := c.auth.Authenticate(ctx, c.client)
	if err != nil {
		return err
	}

	c.token = resp.Auth.ClientToken
	c.client.SetToken(c.token)

	if resp.Auth.LeaseDuration > 0 {
		c.tokenExp = time.Now().Add(time.Duration(resp.Auth.LeaseDuration) * time.Second)
	}

	return nil
}

// IsTokenValid checks if the current token is valid and not expired
func (c *Client) IsTokenValid() bool {
	if c.token == "" {
		return false
	}

	// 30 second buffer before expiry
	if !c.tokenExp.IsZero() && time.Now().Add(30*time.Second).After(c.tokenExp) {
		return false
	}

	return true
}

// EnsureAuthenticated ensures the client has a valid token, re-authenticating if necessary
func (c *Client) EnsureAuthenticated(ctx context.Context) error {
	if c.IsTokenValid() {
		return nil
	}

	c.logger.Debug("Token invalid or expired, re-authenticating")
	return c.Authenticate(ctx)
}

// ReadSecret retrieves a KV v2 secret from the specified path
func (c *Client) ReadSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	fullPath := fmt.Sprintf("%s/data/%s", c.config.Backend, strings.Trim(path, "/"))

	c.logger.WithField("path", fullPath).Debug("Reading secret from Vault")

	resp, err := c.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, errors.NewVaultReadError(fullPath, err)
	}

	if resp == nil {
		return nil, errors.NewVaultReadError(fullPath, ErrSecretNotFound)
	}

	if resp.Data == nil {
		return nil, errors.NewVaultReadError(fullPath, fmt.Errorf("no data in secret"))
	}

	data, ok := resp.Data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.NewVaultReadError(fullPath, fmt.Errorf("invalid data format in secret"))
	}

	c.logger.WithField("path", fullPath).Debug("Successfully read secret from Vault")
	return data, nil
}

// WithRetry executes a function with retry logic. A missing secret fails
// straight away.
func (c *Client) WithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryMax; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt":     attempt,
				"max_retries": c.config.RetryMax,
				"delay":       c.config.RetryDelay(),
			}).Warn("Retrying Vault operation")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay()):
			}
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if stderrors.Is(lastErr, ErrSecretNotFound) {
			return lastErr
		}

		c.logger.WithError(lastErr).WithField("attempt", attempt).Debug("Vault operation failed")
	}

	return errors.Wrap(lastErr, fmt.Sprintf("operation failed after %d retries", c.config.RetryMax))
}

// Close clears the token held by the client
func (c *Client) Close() error {
	c.token = ""
	c.tokenExp = time.Time{}

	if c.client != nil {
		c.client.ClearToken()
	}

	c.logger.Debug("Vault client closed")
	return nil
}
