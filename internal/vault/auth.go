package vault

import (
	"context"

	"github.com/hashicorp/vault/api"
	"github.com/sirupsen/logrus"

	"github.com/axonops/dfa-automation/pkg/errors"
)

// AuthMethod represents different authentication methods
type AuthMethod interface {
	Authenticate(ctx context.Context, client *api.Client) (*api.Secret, error)
	GetName() string
}

// AppRoleAuth implements AppRole authentication
type AppRoleAuth struct {
	RoleID   string
	SecretID string
	logger   *logrus.Logger
}

// NewAppRoleAuth creates a new AppRole authentication method
func NewAppRoleAuth(roleID, secretID string, logger *logrus.Logger) *AppRoleAuth {
	return &AppRoleAuth{
		RoleID:   roleID,
		SecretID: secretID,
		logger:   logger,
	}
}

// Authenticate performs AppRole authentication
func (a *AppRoleAuth) Authenticate(ctx context.Context, client *api.Client) (*api.Secret, error) {
	if a.RoleID == "" {
		return nil, errors.New("AppRole ID cannot be empty")
	}

	if a.SecretID == "" {
		return nil, errors.New("Secret ID cannot be empty")
	}

	a.logger.Debug("Authenticating with AppRole")

	data := map[string]interface{}{
		"role_id":   a.RoleID,
		"secret_id": a.SecretID,
	}

	resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", data)
	if err != nil {
		return nil, errors.Wrap(err, "AppRole login failed")
	}

	if resp == nil {
		return nil, errors.New("empty response from AppRole authentication")
	}

	if resp.Auth == nil {
		return nil, errors.New("no authentication data in AppRole response")
	}

	a.logger.WithFields(logrus.Fields{
		"policies":       resp.Auth.Policies,
		"lease_duration": resp.Auth.LeaseDuration,
		"renewable":      resp.Auth.Renewable,
	}).Info("AppRole authentication successful")

	return resp, nil
}

// GetName returns the name of this authentication method
func (a *AppRoleAuth) GetName() string {
	return "approle"
}
