package errors

import (
	"fmt"
)

// AutomationError is the base error type for all dfa-automation errors
type AutomationError struct {
	message string
	cause   error
}

// Error implements the error interface
func (e *AutomationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	if e.message != "" {
		return e.message
	}
	return "Automation Error"
}

// Unwrap returns the underlying error
func (e *AutomationError) Unwrap() error {
	return e.cause
}

// New creates a new AutomationError
func New(message string) *AutomationError {
	return &AutomationError{message: message}
}

// Wrap wraps an error with an AutomationError
func Wrap(err error, message string) *AutomationError {
	return &AutomationError{message: message, cause: err}
}

// DriverError indicates the driver provider could not supply a session
type DriverError struct {
	Op    string
	Cause error
}

// Error implements the error interface
func (e *DriverError) Error() string {
	return fmt.Sprintf("Browser driver %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying error
func (e *DriverError) Unwrap() error {
	return e.Cause
}

// NewDriverError creates a new DriverError
func NewDriverError(operation string, cause error) *DriverError {
	return &DriverError{Op: operation, Cause: cause}
}

// NavigationError represents a failed navigation action on a browser session
type NavigationError struct {
	Action string
	URL    string
	Cause  error
}

// Error implements the error interface
func (e *NavigationError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("Navigation %s to %q failed: %v", e.Action, e.URL, e.Cause)
	}
	return fmt.Sprintf("Navigation %s failed: %v", e.Action, e.Cause)
}

// Unwrap returns the underlying error
func (e *NavigationError) Unwrap() error {
	return e.Cause
}

// NewNavigationError creates a new NavigationError
func NewNavigationError(action, url string, cause error) *NavigationError {
	return &NavigationError{Action: action, URL: url, Cause: cause}
}

// VaultReadError indicates failure to read from vault
type VaultReadError struct {
	Path  string
	Cause error
}

// Error implements the error interface
func (e *VaultReadError) Error() string {
	return fmt.Sprintf("Failed to read from vault path %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error
func (e *VaultReadError) Unwrap() error {
	return e.Cause
}

// NewVaultReadError creates a new VaultReadError
func NewVaultReadError(path string, cause error) *VaultReadError {
	return &VaultReadError{Path: path, Cause: cause}
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("Configuration error in field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("Configuration error: %s", e.Message)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError
func NewConfigError(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}
