package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonops/dfa-automation/internal/config"
	"github.com/axonops/dfa-automation/internal/environment"
	"github.com/axonops/dfa-automation/internal/login"
)

// recordingSession records the navigation calls made by a login run
type recordingSession struct {
	calls []string
}

func (s *recordingSession) Get(ctx context.Context, url string) error {
	s.calls = append(s.calls, "get "+url)
	return nil
}

func (s *recordingSession) NavigateTo(ctx context.Context, url string) error {
	s.calls = append(s.calls, "navigateTo "+url)
	return nil
}

func (s *recordingSession) Refresh(ctx context.Context) error {
	s.calls = append(s.calls, "refresh")
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// executeRoot runs the root command with args and restores flag state afterwards
func executeRoot(t *testing.T, out io.Writer, args ...string) error {
	t.Helper()

	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		cfgFile, envOverride = "", ""
		rootCmd.PersistentFlags().Lookup("environment").Changed = false
		rootCmd.PersistentFlags().Lookup("config").Changed = false
		closeLogOutput()
	})

	return rootCmd.Execute()
}

// writeConfig writes a config whose default tier DEV has no routes
func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("DFA_AUTOMATION_ENVIRONMENT", "")
	t.Setenv("ENVIRONMENT", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
environment = "DEV"

[environments.tst]
initial_url = "https://test.example.org/"
target_url = "https://test.example.org/login"

[logging]
output = "stderr"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func testConfig() *config.Config {
	c := config.DefaultConfig()
	c.Environment = "TST"
	c.Environments = map[string]config.RouteConfig{
		"tst": {InitialURL: "https://test.example.org/", TargetURL: "https://test.example.org/login"},
	}
	return c
}

func TestPrintEnvironments(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printEnvironments(&out, testConfig()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "IDENTIFIER")
	assert.Regexp(t, `^DEV\s+development\s+-\s+-$`, lines[1])
	assert.Regexp(t, `^TST\s+test\s+\*\s+https://test.example.org/\s+https://test.example.org/login$`, lines[2])
}

func TestPrintEnvironmentsUnknown(t *testing.T) {
	c := testConfig()
	c.Environment = "PROD"

	var out bytes.Buffer
	require.NoError(t, printEnvironments(&out, c))

	assert.Contains(t, out.String(), `ENVIRONMENT="PROD" is not recognised`)
	assert.NotContains(t, out.String(), "*")
}

func TestResolveRoutesWithoutVault(t *testing.T) {
	c := testConfig()

	routes, err := resolveRoutes(context.Background(), c, environment.Test)
	require.NoError(t, err)
	assert.Equal(t, "https://test.example.org/login", routes[environment.Test].TargetURL)

	// Vault is never contacted for unrecognised environments
	c.Vault.Enabled = true
	c.Vault.URL = "http://127.0.0.1:1"
	routes, err = resolveRoutes(context.Background(), c, environment.Unknown)
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestConfigureLogger(t *testing.T) {
	defer func() { debug, verbose = false, false }()

	t.Run("level and json format", func(t *testing.T) {
		l := logrus.New()
		require.NoError(t, configureLogger(l, config.LoggingConfig{Level: "warn", Format: "json", Output: "stderr"}))
		assert.Equal(t, logrus.WarnLevel, l.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
		assert.Equal(t, os.Stderr, l.Out)
	})

	t.Run("verbose raises to info", func(t *testing.T) {
		verbose = true
		defer func() { verbose = false }()

		l := logrus.New()
		require.NoError(t, configureLogger(l, config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}))
		assert.Equal(t, logrus.InfoLevel, l.GetLevel())
		assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
	})

	t.Run("debug wins", func(t *testing.T) {
		debug = true
		defer func() { debug = false }()

		l := logrus.New()
		require.NoError(t, configureLogger(l, config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"}))
		assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.log")
		l := logrus.New()
		require.NoError(t, configureLogger(l, config.LoggingConfig{Level: "info", Format: "text", Output: path}))

		l.Info("hello")
		f := logFile
		require.NotNil(t, f)

		closeLogOutput()
		assert.Nil(t, logFile)
		assert.Error(t, f.Close(), "log file should already be closed")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "hello")
	})

	t.Run("reconfigure closes previous file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.log")
		l := logrus.New()
		require.NoError(t, configureLogger(l, config.LoggingConfig{Level: "info", Format: "text", Output: path}))
		f := logFile

		require.NoError(t, configureLogger(l, config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"}))
		assert.Nil(t, logFile)
		assert.Error(t, f.Close())
		assert.Equal(t, os.Stdout, l.Out)
	})

	t.Run("invalid level", func(t *testing.T) {
		l := logrus.New()
		assert.Error(t, configureLogger(l, config.LoggingConfig{Level: "loud", Output: "stdout"}))
	})
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["login"])
	assert.True(t, names["environments"])
	assert.True(t, names["install"])
	assert.NotNil(t, loginCmd.Flags().Lookup("strict"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("environment"))
}

func TestEnvironmentsCommand(t *testing.T) {
	t.Setenv("DFA_AUTOMATION_ENVIRONMENT", "")
	t.Setenv("ENVIRONMENT", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
environment = "DEV"

[environments.dev]
initial_url = "https://dev.example.org/"
target_url = "https://dev.example.org/login"

[logging]
output = "stderr"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	var out bytes.Buffer
	require.NoError(t, executeRoot(t, &out, "--config", configPath, "environments"))
	assert.Regexp(t, `DEV\s+development\s+\*\s+https://dev.example.org/`, out.String())
}

func TestEnvironmentsCommandIgnoresMissingRoute(t *testing.T) {
	configPath := writeConfig(t)

	var out bytes.Buffer
	require.NoError(t, executeRoot(t, &out, "--config", configPath, "environments"))
	assert.Regexp(t, `DEV\s+development\s+\*\s+-\s+-`, out.String())
}

func TestEnvironmentOverride(t *testing.T) {
	configPath := writeConfig(t)

	var out bytes.Buffer
	require.NoError(t, executeRoot(t, &out, "--config", configPath, "-e", "TST", "environments"))
	assert.Regexp(t, `TST\s+test\s+\*\s+https://test.example.org/`, out.String())
	assert.Equal(t, "TST", cfg.Environment)
}

func TestLoadConfigOverride(t *testing.T) {
	configPath := writeConfig(t)

	t.Run("file tier without routes", func(t *testing.T) {
		loaded, err := loadConfig(configPath, "", false)
		require.NoError(t, err)
		assert.Equal(t, "DEV", loaded.Environment)
		assert.Error(t, loaded.ValidateActiveRoute())
	})

	t.Run("override selects configured tier", func(t *testing.T) {
		loaded, err := loadConfig(configPath, "TST", true)
		require.NoError(t, err)
		assert.Equal(t, environment.Test, loaded.ActiveEnvironment())
		assert.NoError(t, loaded.ValidateActiveRoute())
	})

	t.Run("explicit empty override", func(t *testing.T) {
		loaded, err := loadConfig(configPath, "", true)
		require.NoError(t, err)
		assert.Equal(t, environment.Unknown, loaded.ActiveEnvironment())
		assert.NoError(t, loaded.ValidateActiveRoute())
	})
}

func TestLoginCommandMissingRoute(t *testing.T) {
	configPath := writeConfig(t)

	err := executeRoot(t, io.Discard, "--config", configPath, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environments.dev")
}

func TestNavigate(t *testing.T) {
	routes := environment.Table{
		environment.Test: {InitialURL: "https://test.example.org/", TargetURL: "https://test.example.org/login"},
	}

	tests := []struct {
		name       string
		identifier string
		strict     bool
		wantErr    string
		outcome    login.Outcome
		calls      []string
	}{
		{
			name:       "known tier",
			identifier: "TST",
			strict:     true,
			outcome:    login.OutcomeNavigated,
			calls: []string{
				"get https://test.example.org/",
				"navigateTo https://test.example.org/login",
				"refresh",
			},
		},
		{
			name:       "unknown tier skipped",
			identifier: "PROD",
			outcome:    login.OutcomeSkipped,
		},
		{
			name:       "unknown tier strict",
			identifier: "PROD",
			strict:     true,
			outcome:    login.OutcomeSkipped,
			wantErr:    `environment "PROD" is not recognised (expected DEV or TST)`,
		},
		{
			name:       "lower case is unknown",
			identifier: "tst",
			strict:     true,
			outcome:    login.OutcomeSkipped,
			wantErr:    `environment "tst" is not recognised`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &recordingSession{}

			result, err := navigate(context.Background(), login.Static(session), routes, tt.identifier, tt.strict, quietLogger())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.outcome, result.Outcome)
			assert.Equal(t, tt.calls, session.calls)
		})
	}
}
