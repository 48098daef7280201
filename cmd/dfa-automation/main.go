package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/axonops/dfa-automation/internal/config"
)

var (
	version     = "dev"
	cfgFile     string
	verbose     bool
	debug       bool
	envOverride string
	cfg         *config.Config
	logger      *logrus.Logger
	logFile     *os.File
)

func init() {
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	closeLogOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dfa-automation",
	Short: "Drive browser sessions to environment login pages",
	Long: `dfa-automation prepares browser-based UI test runs by navigating a
Playwright session to the login page of the selected deployment environment.

The environment is chosen with the ENVIRONMENT setting:
- DEV selects the development tier
- TST selects the test tier
- any other value is left alone and no navigation happens

Login URLs for each tier come from the config file, environment variables
or HashiCorp Vault.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cfgFile, envOverride, cmd.Flags().Changed("environment"))
		if err != nil {
			return err
		}
		cfg = loaded

		return configureLogger(logger, cfg.Logging)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogOutput()
	},
}

// loadConfig reads the config file and applies the --environment override
// when it was given on the command line
func loadConfig(path, override string, overridden bool) (*config.Config, error) {
	loaded, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if overridden {
		loaded.Environment = override
	}

	return loaded, nil
}

// configureLogger applies the logging section, then the --verbose and --debug flags
func configureLogger(l *logrus.Logger, lc config.LoggingConfig) error {
	level, err := logrus.ParseLevel(strings.ToLower(lc.Level))
	if err != nil {
		return err
	}

	if debug {
		level = logrus.DebugLevel
	} else if verbose && level < logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.ToLower(lc.Format) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	closeLogOutput()

	switch lc.Output {
	case "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(lc.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log output %s: %w", lc.Output, err)
		}
		l.SetOutput(f)
		logFile = f
	}

	return nil
}

// closeLogOutput closes the log file opened by configureLogger, if any, and
// points the logger back at stderr
func closeLogOutput() {
	if logFile == nil {
		return
	}
	logger.SetOutput(os.Stderr)
	_ = logFile.Close()
	logFile = nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default searches /etc/dfa-automation, ./configs, .)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVarP(&envOverride, "environment", "e", "", "environment identifier, overrides ENVIRONMENT (DEV, TST)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(environmentsCmd)
	rootCmd.AddCommand(installCmd)

	loginCmd.Flags().Bool("strict", false, "fail when the environment is not recognised")
	loginCmd.Flags().Bool("headed", false, "show the browser window")
}
