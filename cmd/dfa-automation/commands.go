package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/axonops/dfa-automation/internal/browser"
	"github.com/axonops/dfa-automation/internal/config"
	"github.com/axonops/dfa-automation/internal/environment"
	"github.com/axonops/dfa-automation/internal/login"
	"github.com/axonops/dfa-automation/internal/vault"
	"github.com/axonops/dfa-automation/pkg/errors"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Navigate a browser session to the environment's login page",
	Long: `Navigate a browser session to the login page of the active environment.

For DEV and TST this command will:
1. Start a Playwright browser session
2. Load the environment's initial URL
3. Navigate to the environment's target URL
4. Refresh the page

Any other environment identifier leaves the session untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")
		headed, _ := cmd.Flags().GetBool("headed")
		if headed {
			cfg.Browser.Headless = false
		}

		return runLogin(cmd.Context(), cfg, strict)
	},
}

var environmentsCmd = &cobra.Command{
	Use:   "environments",
	Short: "List recognised environments and their configured routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printEnvironments(cmd.OutOrStdout(), cfg)
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the Playwright driver and the configured browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return browser.Install(cfg.Browser, logger)
	},
}

// runLogin resolves routes, starts the browser and runs one login navigation
func runLogin(ctx context.Context, cfg *config.Config, strict bool) error {
	if err := cfg.ValidateActiveRoute(); err != nil {
		return err
	}

	env := cfg.ActiveEnvironment()
	log := logger.WithFields(logrus.Fields{
		"run_id":      uuid.NewString(),
		"environment": cfg.Environment,
	})

	routes, err := resolveRoutes(ctx, cfg, env)
	if err != nil {
		return err
	}

	manager, err := browser.NewManager(cfg.Browser, logger)
	if err != nil {
		return err
	}
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser session")
		}
	}()

	if _, err := navigate(ctx, manager, routes, cfg.Environment, strict, log); err != nil {
		return err
	}

	log.WithField("url", manager.Session().CurrentURL()).Debug("Browser left on page")
	return nil
}

// navigate runs the login sequence for identifier against provider. With
// strict set, an unrecognised identifier is reported as an error.
func navigate(ctx context.Context, provider login.Provider, routes environment.Table, identifier string, strict bool, log logrus.FieldLogger) (login.Result, error) {
	result, err := login.New(provider, routes, log).Login(ctx, environment.Parse(identifier))
	if err != nil {
		return result, err
	}

	log.WithFields(logrus.Fields{
		"outcome": result.Outcome,
		"actions": result.Actions,
	}).Info("Login run finished")

	if result.Outcome == login.OutcomeSkipped && strict {
		return result, errors.New(fmt.Sprintf("environment %q is not recognised (expected %s or %s)",
			identifier, environment.DevIdentifier, environment.TestIdentifier))
	}

	return result, nil
}

// resolveRoutes returns the file routes, overlaid with the Vault route for env when Vault is enabled
func resolveRoutes(ctx context.Context, cfg *config.Config, env environment.Environment) (environment.Table, error) {
	routes := cfg.Routes()
	if !cfg.Vault.Enabled || !env.IsKnown() {
		return routes, nil
	}

	client, err := vault.NewClient(&cfg.Vault, logger)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	vaultRoutes, err := vault.NewRouteSource(client, cfg.Vault.RoutesPath).Table(ctx, env)
	if err != nil {
		return nil, err
	}

	logger.WithField("environment", env.Identifier()).Debug("Using login route from Vault")
	return routes.Merge(vaultRoutes), nil
}

// printEnvironments writes the recognised tiers and their routes as a table
func printEnvironments(out io.Writer, cfg *config.Config) error {
	routes := cfg.Routes()
	active := cfg.ActiveEnvironment()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTIFIER\tTIER\tACTIVE\tINITIAL URL\tTARGET URL")
	for _, env := range environment.Known {
		route, ok := routes.Lookup(env)
		initialURL, targetURL := "-", "-"
		if ok {
			initialURL, targetURL = orDash(route.InitialURL), orDash(route.TargetURL)
		}
		marker := ""
		if env == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", env.Identifier(), env, marker, initialURL, targetURL)
	}

	if !active.IsKnown() {
		fmt.Fprintf(w, "\nENVIRONMENT=%q is not recognised; login will not navigate\n", cfg.Environment)
	}

	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
