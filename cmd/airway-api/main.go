// ABOUTME: Entry point for the airway-api server and its helper commands
// ABOUTME: serve runs the HTTP API; health, token and version are operator tools

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/airway-api/internal/config"
	"github.com/2389/airway-api/internal/server"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _
   __ _(_)_ ____      ____ _ _   _
  / _' | | '__\ \ /\ / / _' | | | |
 | (_| | | |   \ V  V / (_| | |_| |
  \__,_|_|_|    \_/\_/ \__,_|\__, |
                             |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. --config applies to every subcommand.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "airway-api",
		Short: "Airway API: todos, milestones and a timeline overview over HTTP",
		Long: `airway-api serves a small project-tracking API.

Configuration is read from --config, then $AIRWAY_CONFIG, then
$XDG_CONFIG_HOME/airway/config.yaml. Files ending in .toml are read as TOML.
Without a config file the server starts with in-memory storage on :8000.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or TOML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newHealthCmd(&configPath),
		newTokenCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, path, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s (api %s)\n\n", version, server.Version)

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if path == "" {
		path = "(defaults)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s", cfg.Database.Backend)
	if cfg.Database.Backend == config.BackendSQLite {
		gray.Printf(" (%s, %s)", cfg.Database.Driver, cfg.Database.Path)
	}
	fmt.Println()

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	fmt.Println()

	logger.Info("starting airway-api",
		"config", path,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"backend", cfg.Database.Backend,
	)

	stores, err := server.OpenStores(cfg.Database)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, stores, logger)
	if err != nil {
		_ = stores.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "airway-api %s (api %s)\n", version, server.Version)
		},
	}
}
