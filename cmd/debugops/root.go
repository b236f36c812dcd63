package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/config"
	"github.com/debugops/debugops/internal/logging"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

// cfg is loaded in PersistentPreRunE and shared by every command
var cfg *config.Config

// envFile is the optional dotenv file read before the environment
var envFile string

var rootCmd = &cobra.Command{
	Use:   "debugops",
	Short: "Incident lifecycle service with LLM-assisted root cause analysis",
	Long: `DebugOps records incidents, analyzes them with an LLM to propose a patch,
and tracks each incident from OPEN through ANALYZING and PATCH_PROPOSED to
RESOLVED with an append-only event log.

Configuration is read from the environment (and a .env file if present).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		// A missing .env file is fine; the environment may carry everything
		_ = godotenv.Load(envFile)

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	// serve is the default command
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// initLogging installs the global zap logger from cfg
func initLogging() func() {
	_, cleanup := logging.Init(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	zap.S().Debugf("Logging initialized (level=%s format=%s)", cfg.LogLevel, cfg.LogFormat)
	return cleanup
}
