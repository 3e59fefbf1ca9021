package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dropDatabas3/gatehouse/internal/config"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func rootCmd() *cobra.Command {
	configPath := envOr("GATEHOUSE_CONFIG", "")
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "gatehouse",
		Short:         "Authentication and account-admission service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: c.App.Env, Level: c.Log.Level, ServiceName: c.App.Name})
			cfg = c
			cmd.SetContext(logger.ToContext(cmd.Context(), logger.L()))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "YAML config file (env GATEHOUSE_CONFIG)")

	get := func() *config.Config { return cfg }
	root.AddCommand(
		serveCmd(get),
		migrateCmd(get),
		inviteCmd(get),
		accountCmd(get),
		banCmd(get),
		keygenCmd(),
	)
	return root
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
