package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobarin/montage/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "montage",
		Short:         "Assemble narrated short videos from stills, clips and word timings",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./montage.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newRenderCmd(opts),
		newPlanCmd(),
		newCaptionsCmd(),
		newServeCmd(opts),
	)
	return root
}

// loadConfig reads configuration and sets up console logging for CLI use.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	config.SetupLogging(cfg.LogLevel, "console", cmd.ErrOrStderr())
	log.Debug().Str("temp_dir", cfg.TempDir).Msg("config loaded")
	return cfg, nil
}
