package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/50naija1/pizuna-app/internal/config"
	"github.com/50naija1/pizuna-app/internal/log"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pizuna:", err)
		os.Exit(1)
	}
}

// app carries resolved configuration into subcommands.
type app struct {
	cfg    config.Config
	logger *zerolog.Logger
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)
	a := &app{}

	cmd := &cobra.Command{
		Use:           "pizuna",
		Short:         "Terminal client for the Pizuna chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bootstrap := log.New("info")
			cfg, _, err := config.Load(bootstrap, configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(overrides)
			a.cfg = cfg
			a.logger = log.New(cfg.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().StringVar(&overrides.ServerURL, "server", "", "server base URL")
	cmd.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(loginCmd(a), logoutCmd(a), chatCmd(a))
	return cmd
}
