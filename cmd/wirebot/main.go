package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/wirebot/internal/app"
	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "wirebot",
		Short:         "Chat bot for wirechat servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newServeCmd(opts), newConfigCmd(opts), newSendCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the chat server and run until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New(opts.logLevel)
			cfg, err := loadConfig(bootLogger, opts)
			if err != nil {
				bootLogger.Error().Err(err).Msg("failed to load config")
				return err
			}
			logger := log.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to initialize application")
				return err
			}

			logger.Info().
				Str("url", cfg.Adapter.URL).
				Str("user", cfg.Adapter.User).
				Strs("rooms", cfg.Adapter.Rooms).
				Str("status_addr", cfg.StatusAddr).
				Msg("starting wirebot")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("wirebot exited with error")
				return err
			}
			logger.Info().Msg("wirebot stopped")
			return nil
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML without writing a config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := zerolog.Nop()
			cfg, _, err := config.Read(&logger, opts.configPath)
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{LogLevel: opts.logLevel})
			if cfg.Adapter.Token.Secret != "" {
				cfg.Adapter.Token.Secret = "********"
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var (
		room    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Post one message to a room and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLogger := log.New(opts.logLevel)
			cfg, err := loadConfig(bootLogger, opts)
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			text := strings.Join(args, " ")
			if err := app.SendOnce(ctx, &cfg, logger, room, text); err != nil {
				logger.Error().Err(err).Str("room", room).Msg("send failed")
				return err
			}
			logger.Info().Str("room", room).Msg("message sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "general", "room to post into")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long")
	return cmd
}

func loadConfig(logger *zerolog.Logger, opts *rootOptions) (config.Config, error) {
	cfg, path, err := config.Load(logger, opts.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(config.Config{LogLevel: opts.logLevel})
	logger.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}
