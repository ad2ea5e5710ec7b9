package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openann19/petphotos/config"
	"github.com/openann19/petphotos/core"
	"github.com/openann19/petphotos/hooks"
)

// commandContext carries persistent flags and the lazily loaded config.
type commandContext struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg := config.Default()
	if path := strings.TrimSpace(c.configPath); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		cfg.LogFormat = c.logFormat
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	c.cfg = &cfg
	return cfg, nil
}

func (c *commandContext) logger(w io.Writer) core.Logger {
	cfg, _ := c.ensureConfig()
	return hooks.NewZerologLogger(w, cfg.LogLevel, cfg.LogFormat)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "petphotos",
		Short:         "Manage the photo slots of a pet profile",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
