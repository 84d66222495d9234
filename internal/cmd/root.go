// Package cmd implements the fluxgate command line.
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/viant/fluxgate"
	"github.com/viant/fluxgate/policy"
)

const envPrefix = "FLUXGATE"

// cli carries settings shared by every sub command.
type cli struct {
	viper *viper.Viper
}

// NewRootCommand creates the fluxgate command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{viper: viper.New()}
	root := &cobra.Command{
		Use:           "fluxgate",
		Short:         "Approval gated plan orchestration under watchdog supervision",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml or json)")
	flags.String("store", "", "store vendor: memory, fs or sqlite")
	flags.String("store-url", "", "fs base location or sqlite file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("policy", "", "approval policy mode: ask, auto or deny")

	c.viper.SetEnvPrefix(envPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.viper.AutomaticEnv()
	for key, flag := range map[string]string{
		"config":       "config",
		"store.vendor": "store",
		"store.url":    "store-url",
		"log.level":    "log-level",
		"log.format":   "log-format",
		"policy.mode":  "policy",
	} {
		_ = c.viper.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		c.planCommand(),
		c.approvalsCommand(),
		c.runCommand(),
		c.statusCommand(),
	)
	return root
}

// config loads the config file when given, then applies flag and
// FLUXGATE_ environment overrides.
func (c *cli) config(ctx context.Context) (*fluxgate.Config, error) {
	cfg := fluxgate.DefaultConfig()
	if location := c.viper.GetString("config"); location != "" {
		loaded, err := fluxgate.LoadConfig(ctx, location)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	v := c.viper
	if v.IsSet("store.vendor") {
		cfg.Store.Vendor = v.GetString("store.vendor")
	}
	if v.IsSet("store.url") {
		cfg.Store.URL = v.GetString("store.url")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = v.GetString("log.format")
	}
	if v.IsSet("policy.mode") {
		if cfg.Policy == nil {
			cfg.Policy = &policy.Config{}
		}
		cfg.Policy.Mode = v.GetString("policy.mode")
	}
	return cfg, cfg.Validate()
}

// service builds a fluxgate service from the effective config.
func (c *cli) service(cmd *cobra.Command, options ...fluxgate.Option) (*fluxgate.Service, error) {
	cfg, err := c.config(cmd.Context())
	if err != nil {
		return nil, err
	}
	options = append([]fluxgate.Option{
		fluxgate.WithConfig(cfg),
		fluxgate.WithLogger(fluxgate.NewLogger(cmd.ErrOrStderr(), cfg.Log)),
		fluxgate.WithDryRunOutput(cmd.OutOrStdout()),
	}, options...)
	return fluxgate.New(cmd.Context(), options...)
}
