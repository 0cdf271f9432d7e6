// Package main is the entry point for the hs110.plugin netdata plugin.
//
// netdata starts external plugins with the collection period in seconds as
// the only argument and reads the plugin protocol from stdout. Logs go to
// stderr, which netdata forwards to its error log.
//
// Usage:
//
//	hs110.plugin 5                      # run, polling every 5 seconds
//	hs110.plugin -c hs110.conf 500ms    # explicit config and period
//	hs110.plugin validate -c hs110.conf # validate configuration
//	hs110.plugin version                # show version info
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/meterpulse"
	"github.com/jpalmerr/meterpulse/config"
	"github.com/jpalmerr/meterpulse/internal/scheduler"
)

// pluginName is reported in every log record. netdata requires the
// ".plugin" suffix on the binary.
const pluginName = "hs110.plugin"

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd runs the collector.
var rootCmd = &cobra.Command{
	Use:   "hs110.plugin [period]",
	Short: "netdata plugin for TP-Link HS110 smart plugs",
	Long: `hs110.plugin polls TP-Link HS110 smart plugs and reports their power,
voltage, current and total consumption to netdata.

The period is a number of seconds (as netdata passes it) or a duration such
as 500ms. It defaults to 1s.

The plug list is read from hs110.conf in $NETDATA_USER_CONFIG_DIR unless
--config is given:

  hosts:
    - 192.168.0.124
    - 192.168.0.156
  listen: ":19110"   # optional /metrics and JSON API`,
	// netdata owns the command line: only the first argument is read and a
	// bad period must fall back to the default rather than exit.
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	RunE:         runCollect,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this plugin binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", pluginName, version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (default $NETDATA_USER_CONFIG_DIR/hs110.conf)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	if len(args) > 1 {
		logger.Warn("extra arguments ignored", "args", args[1:])
	}
	period, warn := scheduler.ParsePeriod(arg)
	if warn != nil {
		logger.Warn("period argument ignored", "reason", warn.Error(), "period", period.String())
	}

	path, err := configPath(cmd)
	if err != nil {
		logger.Warn("config directory not provided", "reason", err.Error(), "path", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Info("config loaded", "path", path, "hosts", len(cfg.Hosts))

	opts := append(config.BuildOptions(cfg),
		meterpulse.WithPeriod(period),
		meterpulse.WithLogger(logger),
		meterpulse.WithOutput(cmd.OutOrStdout()),
	)

	c, err := meterpulse.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// configPath returns the --config flag, or netdata's default location. The
// error is a non-fatal warning about the default location.
func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}
