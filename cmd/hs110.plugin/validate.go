package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/meterpulse/config"
)

// validateCmd validates a config file without polling any plug.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate the plugin configuration without contacting any plug.

This command parses the YAML, expands environment variables, and validates
all fields. Without --config it checks the file netdata would load.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  hs110.plugin validate -c hs110.conf`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, warn := configPath(cmd)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	listen := cfg.Listen
	if listen == "" {
		listen = "disabled"
	}
	concurrency := "unlimited"
	if cfg.MaxConcurrency > 0 {
		concurrency = fmt.Sprint(cfg.MaxConcurrency)
	}

	out := cmd.OutOrStdout()
	if warn != nil {
		fmt.Fprintf(out, "Note: %v\n", warn)
	}
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  File:            %s\n", path)
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  Max concurrency: %s\n", concurrency)
	fmt.Fprintf(out, "  Listen:          %s\n", listen)
	fmt.Fprintf(out, "  Hosts:           %d\n", len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		fmt.Fprintf(out, "    - %s\n", h)
	}

	return nil
}
