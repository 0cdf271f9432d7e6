package config

import (
	"github.com/jpalmerr/meterpulse"
)

// BuildOptions converts parsed configuration into collector options.
//
// The result covers only what the file configures; callers append options
// for the period, logger and output.
func BuildOptions(cfg *Config) []meterpulse.Option {
	opts := []meterpulse.Option{
		meterpulse.WithHosts(cfg.Hosts...),
		meterpulse.WithPort(cfg.Port),
		meterpulse.WithMaxConcurrency(cfg.MaxConcurrency),
	}

	if cfg.ResolveTimeout != 0 {
		opts = append(opts, meterpulse.WithResolveTimeout(cfg.ResolveTimeout.Duration()))
	}

	if cfg.Listen != "" {
		opts = append(opts, meterpulse.WithListen(cfg.Listen))
	}

	return opts
}
