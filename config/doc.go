// Package config provides loading, environment overlay and validation of
// the docstream runtime configuration.
//
// Example:
//
//	cfg, err := config.Load("/etc/docstream.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
