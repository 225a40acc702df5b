package config

import "errors"

var (
	// ErrUnknownKey is returned for configuration keys memvid does not
	// recognize, whether in config.toml or on the command line.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalid is returned by Validate for out-of-range values.
	ErrInvalid = errors.New("invalid config")
)
