package config

import "errors"

var (
	errPortRange   = errors.New("must be 1..65535")
	errNegative    = errors.New("must be >= 0")
	errNotPositive = errors.New("must be > 0")
	errRequired    = errors.New("must be set")
)
