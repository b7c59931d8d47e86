package config

import "errors"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// ErrMissingEnv reports ${VAR} references to unset variables.
var ErrMissingEnv = errors.New("config: missing required environment variables")
