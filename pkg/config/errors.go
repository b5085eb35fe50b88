package config

import "errors"

var (
	ErrParsingConfig  = errors.New("failed to parse environment variables into config")
	ErrInvalidConfig  = errors.New("configuration failed validation")
	ErrNilPointer     = errors.New("nil pointer provided to config loader")
	ErrLoadingEnvFile = errors.New("failed to load env file")
)
