// Package config loads typed configuration from the environment.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - LoadEnv reads one or more .env files, later files winning.
//   - Load parses the environment into a struct by its `env` tags and caches
//     the result per type, so every package can call it cheaply.
//   - MustLoad and MustLoadEnv panic instead of returning errors.
//   - Types implementing Validator (twofactor.Config does) are validated
//     after parsing; invalid values are reported with ErrInvalidConfig.
//   - ResetCache and ForceReloadConfig drop or refresh cached values, mostly
//     for tests.
//
// Before the first Load the files listed in TWOFA_ENV_FILE (comma separated,
// default ".env") are read without overriding variables already set.
//
// # Usage
//
//	config.MustLoadEnv(".env")
//
//	var cfg twofactor.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// A failed parse is never cached. Errors wrap ErrParsingConfig,
// ErrInvalidConfig, ErrNilPointer or ErrLoadingEnvFile and can be checked with errors.Is.
package config
