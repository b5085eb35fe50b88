// Package logger builds the slog loggers used by the two-factor engine, its
// stores and the operator CLI.
//
// Every logger created by New goes through a handler that does two things
// before a record reaches the text or JSON handler:
//
//   - it appends attributes pulled from the record's context by registered
//     ContextExtractor functions, and
//   - it replaces the value of any attribute whose key is listed in
//     DefaultRedactedKeys (secret, code, backup_codes, vault_key, ...) with
//     RedactedValue, including keys nested in groups and LogValuer results.
//
// Decorate applies the same handler to a logger built elsewhere, so a caller
// supplied *slog.Logger passed to twofactor.WithLogger still never prints a
// secret and still carries the request source attached with
// twofactor.WithSource.
//
// # Usage
//
//	var cfg logger.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	log := logger.NewFromConfig(cfg)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "two-factor verification rejected",
//	    logger.UserID("42"),
//	    logger.Method("totp"),
//	    logger.Outcome("invalid_code"),
//	)
//
// # Configuration
//
// Config reads LOG_LEVEL, LOG_FORMAT, APP_ENV, APP_NAME and LOG_REDACT_KEYS.
// The development profile logs text at debug level; staging and production
// log JSON at info level. LOG_LEVEL and LOG_FORMAT override the profile.
//
// Error and UserID return an empty attribute for nil input, so
//
//	log.Info("operation finished", logger.Error(err))
//
// needs no nil check.
package logger
