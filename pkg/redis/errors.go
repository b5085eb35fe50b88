package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL, use REDIS_URL env var")
	ErrFailedToParseRedisConnString = errors.New("invalid redis connection URL")
	ErrRedisNotReady                = errors.New("redis did not answer ping before retries ran out")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
