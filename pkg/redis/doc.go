// Package redis connects to Redis for the redisstore adapter.
//
// Config is read from REDIS_* environment variables. Connect parses the URL,
// pings the server and retries with exponential backoff
// (github.com/sethvargo/go-retry). Healthcheck wraps Ping for readiness probes.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := redisstore.New(client, redisstore.WithPrefix(cfg.KeyPrefix))
package redis
