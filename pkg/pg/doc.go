// Package pg bootstraps the PostgreSQL layer used by pgstore: a pgx/v5
// connection pool, goose migrations and a health check.
//
// # Architecture
//
//   - Config is populated from environment variables (PG_*) with
//     github.com/caarlos0/env through config.Load.
//   - Connect opens a *pgxpool.Pool and retries with exponential backoff
//     (github.com/sethvargo/go-retry) until the database answers a ping.
//   - Migrate runs goose migrations from an fs.FS, typically the embedded
//     schema of pgstore.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//
// # Error Handling
//
// IsNotFoundError reports pgx.ErrNoRows, which pgstore maps to
// twofactor.ErrCredentialNotFound.
package pg
