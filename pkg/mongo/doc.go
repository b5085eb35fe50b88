// Package mongo provides MongoDB connection management for the mongostore adapter.
//
// Configuration is read from MONGODB_* environment variables. New connects
// with the official v2 driver and retries failed pings with exponential
// backoff (github.com/sethvargo/go-retry).
//
// # Usage
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "")
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	store := mongostore.New(db)
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
//
// # Error Handling
//
// Connection failures join ErrFailedToConnectToMongo with the last driver
// error, so errors.Is works on both.
package mongo
