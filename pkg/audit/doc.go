// Package audit ships the verification attempt log to storage and reads it back.
//
// Every verification appends a twofactor.Attempt. Writing each attempt with
// its own round trip is wasteful under load, so AsyncWriter collects attempts
// from concurrent requests into batches and hands them to a BatchWriter
// (pgstore, mongostore, redisstore and memstore all implement it).
//
// # Architecture
//
// AsyncWriter implements twofactor.AttemptStore and is plugged into the
// service with twofactor.WithAttemptStore. A single worker goroutine flushes
// a batch when it reaches BatchSize or when BatchTimeout elapses. When the
// buffer is full the attempt is written synchronously instead of dropped.
// Storage calls run under their own StorageTimeout, detached from request
// contexts.
//
// By default AppendAttempt waits for its batch to be written and returns the
// storage error. With Detached set it returns once the attempt is queued and
// batch failures are only logged.
//
// Reader wraps a Querier with Find, Count and FailureRate helpers. It also
// implements twofactor.AttemptCounter and can drive the lockout policy.
//
// # Usage
//
//	store := pgstore.New(pool)
//
//	writer, closeWriter := audit.NewAsyncWriter(store, audit.AsyncOptions{
//		BatchSize: 50,
//		Detached:  true,
//		Logger:    log,
//	})
//	defer closeWriter(context.Background())
//
//	svc, err := twofactor.NewFromConfig(store, cfg,
//		twofactor.WithAttemptStore(writer),
//		twofactor.WithLockout(5, 15*time.Minute),
//	)
//
//	reader := audit.NewReader(store)
//	rate, err := reader.FailureRate(ctx, userID, time.Now().Add(-24*time.Hour))
//
// # Error Handling
//
// AppendAttempt returns ErrWriterClosed after Close. Reader methods return
// ErrInvalidCriteria for negative limits or an empty time range.
package audit
