// Package mongostore is a MongoDB twofactor.Storage built on mongo-driver/v2.
//
// Credentials are documents keyed by user id with a version field used for
// compare-and-swap through FindOneAndUpdate. Attempts go to a separate
// collection indexed by (user_id, created_at). MongoDB stores times with
// millisecond precision.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

const (
	DefaultCredentialsCollection = "two_factor_credentials"
	DefaultAttemptsCollection    = "two_factor_attempts"
)

// Store implements twofactor.Storage, twofactor.AttemptCounter, audit.BatchWriter,
// audit.Querier and audit.Counter.
type Store struct {
	credentials *mongo.Collection
	attempts    *mongo.Collection
	now         func() time.Time
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	credentials string
	attempts    string
	now         func() time.Time
}

// WithCollections overrides the collection names.
func WithCollections(credentials, attempts string) Option {
	return func(o *storeOptions) {
		if credentials != "" {
			o.credentials = credentials
		}
		if attempts != "" {
			o.attempts = attempts
		}
	}
}

// WithClock overrides the time source used for timestamps on writes.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// New binds the store to db.
func New(db *mongo.Database, opts ...Option) *Store {
	if db == nil {
		panic("mongostore: database cannot be nil")
	}
	o := storeOptions{
		credentials: DefaultCredentialsCollection,
		attempts:    DefaultAttemptsCollection,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		credentials: db.Collection(o.credentials),
		attempts:    db.Collection(o.attempts),
		now:         o.now,
	}
}

// EnsureIndexes creates the attempt lookup index. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.attempts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("user_created"),
	})
	if err != nil {
		return fmt.Errorf("create attempts index: %w", err)
	}
	return nil
}

type credentialDocument struct {
	UserID               string     `bson:"_id"`
	EncryptedSecret      string     `bson:"encrypted_secret"`
	EncryptedBackupCodes string     `bson:"encrypted_backup_codes"`
	Enabled              bool       `bson:"enabled"`
	Version              int64      `bson:"version"`
	RotatedAt            *time.Time `bson:"rotated_at"`
	CreatedAt            time.Time  `bson:"created_at"`
	UpdatedAt            time.Time  `bson:"updated_at"`
}

func (d credentialDocument) credential() twofactor.Credential {
	c := twofactor.Credential{
		UserID:               d.UserID,
		EncryptedSecret:      d.EncryptedSecret,
		EncryptedBackupCodes: d.EncryptedBackupCodes,
		Enabled:              d.Enabled,
		Version:              d.Version,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	if d.RotatedAt != nil {
		c.RotatedAt = *d.RotatedAt
	}
	return c
}

func (s *Store) GetCredential(ctx context.Context, userID string) (*twofactor.Credential, error) {
	var doc credentialDocument
	if err := s.credentials.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, twofactor.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	cred := doc.credential()
	return &cred, nil
}

func (s *Store) setFields(cred twofactor.Credential) bson.M {
	updated := cred.UpdatedAt
	if updated.IsZero() {
		updated = s.now().UTC()
	}
	var rotated *time.Time
	if !cred.RotatedAt.IsZero() {
		rotated = &cred.RotatedAt
	}
	return bson.M{
		"encrypted_secret":       cred.EncryptedSecret,
		"encrypted_backup_codes": cred.EncryptedBackupCodes,
		"enabled":                cred.Enabled,
		"rotated_at":             rotated,
		"updated_at":             updated,
	}
}

func (s *Store) UpsertCredential(ctx context.Context, cred twofactor.Credential) (twofactor.Credential, error) {
	created := cred.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}

	update := bson.M{
		"$set":         s.setFields(cred),
		"$inc":         bson.M{"version": int64(1)},
		"$setOnInsert": bson.M{"created_at": created},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc credentialDocument
	if err := s.credentials.FindOneAndUpdate(ctx, bson.M{"_id": cred.UserID}, update, opts).Decode(&doc); err != nil {
		return twofactor.Credential{}, fmt.Errorf("upsert credential: %w", err)
	}
	return doc.credential(), nil
}

func (s *Store) CompareAndSwapCredential(ctx context.Context, cred twofactor.Credential, expectedVersion int64) (twofactor.Credential, error) {
	filter := bson.M{"_id": cred.UserID, "version": expectedVersion}
	update := bson.M{
		"$set": s.setFields(cred),
		"$inc": bson.M{"version": int64(1)},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc credentialDocument
	err := s.credentials.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.credential(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return twofactor.Credential{}, fmt.Errorf("swap credential: %w", err)
	}

	n, err := s.credentials.CountDocuments(ctx, bson.M{"_id": cred.UserID})
	if err != nil {
		return twofactor.Credential{}, fmt.Errorf("swap credential: %w", err)
	}
	if n == 0 {
		return twofactor.Credential{}, twofactor.ErrCredentialNotFound
	}
	return twofactor.Credential{}, twofactor.ErrVersionConflict
}

type attemptDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Success   bool      `bson:"success"`
	Method    string    `bson:"method"`
	Outcome   string    `bson:"outcome"`
	Error     string    `bson:"error,omitempty"`
	IP        string    `bson:"ip,omitempty"`
	UserAgent string    `bson:"user_agent,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func toAttemptDocument(a twofactor.Attempt) attemptDocument {
	return attemptDocument{
		ID:        a.ID.String(),
		UserID:    a.UserID,
		Success:   a.Success,
		Method:    string(a.Method),
		Outcome:   string(a.Outcome),
		Error:     a.Error,
		IP:        a.Source.IP,
		UserAgent: a.Source.UserAgent,
		CreatedAt: a.CreatedAt,
	}
}

func (d attemptDocument) attempt() (twofactor.Attempt, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return twofactor.Attempt{}, fmt.Errorf("parse attempt id: %w", err)
	}
	return twofactor.Attempt{
		ID:        id,
		UserID:    d.UserID,
		Success:   d.Success,
		Method:    twofactor.Method(d.Method),
		Outcome:   twofactor.Outcome(d.Outcome),
		Error:     d.Error,
		Source:    twofactor.Source{IP: d.IP, UserAgent: d.UserAgent},
		CreatedAt: d.CreatedAt,
	}, nil
}

func (s *Store) AppendAttempt(ctx context.Context, attempt twofactor.Attempt) error {
	if _, err := s.attempts.InsertOne(ctx, toAttemptDocument(attempt)); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// AppendAttempts inserts the batch with a single InsertMany.
func (s *Store) AppendAttempts(ctx context.Context, attempts []twofactor.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	docs := make([]any, len(attempts))
	for i, a := range attempts {
		docs[i] = toAttemptDocument(a)
	}
	if _, err := s.attempts.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("append attempts: %w", err)
	}
	return nil
}

func (s *Store) CountFailures(ctx context.Context, userID string, since time.Time) (int64, error) {
	n, err := s.attempts.CountDocuments(ctx, buildFilter(audit.Criteria{
		UserID:    userID,
		Outcomes:  twofactor.LockoutOutcomes,
		Success:   audit.Failed(),
		StartTime: since,
	}))
	if err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return n, nil
}

// FindAttempts implements audit.Querier. Results are ordered newest first.
func (s *Store) FindAttempts(ctx context.Context, criteria audit.Criteria) ([]twofactor.Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if criteria.Limit > 0 {
		opts.SetLimit(int64(criteria.Limit))
	}
	if criteria.Offset > 0 {
		opts.SetSkip(int64(criteria.Offset))
	}

	cur, err := s.attempts.Find(ctx, buildFilter(criteria), opts)
	if err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}

	var docs []attemptDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}

	out := make([]twofactor.Attempt, 0, len(docs))
	for _, d := range docs {
		a, err := d.attempt()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CountAttempts implements audit.Counter.
func (s *Store) CountAttempts(ctx context.Context, criteria audit.Criteria) (int64, error) {
	n, err := s.attempts.CountDocuments(ctx, buildFilter(criteria))
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func buildFilter(c audit.Criteria) bson.M {
	filter := bson.M{}
	if c.UserID != "" {
		filter["user_id"] = c.UserID
	}
	if c.Method != "" {
		filter["method"] = string(c.Method)
	}
	if len(c.Outcomes) > 0 {
		outcomes := make([]string, len(c.Outcomes))
		for i, o := range c.Outcomes {
			outcomes[i] = string(o)
		}
		filter["outcome"] = bson.M{"$in": outcomes}
	}
	if c.Success != nil {
		filter["success"] = *c.Success
	}

	created := bson.M{}
	if !c.StartTime.IsZero() {
		created["$gte"] = c.StartTime
	}
	if !c.EndTime.IsZero() {
		created["$lt"] = c.EndTime
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	return filter
}
