package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

const (
	transactionsCollection = "transactions"

	defaultOperationTimeout       = 5 * time.Second
	defaultServerSelectionTimeout = 5 * time.Second
)

// MongoConfig defines the connection settings for the Mongo-backed ledger.
type MongoConfig struct {
	URI              string
	Database         string
	OperationTimeout time.Duration
	Logger           log.Logger
}

func (cfg MongoConfig) validate() error {
	if strings.TrimSpace(cfg.URI) == "" {
		return fmt.Errorf("ledger: mongo uri cannot be empty")
	}

	if strings.TrimSpace(cfg.Database) == "" {
		return fmt.Errorf("ledger: mongo database cannot be empty")
	}

	return nil
}

// MongoStore is the durable Store implementation backed by a MongoDB
// transactions collection. A unique index on correlationId makes Append
// idempotent: a retried append surfaces as a duplicate-key error.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	logger     log.Logger
}

// NewMongoStore connects to MongoDB, ensures the correlation-id index, and
// returns the store.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(defaultServerSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: mongo connect failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ledger: mongo ping failed: %w", err)
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(transactionsCollection),
		timeout:    timeout,
		logger:     logger,
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Infof("ledger: connected to mongo database %s", cfg.Database)

	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	idxCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "correlationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "sourceAccount", Value: 1}, {Key: "createdAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "destinationAccount", Value: 1}, {Key: "createdAt", Value: 1}},
		},
	}

	if _, err := s.collection.Indexes().CreateMany(idxCtx, indexes); err != nil {
		return fmt.Errorf("ledger: mongo create index failed: %w", err)
	}

	return nil
}

// Append inserts the record. Duplicate correlation ids are rejected with
// ErrDuplicateRecord via the unique index.
func (s *MongoStore) Append(ctx context.Context, rec transaction.Record) (string, error) {
	if rec.CorrelationID == "" {
		return "", ErrEmptyCorrelationID
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.collection.InsertOne(opCtx, mongoRecord(rec)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateRecord
		}

		return "", fmt.Errorf("ledger: mongo insert failed: %w", err)
	}

	return rec.ID, nil
}

// FindByAccount returns records where the account is source or destination,
// in creation order.
func (s *MongoStore) FindByAccount(ctx context.Context, accountNumber string) ([]transaction.Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"sourceAccount": accountNumber},
		bson.M{"destinationAccount": accountNumber},
	}}

	cursor, err := s.collection.Find(opCtx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ledger: mongo find failed: %w", err)
	}
	defer cursor.Close(opCtx)

	docs := make([]mongoRecordDoc, 0)
	if err := cursor.All(opCtx, &docs); err != nil {
		return nil, fmt.Errorf("ledger: mongo cursor failed: %w", err)
	}

	records := make([]transaction.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.toRecord()
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
