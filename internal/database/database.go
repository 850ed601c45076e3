package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/policykeeper/policykeeper/config"
	"github.com/policykeeper/policykeeper/internal/logger"
)

// Collection names, one per entity type
const (
	CollCustomers = "customers"
	CollPolicies  = "policies"
	CollPayments  = "payments"
	CollUsers     = "users"
	CollSettings  = "settings"
)

// DB wraps the Mongo client. A nil client means the process runs in
// file mode; the decision is made once here and never revisited.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    config.DatabaseConfig
}

// New attempts to connect to MongoDB. No URI or a failed connection
// selects file mode for the process lifetime. File mode is a fully
// supported mode, so connection failure is logged, not returned.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.URI == "" {
		logger.Info("MONGODB_URI not set; using file store")
		return &DB{cfg: cfg}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		logger.Error("MongoDB connection failed; falling back to file store", "error", err)
		return &DB{cfg: cfg}, nil
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		logger.Error("MongoDB ping failed; falling back to file store", "error", err)
		_ = client.Disconnect(ctx)
		return &DB{cfg: cfg}, nil
	}

	d := &DB{
		client: client,
		db:     client.Database(cfg.Name),
		cfg:    cfg,
	}

	d.ensureIndexes(ctx)

	logger.Info("MongoDB connection established", "database", cfg.Name)
	return d, nil
}

// ensureIndexes creates the unique indexes the stores rely on. Logical
// ids must be unique per collection so a concurrent-create collision
// surfaces as a duplicate-key failure instead of a silent overwrite.
func (d *DB) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()

	unique := options.Index().SetUnique(true)
	indexes := map[string]mongo.IndexModel{
		CollCustomers: {Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
		CollPolicies:  {Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
		CollPayments:  {Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
		CollUsers:     {Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		CollSettings:  {Keys: bson.D{{Key: "key", Value: 1}}, Options: unique},
	}

	for coll, model := range indexes {
		if _, err := d.db.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
			logger.Warn("Index creation failed", "collection", coll, "error", err)
		}
	}
}

// Close disconnects the client
func (d *DB) Close(ctx context.Context) {
	if d.client != nil {
		if err := d.client.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", "error", err)
			return
		}
		logger.Info("MongoDB connection closed")
	}
}

// Collection returns a handle to a named collection
func (d *DB) Collection(name string) *mongo.Collection {
	if d.db == nil {
		return nil
	}
	return d.db.Collection(name)
}

// Health checks database connectivity
func (d *DB) Health(ctx context.Context) error {
	if d.client == nil {
		return errors.New("database not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()

	return d.client.Ping(ctx, nil)
}

// IsConfigured reports whether the external backend is active. The flag
// never flips within a run.
func (d *DB) IsConfigured() bool {
	return d.client != nil
}
