package store

import (
	"context"

	"github.com/policykeeper/policykeeper/config"
	"github.com/policykeeper/policykeeper/internal/database"
	"github.com/policykeeper/policykeeper/internal/models"
)

// Store is the backend-agnostic persistence contract. Exactly one
// implementation is selected at startup; callers never branch on the
// backend themselves.
type Store interface {
	GetAll(ctx context.Context) (*models.Snapshot, error)

	CreateCustomer(ctx context.Context, c models.Customer) (models.Customer, error)
	UpdateCustomer(ctx context.Context, id int, patch models.CustomerPatch) error
	DeleteCustomer(ctx context.Context, id int) error

	CreatePolicy(ctx context.Context, p models.Policy) (models.Policy, error)
	UpdatePolicy(ctx context.Context, id int, patch models.PolicyPatch) error
	DeletePolicy(ctx context.Context, id int) error

	PaymentsByCustomer(ctx context.Context, customerID int) ([]models.Payment, error)
	CreatePayment(ctx context.Context, p models.Payment) (models.Payment, error)
	DeletePayment(ctx context.Context, id int) error

	Users(ctx context.Context) ([]models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	UpdateUser(ctx context.Context, key string, patch models.UserPatch) error
	DeleteUser(ctx context.Context, key string) error

	UpdateSettings(ctx context.Context, username, password string) error

	Reset(ctx context.Context) error
	Health(ctx context.Context) error
}

// New selects the backend once: the Mongo store when the database
// connected at startup, the file store otherwise.
func New(db *database.DB, cfg config.FileStoreConfig) Store {
	if db.IsConfigured() {
		return NewMongoStore(db)
	}
	return NewFileStore(cfg.Path, cfg.BackupsDir)
}
