package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/policykeeper/policykeeper/internal/database"
	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/metrics"
	"github.com/policykeeper/policykeeper/internal/models"
)

// MongoStore persists each entity type in its own collection. The
// logical integer id lives in the documents as an ordinary field;
// users are the one exception, addressed by Mongo's own _id.
type MongoStore struct {
	db *database.DB
}

// NewMongoStore creates a Mongo-backed store
func NewMongoStore(db *database.DB) *MongoStore {
	return &MongoStore{db: db}
}

// settingsKey is the fixed logical key of the single settings document.
// Other keys are reserved but not currently populated.
const settingsKey = "admin_config"

type mongoUser struct {
	OID         primitive.ObjectID `bson:"_id,omitempty"`
	models.User `bson:",inline"`
}

type mongoSettings struct {
	Key       string `bson:"key"`
	AdminUser string `bson:"admin_user,omitempty"`
	AdminPass string `bson:"admin_pass,omitempty"`
}

// nextID derives the next logical id from the current maximum. Deleted
// records never free their ids; two racing creates can read the same
// maximum, which the unique index turns into a creation conflict.
func (s *MongoStore) nextID(ctx context.Context, coll string) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})
	var doc struct {
		ID int `bson:"id"`
	}
	err := s.db.Collection(coll).FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 1, nil
		}
		return 0, apperrors.StoreError{Operation: "next id", Err: err}
	}
	return doc.ID + 1, nil
}

func wrapInsertErr(entity string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s id collision: %w", entity, apperrors.ErrConflict)
	}
	return apperrors.StoreError{Operation: "create " + entity, Err: err}
}

// GetAll reads every collection and computes next-id hints from the
// observed maxima.
func (s *MongoStore) GetAll(ctx context.Context) (*models.Snapshot, error) {
	var customers []models.Customer
	if err := s.findAll(ctx, database.CollCustomers, &customers); err != nil {
		return nil, err
	}
	var policies []models.Policy
	if err := s.findAll(ctx, database.CollPolicies, &policies); err != nil {
		return nil, err
	}

	var settings mongoSettings
	err := s.db.Collection(database.CollSettings).
		FindOne(ctx, bson.D{{Key: "key", Value: settingsKey}}).Decode(&settings)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.StoreError{Operation: "load settings", Err: err}
	}

	maxPolicy, maxCustomer := 0, 0
	for _, p := range policies {
		if p.ID > maxPolicy {
			maxPolicy = p.ID
		}
	}
	for _, c := range customers {
		if c.ID > maxCustomer {
			maxCustomer = c.ID
		}
	}

	if customers == nil {
		customers = []models.Customer{}
	}
	if policies == nil {
		policies = []models.Policy{}
	}

	return &models.Snapshot{
		Policies:       policies,
		Customers:      customers,
		Settings:       models.Settings{AdminUser: settings.AdminUser, AdminPass: settings.AdminPass},
		NextPolicyID:   maxPolicy + 1,
		NextCustomerID: maxCustomer + 1,
	}, nil
}

func (s *MongoStore) findAll(ctx context.Context, coll string, out any) error {
	cur, err := s.db.Collection(coll).Find(ctx, bson.D{})
	if err != nil {
		return apperrors.StoreError{Operation: "load " + coll, Err: err}
	}
	if err := cur.All(ctx, out); err != nil {
		return apperrors.StoreError{Operation: "decode " + coll, Err: err}
	}
	return nil
}

func (s *MongoStore) CreateCustomer(ctx context.Context, c models.Customer) (models.Customer, error) {
	id, err := s.nextID(ctx, database.CollCustomers)
	if err != nil {
		return models.Customer{}, err
	}
	c.ID = id
	if _, err := s.db.Collection(database.CollCustomers).InsertOne(ctx, c); err != nil {
		return models.Customer{}, wrapInsertErr("customer", err)
	}
	metrics.RecordStoreOp("customer", "create", "success")
	return c, nil
}

func (s *MongoStore) UpdateCustomer(ctx context.Context, id int, patch models.CustomerPatch) error {
	return s.updateByLogicalID(ctx, database.CollCustomers, id, patch)
}

func (s *MongoStore) DeleteCustomer(ctx context.Context, id int) error {
	return s.deleteByLogicalID(ctx, database.CollCustomers, id)
}

func (s *MongoStore) CreatePolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	id, err := s.nextID(ctx, database.CollPolicies)
	if err != nil {
		return models.Policy{}, err
	}
	p.ID = id
	if _, err := s.db.Collection(database.CollPolicies).InsertOne(ctx, p); err != nil {
		return models.Policy{}, wrapInsertErr("policy", err)
	}
	metrics.RecordStoreOp("policy", "create", "success")
	return p, nil
}

func (s *MongoStore) UpdatePolicy(ctx context.Context, id int, patch models.PolicyPatch) error {
	return s.updateByLogicalID(ctx, database.CollPolicies, id, patch)
}

func (s *MongoStore) DeletePolicy(ctx context.Context, id int) error {
	return s.deleteByLogicalID(ctx, database.CollPolicies, id)
}

func (s *MongoStore) PaymentsByCustomer(ctx context.Context, customerID int) ([]models.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "id", Value: -1}})
	cur, err := s.db.Collection(database.CollPayments).
		Find(ctx, bson.D{{Key: "customer_id", Value: customerID}}, opts)
	if err != nil {
		return nil, apperrors.StoreError{Operation: "load payments", Err: err}
	}
	var payments []models.Payment
	if err := cur.All(ctx, &payments); err != nil {
		return nil, apperrors.StoreError{Operation: "decode payments", Err: err}
	}
	return payments, nil
}

func (s *MongoStore) CreatePayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	id, err := s.nextID(ctx, database.CollPayments)
	if err != nil {
		return models.Payment{}, err
	}
	p.ID = id
	if _, err := s.db.Collection(database.CollPayments).InsertOne(ctx, p); err != nil {
		return models.Payment{}, wrapInsertErr("payment", err)
	}
	return p, nil
}

func (s *MongoStore) DeletePayment(ctx context.Context, id int) error {
	return s.deleteByLogicalID(ctx, database.CollPayments, id)
}

func (s *MongoStore) Users(ctx context.Context) ([]models.User, error) {
	cur, err := s.db.Collection(database.CollUsers).Find(ctx, bson.D{})
	if err != nil {
		return nil, apperrors.StoreError{Operation: "load users", Err: err}
	}
	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperrors.StoreError{Operation: "decode users", Err: err}
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		u := d.User
		u.MongoID = d.OID.Hex()
		users = append(users, u)
	}
	return users, nil
}

func (s *MongoStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var doc mongoUser
	err := s.db.Collection(database.CollUsers).
		FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperrors.StoreError{Operation: "load user", Err: err}
	}
	u := doc.User
	u.MongoID = doc.OID.Hex()
	return &u, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	res, err := s.db.Collection(database.CollUsers).InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, fmt.Errorf("username taken: %w", apperrors.ErrConflict)
		}
		return models.User{}, apperrors.StoreError{Operation: "create user", Err: err}
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.MongoID = oid.Hex()
	}
	return u, nil
}

// UpdateUser is keyed by the store's internal identifier, unlike every
// other entity type.
func (s *MongoStore) UpdateUser(ctx context.Context, key string, patch models.UserPatch) error {
	oid, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return nil
	}
	_, err = s.db.Collection(database.CollUsers).
		UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: patch}})
	if err != nil {
		return apperrors.StoreError{Operation: "update user", Err: err}
	}
	return nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, key string) error {
	oid, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return nil
	}
	_, err = s.db.Collection(database.CollUsers).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return apperrors.StoreError{Operation: "delete user", Err: err}
	}
	return nil
}

// UpdateSettings upserts the single settings document under its fixed key.
func (s *MongoStore) UpdateSettings(ctx context.Context, username, password string) error {
	doc := mongoSettings{Key: settingsKey, AdminUser: username, AdminPass: password}
	_, err := s.db.Collection(database.CollSettings).UpdateOne(ctx,
		bson.D{{Key: "key", Value: settingsKey}},
		bson.D{{Key: "$set", Value: doc}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return apperrors.StoreError{Operation: "update settings", Err: err}
	}
	return nil
}

// Reset drops customers and policies. Settings survive so the admin
// keeps access.
func (s *MongoStore) Reset(ctx context.Context) error {
	for _, coll := range []string{database.CollCustomers, database.CollPolicies} {
		if _, err := s.db.Collection(coll).DeleteMany(ctx, bson.D{}); err != nil {
			return apperrors.StoreError{Operation: "reset " + coll, Err: err}
		}
	}
	return nil
}

// Health checks the database connection
func (s *MongoStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func (s *MongoStore) updateByLogicalID(ctx context.Context, coll string, id int, patch any) error {
	_, err := s.db.Collection(coll).
		UpdateOne(ctx, bson.D{{Key: "id", Value: id}}, bson.D{{Key: "$set", Value: patch}})
	if err != nil {
		return apperrors.StoreError{Operation: "update " + coll, Err: err}
	}
	return nil
}

func (s *MongoStore) deleteByLogicalID(ctx context.Context, coll string, id int) error {
	_, err := s.db.Collection(coll).DeleteOne(ctx, bson.D{{Key: "id", Value: id}})
	if err != nil {
		return apperrors.StoreError{Operation: "delete " + coll, Err: err}
	}
	return nil
}
