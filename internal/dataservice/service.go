package dataservice

import (
	"context"
	"fmt"
	"time"

	"github.com/policykeeper/policykeeper/internal/auth"
	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/logger"
	"github.com/policykeeper/policykeeper/internal/models"
	"github.com/policykeeper/policykeeper/internal/query"
	"github.com/policykeeper/policykeeper/internal/store"
)

// Service is the backend-agnostic facade every caller goes through.
// It owns no persistent state; the backend decision was made when the
// injected store was constructed.
type Service struct {
	store store.Store
}

// New creates the facade over the selected store
func New(st store.Store) *Service {
	return &Service{store: st}
}

// GetAll returns every collection plus next-id hints
func (s *Service) GetAll(ctx context.Context) (*models.Snapshot, error) {
	return s.store.GetAll(ctx)
}

// CreateCustomer validates and persists a new customer
func (s *Service) CreateCustomer(ctx context.Context, c models.Customer) (models.Customer, error) {
	if c.Name == "" {
		return models.Customer{}, apperrors.ValidationError{Field: "name", Message: "required"}
	}
	return s.store.CreateCustomer(ctx, c)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int, patch models.CustomerPatch) error {
	return s.store.UpdateCustomer(ctx, id, patch)
}

// DeleteCustomer refuses to remove a customer still referenced by a
// policy.
func (s *Service) DeleteCustomer(ctx context.Context, id int) error {
	snap, err := s.store.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range snap.Policies {
		if p.CustomerID == id {
			return fmt.Errorf("customer %d has policies: %w", id, apperrors.ErrConflict)
		}
	}
	return s.store.DeleteCustomer(ctx, id)
}

// CreatePolicy validates required fields and applies defaults before
// persisting.
func (s *Service) CreatePolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	switch {
	case p.CustomerID == 0:
		return models.Policy{}, apperrors.ValidationError{Field: "customer_id", Message: "required"}
	case p.PolicyNumber == "":
		return models.Policy{}, apperrors.ValidationError{Field: "policy_number", Message: "required"}
	case p.Insurer == "":
		return models.Policy{}, apperrors.ValidationError{Field: "insurer", Message: "required"}
	case p.StartDate == "":
		return models.Policy{}, apperrors.ValidationError{Field: "start_date", Message: "required"}
	case p.EndDate == "":
		return models.Policy{}, apperrors.ValidationError{Field: "end_date", Message: "required"}
	}
	if p.Status == "" {
		p.Status = models.StatusActive
	}
	if p.PolicyType == "" {
		p.PolicyType = "Diğer"
	}
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return s.store.CreatePolicy(ctx, p)
}

func (s *Service) UpdatePolicy(ctx context.Context, id int, patch models.PolicyPatch) error {
	return s.store.UpdatePolicy(ctx, id, patch)
}

func (s *Service) DeletePolicy(ctx context.Context, id int) error {
	return s.store.DeletePolicy(ctx, id)
}

// DeleteCancelledPolicies removes every policy whose status is a
// cancelled variant and returns how many were removed.
func (s *Service) DeleteCancelledPolicies(ctx context.Context) (int, error) {
	snap, err := s.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, p := range snap.Policies {
		if !query.IsCancelled(p.Status) {
			continue
		}
		if err := s.store.DeletePolicy(ctx, p.ID); err != nil {
			logger.Error("Cancelled-policy sweep failed", "policy_id", p.ID, "error", err)
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *Service) PaymentsByCustomer(ctx context.Context, customerID int) ([]models.Payment, error) {
	return s.store.PaymentsByCustomer(ctx, customerID)
}

func (s *Service) CreatePayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	if p.CustomerID == 0 {
		return models.Payment{}, apperrors.ValidationError{Field: "customer_id", Message: "required"}
	}
	if p.Amount == 0 {
		return models.Payment{}, apperrors.ValidationError{Field: "amount", Message: "required"}
	}
	if p.Date == "" {
		p.Date = time.Now().UTC().Format("2006-01-02")
	}
	return s.store.CreatePayment(ctx, p)
}

func (s *Service) DeletePayment(ctx context.Context, id int) error {
	return s.store.DeletePayment(ctx, id)
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	return s.store.Users(ctx)
}

func (s *Service) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.store.UserByUsername(ctx, username)
}

// CreateUser hashes the password and persists a new active user. The
// owner role is assigned out of band, never through this path.
func (s *Service) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	if username == "" {
		return models.User{}, apperrors.ValidationError{Field: "username", Message: "required"}
	}
	if password == "" {
		return models.User{}, apperrors.ValidationError{Field: "password", Message: "required"}
	}
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	existing, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if existing != nil {
		return models.User{}, fmt.Errorf("username %q taken: %w", username, apperrors.ErrConflict)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.store.CreateUser(ctx, models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
}

// UserUpdate carries the editable user fields; empty strings mean
// "leave unchanged", IsActive always applies.
type UserUpdate struct {
	Username string
	Password string
	Role     string
	IsActive bool
}

// UpdateUser applies an edit to the user addressed by its backend key.
// Username and role edits are ignored for the owner account.
func (s *Service) UpdateUser(ctx context.Context, key string, upd UserUpdate) error {
	user, err := s.findUserByKey(ctx, key)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrNotFound
	}

	var patch models.UserPatch
	if user.Role != models.RoleOwner {
		if upd.Username != "" {
			patch.Username = &upd.Username
		}
		if upd.Role == models.RoleAdmin || upd.Role == models.RoleUser {
			patch.Role = &upd.Role
		}
	}
	if upd.Password != "" {
		hash, err := auth.HashPassword(upd.Password)
		if err != nil {
			return err
		}
		patch.PasswordHash = &hash
	}
	patch.IsActive = &upd.IsActive

	return s.store.UpdateUser(ctx, key, patch)
}

// DeleteUser removes a user; the owner account is protected.
func (s *Service) DeleteUser(ctx context.Context, key string) error {
	user, err := s.findUserByKey(ctx, key)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrNotFound
	}
	if user.Role == models.RoleOwner {
		return fmt.Errorf("owner account: %w", apperrors.ErrForbidden)
	}
	return s.store.DeleteUser(ctx, key)
}

func (s *Service) findUserByKey(ctx context.Context, key string) (*models.User, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Key() == key {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

// UpdateSettings upserts the single admin credential record
func (s *Service) UpdateSettings(ctx context.Context, username, password string) error {
	if username == "" {
		return apperrors.ValidationError{Field: "username", Message: "required"}
	}
	if password == "" {
		return apperrors.ValidationError{Field: "password", Message: "required"}
	}
	return s.store.UpdateSettings(ctx, username, password)
}

// ResetData irreversibly clears customer and policy data while keeping
// the admin credentials. The caller is responsible for gating it.
func (s *Service) ResetData(ctx context.Context) error {
	logger.Warn("Resetting all customer and policy data")
	return s.store.Reset(ctx)
}

// Health reports backend health
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
