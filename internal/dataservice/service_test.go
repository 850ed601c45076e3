package dataservice

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/models"
	"github.com/policykeeper/policykeeper/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	st := store.NewFileStore(filepath.Join(dir, "data.json"), filepath.Join(dir, "backups"))
	return New(st)
}

func TestCreateCustomerRequiresName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateCustomer(context.Background(), models.Customer{Phone: "05551234567"})
	var verr apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "name" {
		t.Errorf("expected field name, got %q", verr.Field)
	}
}

func TestCreatePolicyDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cust, err := svc.CreateCustomer(ctx, models.Customer{Name: "Ayşe Yılmaz"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	pol, err := svc.CreatePolicy(ctx, models.Policy{
		CustomerID:   cust.ID,
		PolicyNumber: "TR-100",
		Insurer:      "Anadolu",
		StartDate:    "2026-01-01",
		EndDate:      "2027-01-01",
	})
	if err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}
	if pol.Status != models.StatusActive {
		t.Errorf("expected default status active, got %q", pol.Status)
	}
	if pol.PolicyType != "Diğer" {
		t.Errorf("expected default policy type, got %q", pol.PolicyType)
	}
	if pol.CreatedAt == "" {
		t.Error("expected created_at to be stamped")
	}
}

func TestCreatePolicyValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		policy models.Policy
		field  string
	}{
		{"missing customer", models.Policy{PolicyNumber: "TR-1", Insurer: "Axa", StartDate: "2026-01-01", EndDate: "2027-01-01"}, "customer_id"},
		{"missing number", models.Policy{CustomerID: 1, Insurer: "Axa", StartDate: "2026-01-01", EndDate: "2027-01-01"}, "policy_number"},
		{"missing insurer", models.Policy{CustomerID: 1, PolicyNumber: "TR-1", StartDate: "2026-01-01", EndDate: "2027-01-01"}, "insurer"},
		{"missing end date", models.Policy{CustomerID: 1, PolicyNumber: "TR-1", Insurer: "Axa", StartDate: "2026-01-01"}, "end_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePolicy(ctx, tc.policy)
			var verr apperrors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestDeleteCustomerBlockedByPolicy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cust, _ := svc.CreateCustomer(ctx, models.Customer{Name: "Mehmet Demir"})
	_, err := svc.CreatePolicy(ctx, models.Policy{
		CustomerID:   cust.ID,
		PolicyNumber: "TR-200",
		Insurer:      "Allianz",
		StartDate:    "2026-01-01",
		EndDate:      "2027-01-01",
	})
	if err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}

	if err := svc.DeleteCustomer(ctx, cust.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict while referenced, got %v", err)
	}

	snap, _ := svc.GetAll(ctx)
	if err := svc.DeletePolicy(ctx, snap.Policies[0].ID); err != nil {
		t.Fatalf("DeletePolicy: %v", err)
	}
	if err := svc.DeleteCustomer(ctx, cust.ID); err != nil {
		t.Fatalf("expected delete to succeed after policy removal, got %v", err)
	}
}

func TestDeleteCancelledPolicies(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cust, _ := svc.CreateCustomer(ctx, models.Customer{Name: "Fatma Kaya"})
	mk := func(number, status string) {
		t.Helper()
		_, err := svc.CreatePolicy(ctx, models.Policy{
			CustomerID:   cust.ID,
			PolicyNumber: number,
			Insurer:      "Axa",
			StartDate:    "2026-01-01",
			EndDate:      "2027-01-01",
			Status:       status,
		})
		if err != nil {
			t.Fatalf("CreatePolicy %s: %v", number, err)
		}
	}
	mk("TR-1", "active")
	mk("TR-2", "İptal")
	mk("TR-3", "cancelled")
	mk("TR-4", "active")

	deleted, err := svc.DeleteCancelledPolicies(ctx)
	if err != nil {
		t.Fatalf("DeleteCancelledPolicies: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	snap, _ := svc.GetAll(ctx)
	if len(snap.Policies) != 2 {
		t.Fatalf("expected 2 remaining policies, got %d", len(snap.Policies))
	}
	for _, p := range snap.Policies {
		if p.Status != "active" {
			t.Errorf("unexpected survivor status %q", p.Status)
		}
	}
}

func TestCreatePaymentDefaultsDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cust, _ := svc.CreateCustomer(ctx, models.Customer{Name: "Ali Çelik"})
	pay, err := svc.CreatePayment(ctx, models.Payment{CustomerID: cust.ID, Amount: 1500})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if pay.Date == "" {
		t.Error("expected payment date to default to today")
	}

	if _, err := svc.CreatePayment(ctx, models.Payment{CustomerID: cust.ID}); err == nil {
		t.Error("expected validation error for zero amount")
	}
}

func TestUserLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "kasa", "gizli123", "superadmin")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Role != models.RoleUser {
		t.Errorf("unknown role should fall back to user, got %q", u.Role)
	}
	if u.PasswordHash == "gizli123" {
		t.Error("password stored unhashed")
	}

	if _, err := svc.CreateUser(ctx, "kasa", "other", models.RoleAdmin); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	if err := svc.UpdateUser(ctx, u.Key(), UserUpdate{Role: models.RoleAdmin, IsActive: true}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ := svc.UserByUsername(ctx, "kasa")
	if got == nil || got.Role != models.RoleAdmin {
		t.Fatalf("expected role admin after update, got %+v", got)
	}

	if err := svc.DeleteUser(ctx, u.Key()); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := svc.DeleteUser(ctx, u.Key()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestOwnerProtection(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	owner, err := svc.store.CreateUser(ctx, models.User{
		Username:     "patron",
		PasswordHash: "x",
		Role:         models.RoleOwner,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}

	if err := svc.DeleteUser(ctx, owner.Key()); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden deleting owner, got %v", err)
	}

	newName := "hacked"
	if err := svc.UpdateUser(ctx, owner.Key(), UserUpdate{Username: newName, Role: models.RoleUser, IsActive: true}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ := svc.UserByUsername(ctx, "patron")
	if got == nil {
		t.Fatal("owner username must not change")
	}
	if got.Role != models.RoleOwner {
		t.Errorf("owner role must not change, got %q", got.Role)
	}
}

func TestResetPreservesSettings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.UpdateSettings(ctx, "yonetici", "cokgizli"); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	cust, _ := svc.CreateCustomer(ctx, models.Customer{Name: "Zeynep Arslan"})
	if _, err := svc.CreatePolicy(ctx, models.Policy{
		CustomerID: cust.ID, PolicyNumber: "TR-9", Insurer: "Axa",
		StartDate: "2026-01-01", EndDate: "2027-01-01",
	}); err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}

	if err := svc.ResetData(ctx); err != nil {
		t.Fatalf("ResetData: %v", err)
	}
	snap, _ := svc.GetAll(ctx)
	if len(snap.Customers) != 0 || len(snap.Policies) != 0 {
		t.Error("expected customers and policies cleared")
	}
	if snap.Settings.AdminUser != "yonetici" {
		t.Errorf("expected settings preserved, got %+v", snap.Settings)
	}
}
