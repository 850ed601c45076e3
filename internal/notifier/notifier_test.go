package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/policykeeper/policykeeper/config"
	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/models"
)

type fakeData struct {
	mu       sync.Mutex
	policies []models.Policy
	getErr   error
}

func (f *fakeData) GetAll(ctx context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	policies := make([]models.Policy, len(f.policies))
	copy(policies, f.policies)
	return &models.Snapshot{
		Policies: policies,
		Customers: []models.Customer{
			{ID: 1, Name: "Ayşe Yılmaz", Phone: "05551234567"},
		},
	}, nil
}

func (f *fakeData) UpdatePolicy(ctx context.Context, id int, patch models.PolicyPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.policies {
		if f.policies[i].ID == id {
			patch.Apply(&f.policies[i])
			return nil
		}
	}
	return nil
}

type fakeMailer struct {
	mu       sync.Mutex
	subjects []string
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (m *fakeMailer) Send(ctx context.Context, subject, text, html string) error {
	if m.entered != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	return nil
}

func endDate(now time.Time, days int) string {
	return now.AddDate(0, 0, days).Format("2006-01-02")
}

func newTestNotifier(data *fakeData, mail *fakeMailer, now time.Time) *Notifier {
	n := New(data, mail, config.NotifierConfig{Enabled: true, Interval: time.Hour})
	n.now = func() time.Time { return now }
	return n
}

func TestTriggerSendsAtExactMilestones(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-14", Insurer: "Axa", Status: "active", EndDate: endDate(now, 14)},
		{ID: 2, CustomerID: 1, PolicyNumber: "TR-00", Insurer: "Axa", Status: "active", EndDate: endDate(now, 0)},
		{ID: 3, CustomerID: 1, PolicyNumber: "TR-13", Insurer: "Axa", Status: "active", EndDate: endDate(now, 13)},
		{ID: 4, CustomerID: 1, PolicyNumber: "TR-15", Insurer: "Axa", Status: "active", EndDate: endDate(now, 15)},
	}}
	mail := &fakeMailer{}
	n := newTestNotifier(data, mail, now)

	sent, err := n.Trigger(context.Background(), false)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 mails, got %d (%v)", sent, mail.subjects)
	}
	if !data.policies[0].Notified14 {
		t.Error("14-day flag not set on policy 1")
	}
	if !data.policies[1].NotifiedEnd {
		t.Error("end flag not set on policy 2")
	}
	if data.policies[2].Notified14 || data.policies[3].Notified14 {
		t.Error("13/15-day policies must not be flagged")
	}
}

// Servers run in Europe/Istanbul while stored dates parse as UTC; the
// milestones must still hit on the exact local calendar day.
func TestTriggerMilestonesInLocalZone(t *testing.T) {
	for _, zone := range []*time.Location{
		time.FixedZone("UTC+3", 3*3600),
		time.FixedZone("UTC-5", -5*3600),
	} {
		now := time.Date(2026, 8, 28, 23, 30, 0, 0, zone)
		data := &fakeData{policies: []models.Policy{
			{ID: 1, CustomerID: 1, PolicyNumber: "TR-14", Insurer: "Axa", Status: "active", EndDate: endDate(now, 14)},
			{ID: 2, CustomerID: 1, PolicyNumber: "TR-00", Insurer: "Axa", Status: "active", EndDate: endDate(now, 0)},
			{ID: 3, CustomerID: 1, PolicyNumber: "TR-XX", Insurer: "Axa", Status: "active", EndDate: endDate(now, -1)},
		}}
		mail := &fakeMailer{}
		n := newTestNotifier(data, mail, now)

		sent, err := n.Trigger(context.Background(), false)
		if err != nil {
			t.Fatalf("%v: Trigger: %v", zone, err)
		}
		if sent != 2 {
			t.Fatalf("%v: expected 2 mails, got %d (%v)", zone, sent, mail.subjects)
		}
		if !data.policies[0].Notified14 || !data.policies[1].NotifiedEnd {
			t.Errorf("%v: milestone flags not set", zone)
		}
		if data.policies[2].NotifiedEnd {
			t.Errorf("%v: expired policy must not fire the end milestone", zone)
		}
	}
}

func TestTriggerIsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-14", Insurer: "Axa", Status: "active", EndDate: endDate(now, 14)},
	}}
	mail := &fakeMailer{}
	n := newTestNotifier(data, mail, now)

	for i := 0; i < 3; i++ {
		if _, err := n.Trigger(context.Background(), false); err != nil {
			t.Fatalf("Trigger %d: %v", i, err)
		}
	}
	if len(mail.subjects) != 1 {
		t.Fatalf("expected exactly 1 mail across repeated scans, got %d", len(mail.subjects))
	}
}

func TestForcedModeResends(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-14", Insurer: "Axa", Status: "active",
			EndDate: endDate(now, 14), Notified14: true},
	}}
	mail := &fakeMailer{}
	n := newTestNotifier(data, mail, now)

	sent, err := n.Trigger(context.Background(), true)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if sent != 1 {
		t.Fatalf("forced scan should resend, got %d", sent)
	}
	if !data.policies[0].Notified14 {
		t.Error("flag must remain set after forced resend")
	}
}

func TestMailFailureKeepsFlagUnset(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-A", Insurer: "Axa", Status: "active", EndDate: endDate(now, 14)},
		{ID: 2, CustomerID: 1, PolicyNumber: "TR-B", Insurer: "Axa", Status: "active", EndDate: endDate(now, 0)},
	}}
	mail := &fakeMailer{err: fmt.Errorf("smtp down")}
	n := newTestNotifier(data, mail, now)

	sent, err := n.Trigger(context.Background(), false)
	if err != nil {
		t.Fatalf("send failures must not abort the scan: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected 0 sent, got %d", sent)
	}
	if data.policies[0].Notified14 || data.policies[1].NotifiedEnd {
		t.Error("flags must stay unset when the mail never went out")
	}
}

func TestMailerNotConfiguredAbortsScan(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-A", Insurer: "Axa", Status: "active", EndDate: endDate(now, 14)},
		{ID: 2, CustomerID: 1, PolicyNumber: "TR-B", Insurer: "Axa", Status: "active", EndDate: endDate(now, 0)},
	}}
	mail := &fakeMailer{err: apperrors.ErrMailerNotConfigured}
	n := newTestNotifier(data, mail, now)

	_, err := n.Trigger(context.Background(), false)
	if !errors.Is(err, apperrors.ErrMailerNotConfigured) {
		t.Fatalf("expected ErrMailerNotConfigured, got %v", err)
	}
}

func TestCancelledPoliciesSkipped(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-A", Insurer: "Axa", Status: "İptal", EndDate: endDate(now, 14)},
	}}
	mail := &fakeMailer{}
	n := newTestNotifier(data, mail, now)

	sent, err := n.Trigger(context.Background(), false)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if sent != 0 {
		t.Fatalf("cancelled policy must not notify, got %d", sent)
	}
}

func TestConcurrentTriggerRejected(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-A", Insurer: "Axa", Status: "active", EndDate: endDate(now, 14)},
	}}
	mail := &fakeMailer{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	n := newTestNotifier(data, mail, now)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Trigger(context.Background(), false)
	}()

	// Wait for the first scan to be inside Send, then try again.
	<-mail.entered
	deadline := time.After(2 * time.Second)
	for {
		if _, err := n.Trigger(context.Background(), false); errors.Is(err, ErrScanInProgress) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("never observed ErrScanInProgress")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(mail.block)
	<-done
}

func TestUnparseableEndDateSkipped(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	data := &fakeData{policies: []models.Policy{
		{ID: 1, CustomerID: 1, PolicyNumber: "TR-A", Insurer: "Axa", Status: "active", EndDate: "bilinmiyor"},
	}}
	mail := &fakeMailer{}
	n := newTestNotifier(data, mail, now)

	sent, err := n.Trigger(context.Background(), false)
	if err != nil || sent != 0 {
		t.Fatalf("expected clean skip, got sent=%d err=%v", sent, err)
	}
}
