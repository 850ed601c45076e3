package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/policykeeper/policykeeper/config"
	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/logger"
	"github.com/policykeeper/policykeeper/internal/mailer"
	"github.com/policykeeper/policykeeper/internal/metrics"
	"github.com/policykeeper/policykeeper/internal/models"
	"github.com/policykeeper/policykeeper/internal/query"
	"github.com/policykeeper/policykeeper/pkg/dates"
)

// ErrScanInProgress is returned by Trigger when a scan is already
// running.
var ErrScanInProgress = errors.New("notification scan already in progress")

// DataService is the slice of the data layer the notifier needs.
type DataService interface {
	GetAll(ctx context.Context) (*models.Snapshot, error)
	UpdatePolicy(ctx context.Context, id int, patch models.PolicyPatch) error
}

// Notifier periodically scans policies and mails expiry warnings at
// exactly 14 days remaining and on the expiry day itself. Each
// milestone fires once per policy, tracked by flags on the policy
// record.
type Notifier struct {
	data DataService
	mail mailer.Mailer
	cfg  config.NotifierConfig
	sem  *semaphore.Weighted
	now  func() time.Time
}

// New creates a notifier instance
func New(data DataService, mail mailer.Mailer, cfg config.NotifierConfig) *Notifier {
	return &Notifier{
		data: data,
		mail: mail,
		cfg:  cfg,
		sem:  semaphore.NewWeighted(1),
		now:  time.Now,
	}
}

// Run scans immediately, then on every tick until the context is
// cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	logger.Info("Starting notifier", "interval", n.cfg.Interval)

	if _, err := n.Trigger(ctx, false); err != nil {
		logger.Error("Initial notification scan failed", "error", err)
	}

	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notifier stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := n.Trigger(ctx, false); err != nil && !errors.Is(err, ErrScanInProgress) {
				logger.Error("Notification scan failed", "error", err)
			}
		}
	}
}

// Trigger runs one scan and returns how many mails went out. In forced
// mode milestones fire again even when already flagged; the flags are
// still written afterwards. Concurrent triggers are rejected rather
// than queued.
func (n *Notifier) Trigger(ctx context.Context, forced bool) (int, error) {
	if !n.sem.TryAcquire(1) {
		return 0, ErrScanInProgress
	}
	defer n.sem.Release(1)

	start := n.now()
	snap, err := n.data.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	byID := make(map[int]models.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		byID[c.ID] = c
	}

	sent := 0
	for _, p := range snap.Policies {
		if query.IsCancelled(p.Status) {
			continue
		}
		days, ok := dates.DaysUntil(p.EndDate, start)
		if !ok {
			logger.Warn("Policy has unparseable end date", "policy_id", p.ID, "end_date", p.EndDate)
			continue
		}

		var milestone string
		var flagged bool
		switch days {
		case 14:
			milestone, flagged = "14_days", p.Notified14
		case 0:
			milestone, flagged = "end_date", p.NotifiedEnd
		default:
			continue
		}
		if flagged && !forced {
			continue
		}

		if err := n.notify(ctx, p, byID[p.CustomerID], days); err != nil {
			if errors.Is(err, apperrors.ErrMailerNotConfigured) {
				metrics.RecordNotifierScan(time.Since(start), sent)
				return sent, err
			}
			logger.Error("Notification send failed", "policy_id", p.ID, "milestone", milestone, "error", err)
			continue
		}
		sent++

		if err := n.flag(ctx, p.ID, milestone); err != nil {
			logger.Error("Failed to persist notification flag", "policy_id", p.ID, "milestone", milestone, "error", err)
		}
	}

	metrics.RecordNotifierScan(time.Since(start), sent)
	logger.Info("Notification scan finished", "sent", sent, "forced", forced)
	return sent, nil
}

func (n *Notifier) notify(ctx context.Context, p models.Policy, c models.Customer, days int) error {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("müşteri #%d", p.CustomerID)
	}

	var subject, text string
	if days == 0 {
		subject = fmt.Sprintf("Poliçe bugün sona eriyor: %s", p.PolicyNumber)
		text = fmt.Sprintf("%s adlı müşterinin %s numaralı %s poliçesi bugün (%s) sona eriyor.",
			name, p.PolicyNumber, p.Insurer, p.EndDate)
	} else {
		subject = fmt.Sprintf("Poliçe bitimine %d gün kaldı: %s", days, p.PolicyNumber)
		text = fmt.Sprintf("%s adlı müşterinin %s numaralı %s poliçesinin bitimine %d gün kaldı (bitiş: %s).",
			name, p.PolicyNumber, p.Insurer, days, p.EndDate)
	}
	html := fmt.Sprintf("<p>%s</p><p>Telefon: %s</p>", text, c.Phone)

	return n.mail.Send(ctx, subject, text, html)
}

func (n *Notifier) flag(ctx context.Context, policyID int, milestone string) error {
	yes := true
	var patch models.PolicyPatch
	if milestone == "14_days" {
		patch.Notified14 = &yes
	} else {
		patch.NotifiedEnd = &yes
	}
	return n.data.UpdatePolicy(ctx, policyID, patch)
}
