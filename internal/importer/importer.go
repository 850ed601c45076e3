package importer

import (
	"context"

	"github.com/google/uuid"

	"github.com/policykeeper/policykeeper/internal/logger"
	"github.com/policykeeper/policykeeper/internal/models"
	"github.com/policykeeper/policykeeper/internal/query"
)

// Row is one record of a bulk import: a policy together with the
// customer it belongs to, as exported from another agency tool.
type Row struct {
	CustomerName  string  `json:"customer_name"`
	Phone         string  `json:"phone"`
	IDNo          string  `json:"id_no"`
	Email         string  `json:"email"`
	BirthDate     string  `json:"birth_date"`
	Insurer       string  `json:"insurer"`
	PolicyNumber  string  `json:"policy_number"`
	PolicyType    string  `json:"policy_type"`
	Status        string  `json:"status"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	Premium       float64 `json:"premium"`
	Description   string  `json:"description"`
}

// Report summarizes one import run
type Report struct {
	RunID             string `json:"run_id"`
	CustomersCreated  int    `json:"customers_created"`
	PoliciesCreated   int    `json:"policies_created"`
	PoliciesSkipped   int    `json:"policies_skipped"`
	RowsFailed        int    `json:"rows_failed"`
}

// DataService is the slice of the data layer the importer needs.
type DataService interface {
	GetAll(ctx context.Context) (*models.Snapshot, error)
	CreateCustomer(ctx context.Context, c models.Customer) (models.Customer, error)
	CreatePolicy(ctx context.Context, p models.Policy) (models.Policy, error)
}

// Importer merges exported rows into the store without duplicating
// records that already exist.
type Importer struct {
	data DataService
}

func New(data DataService) *Importer {
	return &Importer{data: data}
}

// Run imports the rows and returns a per-run report. Customers are
// matched by national id when present, otherwise by case-folded name;
// policies by the exact policy number plus insurer pair. Matched records are skipped,
// never updated. A failing row is counted and the run continues.
func (im *Importer) Run(ctx context.Context, rows []Row) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	logger.Info("Starting import run", "run_id", report.RunID, "rows", len(rows))

	snap, err := im.data.GetAll(ctx)
	if err != nil {
		return report, err
	}

	customersByIDNo := make(map[string]int)
	customersByName := make(map[string]int)
	for _, c := range snap.Customers {
		if c.IDNo != "" {
			customersByIDNo[c.IDNo] = c.ID
		}
		customersByName[query.Fold(c.Name)] = c.ID
	}
	seenPolicies := make(map[string]bool)
	for _, p := range snap.Policies {
		seenPolicies[policyKey(p.PolicyNumber, p.Insurer)] = true
	}

	for _, row := range rows {
		if row.CustomerName == "" || row.PolicyNumber == "" {
			report.RowsFailed++
			continue
		}

		customerID, ok := im.matchCustomer(row, customersByIDNo, customersByName)
		if !ok {
			created, err := im.data.CreateCustomer(ctx, models.Customer{
				Name:      row.CustomerName,
				Phone:     row.Phone,
				IDNo:      row.IDNo,
				Email:     row.Email,
				BirthDate: row.BirthDate,
			})
			if err != nil {
				logger.Error("Import row failed at customer", "run_id", report.RunID, "name", row.CustomerName, "error", err)
				report.RowsFailed++
				continue
			}
			customerID = created.ID
			report.CustomersCreated++
			if created.IDNo != "" {
				customersByIDNo[created.IDNo] = created.ID
			}
			customersByName[query.Fold(created.Name)] = created.ID
		}

		insurer := row.Insurer
		if insurer == "" {
			insurer = "Diğer"
		}
		key := policyKey(row.PolicyNumber, insurer)
		if seenPolicies[key] {
			report.PoliciesSkipped++
			continue
		}
		_, err := im.data.CreatePolicy(ctx, models.Policy{
			CustomerID:   customerID,
			Insurer:      insurer,
			PolicyNumber: row.PolicyNumber,
			PolicyType:   row.PolicyType,
			Status:       row.Status,
			StartDate:    row.StartDate,
			EndDate:      row.EndDate,
			Premium:      row.Premium,
			Description:  row.Description,
		})
		if err != nil {
			logger.Error("Import row failed at policy", "run_id", report.RunID, "policy_number", row.PolicyNumber, "error", err)
			report.RowsFailed++
			continue
		}
		seenPolicies[key] = true
		report.PoliciesCreated++
	}

	logger.Info("Import run finished",
		"run_id", report.RunID,
		"customers_created", report.CustomersCreated,
		"policies_created", report.PoliciesCreated,
		"skipped", report.PoliciesSkipped,
		"failed", report.RowsFailed,
	)
	return report, nil
}

func (im *Importer) matchCustomer(row Row, byIDNo, byName map[string]int) (int, bool) {
	if row.IDNo != "" {
		if id, ok := byIDNo[row.IDNo]; ok {
			return id, true
		}
	}
	id, ok := byName[query.Fold(row.CustomerName)]
	return id, ok
}

// Policy identity is the exact (number, insurer) pair; insurers do
// reuse numbers that differ only in case.
func policyKey(number, insurer string) string {
	return number + "|" + insurer
}
