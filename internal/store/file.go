package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/logger"
	"github.com/policykeeper/policykeeper/internal/metrics"
	"github.com/policykeeper/policykeeper/internal/models"
)

// FileStore keeps every collection and its next-id counter in a single
// JSON document, rewritten whole on every mutation. All access is
// serialized by a mutex so two in-process mutations cannot drop each
// other's writes; separate processes sharing the file still race
// last-writer-wins.
type FileStore struct {
	mu         sync.Mutex
	path       string
	backupsDir string
	now        func() time.Time
}

// NewFileStore creates a file store. An empty backupsDir places the
// backups directory next to the data file.
func NewFileStore(path, backupsDir string) *FileStore {
	if backupsDir == "" {
		backupsDir = filepath.Join(filepath.Dir(path), "backups")
	}
	return &FileStore{
		path:       path,
		backupsDir: backupsDir,
		now:        time.Now,
	}
}

// load reads the whole document. An absent file yields an empty
// document with counters at 1; an unparseable one is CorruptStateError.
func (s *FileStore) load() (*models.Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.NewDocument(), nil
		}
		return nil, apperrors.StoreError{Operation: "load", Err: err}
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.CorruptStateError{Path: s.path, Err: err}
	}
	doc.Normalize()
	return &doc, nil
}

// save overwrites the primary file, then writes a timestamped backup
// copy. Only the primary write can fail the call; a backup failure is
// logged and swallowed.
func (s *FileStore) save(doc *models.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.StoreError{Operation: "save", Err: err}
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return apperrors.StoreError{Operation: "save", Err: err}
	}
	s.writeBackup(raw)
	return nil
}

func (s *FileStore) writeBackup(raw []byte) {
	if err := os.MkdirAll(s.backupsDir, 0o755); err != nil {
		logger.Warn("Backup directory creation failed", "dir", s.backupsDir, "error", err)
		return
	}

	stamp := s.now().UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	name := filepath.Join(s.backupsDir, "data-"+stamp+".json")
	if _, err := os.Stat(name); err == nil {
		// Same-millisecond collision; keep both copies.
		name = filepath.Join(s.backupsDir, "data-"+stamp+"-"+uuid.NewString()[:8]+".json")
	}

	if err := os.WriteFile(name, raw, 0o644); err != nil {
		logger.Warn("Backup write failed", "file", name, "error", err)
	}
}

// GetAll returns every collection plus next-id hints.
func (s *FileStore) GetAll(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{
		Policies:       doc.Policies,
		Customers:      doc.Customers,
		Settings:       doc.Settings,
		NextPolicyID:   doc.NextPolicyID,
		NextCustomerID: doc.NextCustomerID,
	}, nil
}

// CreateCustomer allocates the next customer id and persists the record
// and the bumped counter in the same write.
func (s *FileStore) CreateCustomer(ctx context.Context, c models.Customer) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.Customer{}, err
	}
	c.ID = doc.NextCustomerID
	doc.NextCustomerID++
	doc.Customers = append(doc.Customers, c)
	if err := s.save(doc); err != nil {
		return models.Customer{}, err
	}
	metrics.RecordStoreOp("customer", "create", "success")
	return c, nil
}

func (s *FileStore) UpdateCustomer(ctx context.Context, id int, patch models.CustomerPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Customers {
		if doc.Customers[i].ID == id {
			patch.Apply(&doc.Customers[i])
			return s.save(doc)
		}
	}
	// Unknown id: silent no-op
	return nil
}

func (s *FileStore) DeleteCustomer(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Customers = filterCustomers(doc.Customers, id)
	return s.save(doc)
}

func (s *FileStore) CreatePolicy(ctx context.Context, p models.Policy) (models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.Policy{}, err
	}
	p.ID = doc.NextPolicyID
	doc.NextPolicyID++
	doc.Policies = append(doc.Policies, p)
	if err := s.save(doc); err != nil {
		return models.Policy{}, err
	}
	metrics.RecordStoreOp("policy", "create", "success")
	return p, nil
}

func (s *FileStore) UpdatePolicy(ctx context.Context, id int, patch models.PolicyPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Policies {
		if doc.Policies[i].ID == id {
			patch.Apply(&doc.Policies[i])
			return s.save(doc)
		}
	}
	return nil
}

func (s *FileStore) DeletePolicy(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	kept := doc.Policies[:0:0]
	for _, p := range doc.Policies {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	doc.Policies = kept
	return s.save(doc)
}

// PaymentsByCustomer returns the customer's ledger sorted by date
// descending, newest id first among equal dates.
func (s *FileStore) PaymentsByCustomer(ctx context.Context, customerID int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	var list []models.Payment
	for _, p := range doc.Payments {
		if p.CustomerID == customerID {
			list = append(list, p)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date > list[j].Date
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (s *FileStore) CreatePayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.Payment{}, err
	}
	p.ID = doc.NextPaymentID
	doc.NextPaymentID++
	doc.Payments = append(doc.Payments, p)
	if err := s.save(doc); err != nil {
		return models.Payment{}, err
	}
	return p, nil
}

func (s *FileStore) DeletePayment(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	kept := doc.Payments[:0:0]
	for _, p := range doc.Payments {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	doc.Payments = kept
	return s.save(doc)
}

func (s *FileStore) Users(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}

func (s *FileStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *FileStore) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.User{}, err
	}
	for _, existing := range doc.Users {
		if existing.Username == u.Username {
			return models.User{}, apperrors.ErrConflict
		}
	}
	u.ID = doc.NextUserID
	doc.NextUserID++
	doc.Users = append(doc.Users, u)
	if err := s.save(doc); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *FileStore) UpdateUser(ctx context.Context, key string, patch models.UserPatch) error {
	id, err := strconv.Atoi(key)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Users {
		if doc.Users[i].ID == id {
			patch.Apply(&doc.Users[i])
			return s.save(doc)
		}
	}
	return nil
}

func (s *FileStore) DeleteUser(ctx context.Context, key string) error {
	id, err := strconv.Atoi(key)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	kept := doc.Users[:0:0]
	for _, u := range doc.Users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	doc.Users = kept
	return s.save(doc)
}

// UpdateSettings upserts the single admin credential record.
func (s *FileStore) UpdateSettings(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Settings.AdminUser = username
	doc.Settings.AdminPass = password
	return s.save(doc)
}

// Reset clears every collection and counter but keeps the settings
// record so the admin is not locked out.
func (s *FileStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	fresh := models.NewDocument()
	fresh.Settings = doc.Settings
	return s.save(fresh)
}

// Health reports whether the data file is readable and parseable.
func (s *FileStore) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.load()
	return err
}

func filterCustomers(customers []models.Customer, id int) []models.Customer {
	kept := customers[:0:0]
	for _, c := range customers {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return kept
}
