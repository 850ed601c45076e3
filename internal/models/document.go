package models

import "strconv"

// Document is the whole-file JSON document the file store reads and
// writes. Key names match the on-disk layout consumed by earlier
// deployments verbatim, counters included.
type Document struct {
	Policies       []Policy   `json:"policies"`
	NextPolicyID   int        `json:"nextId"`
	Customers      []Customer `json:"customers"`
	NextCustomerID int        `json:"nextCustomerId"`
	Settings       Settings   `json:"settings"`
	Users          []User     `json:"users"`
	NextUserID     int        `json:"nextUserId"`
	Payments       []Payment  `json:"payments"`
	NextPaymentID  int        `json:"nextPaymentId"`
}

// NewDocument returns an empty document with all counters at 1.
func NewDocument() *Document {
	return &Document{
		Policies:       []Policy{},
		NextPolicyID:   1,
		Customers:      []Customer{},
		NextCustomerID: 1,
		Users:          []User{},
		NextUserID:     1,
		Payments:       []Payment{},
		NextPaymentID:  1,
	}
}

// Normalize fills collections and counters that older data files omit.
func (d *Document) Normalize() {
	if d.Policies == nil {
		d.Policies = []Policy{}
	}
	if d.NextPolicyID < 1 {
		d.NextPolicyID = 1
	}
	if d.Customers == nil {
		d.Customers = []Customer{}
	}
	if d.NextCustomerID < 1 {
		d.NextCustomerID = 1
	}
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.NextUserID < 1 {
		d.NextUserID = 1
	}
	if d.Payments == nil {
		d.Payments = []Payment{}
	}
	if d.NextPaymentID < 1 {
		d.NextPaymentID = 1
	}
}

// Snapshot is the bulk read view returned to callers: every collection
// plus next-id hints for clients that build objects before creating them.
type Snapshot struct {
	Policies       []Policy   `json:"policies"`
	Customers      []Customer `json:"customers"`
	Settings       Settings   `json:"settings"`
	NextPolicyID   int        `json:"nextId"`
	NextCustomerID int        `json:"nextCustomerId"`
}

// Key returns the identifier used to address a user in the active
// backend: the store-internal id when present, the logical id otherwise.
func (u User) Key() string {
	if u.MongoID != "" {
		return u.MongoID
	}
	return strconv.Itoa(u.ID)
}
