package models

// Customer is a policy holder. The integer ID is allocated by the store
// and is distinct from any database-internal identifier.
type Customer struct {
	ID        int      `json:"id" bson:"id"`
	Name      string   `json:"name" bson:"name"`
	Phone     string   `json:"phone" bson:"phone"`
	IDNo      string   `json:"id_no" bson:"id_no"`
	Email     string   `json:"email" bson:"email"`
	BirthDate string   `json:"birth_date" bson:"birth_date"`
	Debt      *float64 `json:"debt,omitempty" bson:"debt,omitempty"`
	Note      string   `json:"note,omitempty" bson:"note,omitempty"`
}

// PolicyDetail is the optional type-specific block on a policy. Exactly
// one of the groups is populated depending on the policy type.
type PolicyDetail struct {
	Plate        string   `json:"plate,omitempty" bson:"plate,omitempty"`
	Registration string   `json:"registration,omitempty" bson:"registration,omitempty"`
	PropertyType string   `json:"property_type,omitempty" bson:"property_type,omitempty"`
	PropertyArea string   `json:"property_area,omitempty" bson:"property_area,omitempty"`
	Persons      []string `json:"persons,omitempty" bson:"persons,omitempty"`
}

// Policy is an insurance policy bound to a customer. Notified14 and
// NotifiedEnd are monotonic: once true they are never reset except by a
// full data reset.
type Policy struct {
	ID           int           `json:"id" bson:"id"`
	CustomerID   int           `json:"customer_id" bson:"customer_id"`
	Insurer      string        `json:"insurer" bson:"insurer"`
	PolicyNumber string        `json:"policy_number" bson:"policy_number"`
	PolicyType   string        `json:"policy_type" bson:"policy_type"`
	IssueDate    string        `json:"issue_date" bson:"issue_date"`
	StartDate    string        `json:"start_date" bson:"start_date"`
	EndDate      string        `json:"end_date" bson:"end_date"`
	Description  string        `json:"description" bson:"description"`
	Status       string        `json:"status" bson:"status"`
	Premium      float64       `json:"premium" bson:"premium"`
	Notified14   bool          `json:"notified_14" bson:"notified_14"`
	NotifiedEnd  bool          `json:"notified_end" bson:"notified_end"`
	CreatedAt    string        `json:"created_at,omitempty" bson:"created_at,omitempty"`
	Detail       *PolicyDetail `json:"detail,omitempty" bson:"detail,omitempty"`
}

// Payment is a ledger entry against a customer.
type Payment struct {
	ID         int     `json:"id" bson:"id"`
	CustomerID int     `json:"customer_id" bson:"customer_id"`
	Amount     float64 `json:"amount" bson:"amount"`
	Note       string  `json:"note" bson:"note"`
	Date       string  `json:"date" bson:"date"`
}

// User is an application login, independent of the admin Settings pair.
type User struct {
	ID           int    `json:"id,omitempty" bson:"id,omitempty"`
	MongoID      string `json:"-" bson:"-"`
	Username     string `json:"username" bson:"username"`
	PasswordHash string `json:"password_hash" bson:"password_hash"`
	Role         string `json:"role" bson:"role"`
	IsActive     bool   `json:"is_active" bson:"is_active"`
}

// User roles
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Settings is the single logical admin credential record.
type Settings struct {
	AdminUser string `json:"admin_user,omitempty" bson:"admin_user,omitempty"`
	AdminPass string `json:"admin_pass,omitempty" bson:"admin_pass,omitempty"`
}

// StatusActive is the default policy status on create.
const StatusActive = "active"
