package models

// PolicyFilter is the flat filter specification for policy listings.
// Text comparisons are folded with Turkish casing rules by the query
// engine; EndFrom/EndTo are inclusive bounds on the policy end date.
type PolicyFilter struct {
	Q       string `json:"q"`
	Insurer string `json:"insurer"`
	Status  string `json:"status"`
	EndFrom string `json:"end_from"`
	EndTo   string `json:"end_to"`
}

// IsZero reports whether no filter option is set.
func (f PolicyFilter) IsZero() bool {
	return f.Q == "" && f.Insurer == "" && f.Status == "" && f.EndFrom == "" && f.EndTo == ""
}

// JoinedPolicy is a policy with its customer's display fields attached.
// A missing customer yields empty joined fields, never an error.
type JoinedPolicy struct {
	Policy
	CustomerName      string `json:"customer_name"`
	CustomerPhone     string `json:"customer_phone"`
	CustomerIDNo      string `json:"customer_id_no"`
	CustomerEmail     string `json:"customer_email"`
	CustomerBirthDate string `json:"customer_birth_date"`
}

// ComputedPolicy adds the day-offset view used by listing and export
// read paths.
type ComputedPolicy struct {
	JoinedPolicy
	DaysRemaining  int  `json:"days_remaining"`
	DaysTotal      int  `json:"days_total"`
	IsExpiringSoon bool `json:"is_expiring_soon"`
	IsExpired      bool `json:"is_expired"`
}
