package models

// Patch types carry partial updates: nil fields are left untouched.
// Both backends apply them the same way, so an update with an unknown
// id is a silent no-op rather than an error.

type CustomerPatch struct {
	Name      *string  `json:"name,omitempty" bson:"name,omitempty"`
	Phone     *string  `json:"phone,omitempty" bson:"phone,omitempty"`
	IDNo      *string  `json:"id_no,omitempty" bson:"id_no,omitempty"`
	Email     *string  `json:"email,omitempty" bson:"email,omitempty"`
	BirthDate *string  `json:"birth_date,omitempty" bson:"birth_date,omitempty"`
	Debt      *float64 `json:"debt,omitempty" bson:"debt,omitempty"`
	Note      *string  `json:"note,omitempty" bson:"note,omitempty"`
}

// Apply mutates c with the non-nil fields of the patch.
func (p CustomerPatch) Apply(c *Customer) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.IDNo != nil {
		c.IDNo = *p.IDNo
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.BirthDate != nil {
		c.BirthDate = *p.BirthDate
	}
	if p.Debt != nil {
		v := *p.Debt
		c.Debt = &v
	}
	if p.Note != nil {
		c.Note = *p.Note
	}
}

type PolicyPatch struct {
	CustomerID   *int          `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	Insurer      *string       `json:"insurer,omitempty" bson:"insurer,omitempty"`
	PolicyNumber *string       `json:"policy_number,omitempty" bson:"policy_number,omitempty"`
	PolicyType   *string       `json:"policy_type,omitempty" bson:"policy_type,omitempty"`
	IssueDate    *string       `json:"issue_date,omitempty" bson:"issue_date,omitempty"`
	StartDate    *string       `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate      *string       `json:"end_date,omitempty" bson:"end_date,omitempty"`
	Description  *string       `json:"description,omitempty" bson:"description,omitempty"`
	Status       *string       `json:"status,omitempty" bson:"status,omitempty"`
	Premium      *float64      `json:"premium,omitempty" bson:"premium,omitempty"`
	Notified14   *bool         `json:"notified_14,omitempty" bson:"notified_14,omitempty"`
	NotifiedEnd  *bool         `json:"notified_end,omitempty" bson:"notified_end,omitempty"`
	Detail       *PolicyDetail `json:"detail,omitempty" bson:"detail,omitempty"`
}

func (p PolicyPatch) Apply(pol *Policy) {
	if p.CustomerID != nil {
		pol.CustomerID = *p.CustomerID
	}
	if p.Insurer != nil {
		pol.Insurer = *p.Insurer
	}
	if p.PolicyNumber != nil {
		pol.PolicyNumber = *p.PolicyNumber
	}
	if p.PolicyType != nil {
		pol.PolicyType = *p.PolicyType
	}
	if p.IssueDate != nil {
		pol.IssueDate = *p.IssueDate
	}
	if p.StartDate != nil {
		pol.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		pol.EndDate = *p.EndDate
	}
	if p.Description != nil {
		pol.Description = *p.Description
	}
	if p.Status != nil {
		pol.Status = *p.Status
	}
	if p.Premium != nil {
		pol.Premium = *p.Premium
	}
	if p.Notified14 != nil {
		pol.Notified14 = *p.Notified14
	}
	if p.NotifiedEnd != nil {
		pol.NotifiedEnd = *p.NotifiedEnd
	}
	if p.Detail != nil {
		d := *p.Detail
		pol.Detail = &d
	}
}

type UserPatch struct {
	Username     *string `json:"username,omitempty" bson:"username,omitempty"`
	PasswordHash *string `json:"password_hash,omitempty" bson:"password_hash,omitempty"`
	Role         *string `json:"role,omitempty" bson:"role,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty" bson:"is_active,omitempty"`
}

func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}
