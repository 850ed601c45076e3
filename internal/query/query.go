package query

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/policykeeper/policykeeper/internal/models"
	"github.com/policykeeper/policykeeper/pkg/dates"
)

// Fold lowercases with Turkish casing rules so dotted and dotless I
// compare the way users expect (İ→i, I→ı).
func Fold(s string) string {
	return cases.Lower(language.Turkish).String(s)
}

// Join attaches customer display fields to a policy. A missing
// customer yields empty fields, never an error.
func Join(p models.Policy, byID map[int]models.Customer) models.JoinedPolicy {
	j := models.JoinedPolicy{Policy: p}
	if c, ok := byID[p.CustomerID]; ok {
		j.CustomerName = c.Name
		j.CustomerPhone = c.Phone
		j.CustomerIDNo = c.IDNo
		j.CustomerEmail = c.Email
		j.CustomerBirthDate = c.BirthDate
	}
	return j
}

// Filter joins every policy to its customer, applies the filter options
// in the fixed order [text, insurer, status, end_from, end_to] and
// returns a new slice sorted by end date ascending, ties broken by
// descending id. Inputs are not mutated.
func Filter(policies []models.Policy, customers []models.Customer, f models.PolicyFilter) []models.JoinedPolicy {
	byID := make(map[int]models.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	items := make([]models.JoinedPolicy, 0, len(policies))
	for _, p := range policies {
		items = append(items, Join(p, byID))
	}

	if q := Fold(f.Q); q != "" {
		items = keep(items, func(x models.JoinedPolicy) bool {
			return strings.Contains(Fold(x.CustomerName), q) ||
				strings.Contains(Fold(x.PolicyNumber), q) ||
				strings.Contains(Fold(x.CustomerPhone), q) ||
				strings.Contains(Fold(x.CustomerIDNo), q)
		})
	}
	if insurer := Fold(f.Insurer); insurer != "" {
		items = keep(items, func(x models.JoinedPolicy) bool {
			return strings.Contains(Fold(x.Insurer), insurer)
		})
	}
	if status := Fold(f.Status); status != "" {
		items = keep(items, func(x models.JoinedPolicy) bool {
			return Fold(x.Status) == status
		})
	}
	if from, ok := dates.Parse(f.EndFrom); f.EndFrom != "" && ok {
		items = keep(items, func(x models.JoinedPolicy) bool {
			end, ok := dates.Parse(x.EndDate)
			return ok && !end.Before(from)
		})
	}
	if to, ok := dates.Parse(f.EndTo); f.EndTo != "" && ok {
		items = keep(items, func(x models.JoinedPolicy) bool {
			end, ok := dates.Parse(x.EndDate)
			return ok && !end.After(to)
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].EndDate != items[j].EndDate {
			return items[i].EndDate < items[j].EndDate
		}
		return items[i].ID > items[j].ID
	})

	return items
}

func keep(items []models.JoinedPolicy, pred func(models.JoinedPolicy) bool) []models.JoinedPolicy {
	out := items[:0:0]
	for _, x := range items {
		if pred(x) {
			out = append(out, x)
		}
	}
	return out
}

// Compute adds the day-offset view used by listing and export paths.
func Compute(j models.JoinedPolicy, now time.Time) models.ComputedPolicy {
	c := models.ComputedPolicy{JoinedPolicy: j}
	if remaining, ok := dates.DaysUntil(j.EndDate, now); ok {
		c.DaysRemaining = remaining
		c.IsExpiringSoon = remaining <= 30
		c.IsExpired = remaining < 0
	}
	if end, okEnd := dates.Parse(j.EndDate); okEnd {
		if start, okStart := dates.Parse(j.StartDate); okStart {
			c.DaysTotal = dates.DaysBetween(start, end)
		}
	}
	return c
}

// SearchCustomers filters customers by a folded free-text query over
// name, phone, id number and email. When birthdaysToday is set only
// customers whose birth date matches today's day and month are kept.
func SearchCustomers(customers []models.Customer, q string, birthdaysToday bool, now time.Time) []models.Customer {
	out := customers[:0:0]
	folded := Fold(q)
	for _, c := range customers {
		if folded != "" {
			match := strings.Contains(Fold(c.Name), folded) ||
				strings.Contains(Fold(c.Phone), folded) ||
				strings.Contains(Fold(c.IDNo), folded) ||
				strings.Contains(Fold(c.Email), folded)
			if !match {
				continue
			}
		}
		if birthdaysToday {
			born, ok := dates.Parse(c.BirthDate)
			if !ok || born.Day() != now.Day() || born.Month() != now.Month() {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// IsCancelled reports whether a status string is a cancelled variant in
// either locale.
func IsCancelled(status string) bool {
	switch Fold(status) {
	// "ıptal" is what ASCII-uppercased IPTAL folds to under Turkish casing.
	case "cancelled", "iptal", "ıptal":
		return true
	}
	return false
}
