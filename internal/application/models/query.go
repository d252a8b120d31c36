package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"creditgate/internal/rules"
)

// Filters narrows an application search. Zero values mean "no constraint".
type Filters struct {
	// ApplicantID scopes results to one requester (non-privileged callers).
	ApplicantID uuid.UUID
	// Jurisdictions restricts to any of the given jurisdictions.
	Jurisdictions []rules.Jurisdiction
	// DocumentSubstring matches identity documents containing the value,
	// case-insensitively.
	DocumentSubstring string
	// Status restricts to one lifecycle status.
	Status Status
	// DateRange bounds the request date.
	DateRange *DateRange
}

// DateRange is a half-open-ended time window; nil bounds are unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Page is one page of search results with pagination totals.
type Page struct {
	Items      []*Application `json:"items"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// Matches reports whether the application satisfies every set filter.
// The in-memory store and the export path share this predicate.
func (f Filters) Matches(a *Application) bool {
	if f.ApplicantID != (uuid.UUID{}) && a.ApplicantID != f.ApplicantID {
		return false
	}
	if len(f.Jurisdictions) > 0 {
		found := false
		for _, j := range f.Jurisdictions {
			if a.Jurisdiction == j {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DocumentSubstring != "" &&
		!strings.Contains(strings.ToLower(a.IdentityDocument), strings.ToLower(f.DocumentSubstring)) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.DateRange != nil {
		if f.DateRange.From != nil && a.RequestDate.Before(*f.DateRange.From) {
			return false
		}
		if f.DateRange.To != nil && a.RequestDate.After(*f.DateRange.To) {
			return false
		}
	}
	return true
}
