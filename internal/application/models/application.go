package models

import (
	"time"

	"github.com/google/uuid"

	"creditgate/internal/rules"
	dErrors "creditgate/pkg/domainerrors"
)

// BankInformation is provider-sourced account data attached to an
// application when a banking integration is connected.
type BankInformation struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountType   string `json:"account_type,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SWIFT         string `json:"swift,omitempty"`
}

// Application is the aggregate root for a credit application.
//
// Invariants:
//   - RequestedAmount and MonthlyIncome are positive
//   - Status moves only along the lifecycle transition table
//   - Version increments on every persisted mutation; writers compare it so
//     concurrent reviewer actions cannot both succeed
//   - Once Status is terminal the record is immutable
//   - Seq is assigned by the store at creation and is strictly monotonic,
//     giving pagination a deterministic tiebreak under concurrent inserts
type Application struct {
	ID               uuid.UUID          `json:"id"`
	Seq              int64              `json:"seq"`
	ApplicantID      uuid.UUID          `json:"applicant_id"`
	Jurisdiction     rules.Jurisdiction `json:"jurisdiction"`
	FullName         string             `json:"full_name"`
	DocumentType     string             `json:"document_type"`
	IdentityDocument string             `json:"identity_document"`
	RequestedAmount  float64            `json:"requested_amount"`
	MonthlyIncome    float64            `json:"monthly_income"`
	Status           Status             `json:"status"`
	Version          int64              `json:"version"`
	RequestDate      time.Time          `json:"request_date"`
	BankInformation  *BankInformation   `json:"bank_information,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NewApplication builds an application in its validated initial status.
func NewApplication(applicantID uuid.UUID, jurisdiction rules.Jurisdiction, fullName, documentType, identityDocument string, requestedAmount, monthlyIncome float64, initial Status, now time.Time) (*Application, error) {
	if applicantID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "applicant is required")
	}
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "full name is required")
	}
	if len(fullName) > 200 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "full name must be 200 characters or less")
	}
	if identityDocument == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity document is required")
	}
	if requestedAmount <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "requested amount must be positive")
	}
	if monthlyIncome <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "monthly income must be positive")
	}
	if initial != StatusPending && initial != StatusInReview {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "%s is not a valid initial status", string(initial))
	}
	return &Application{
		ID:               uuid.New(),
		ApplicantID:      applicantID,
		Jurisdiction:     jurisdiction,
		FullName:         fullName,
		DocumentType:     documentType,
		IdentityDocument: identityDocument,
		RequestedAmount:  requestedAmount,
		MonthlyIncome:    monthlyIncome,
		Status:           initial,
		Version:          1,
		RequestDate:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// CanTransition checks whether the lifecycle allows moving to target.
// Use with ApplyTransition in store Execute callbacks.
func (a *Application) CanTransition(target Status) error {
	if !target.Valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", string(target))
	}
	if !a.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeIllegalTransition, "transition not allowed from current status")
	}
	return nil
}

// ApplyTransition moves the application to target and bumps the version.
// Call CanTransition first; this method assumes the move is legal.
func (a *Application) ApplyTransition(target Status, now time.Time) {
	a.Status = target
	a.Version++
	a.UpdatedAt = now
}
