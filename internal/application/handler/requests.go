package handler

import (
	"strings"

	"creditgate/internal/application/models"
	"creditgate/internal/application/service"
	"creditgate/internal/rules"
	dErrors "creditgate/pkg/domainerrors"
)

// SubmitRequest is the HTTP request body for POST /applications.
type SubmitRequest struct {
	Jurisdiction     string               `json:"jurisdiction"`
	FullName         string               `json:"full_name"`
	DocumentType     string               `json:"document_type"`
	IdentityDocument string               `json:"identity_document"`
	RequestedAmount  float64              `json:"requested_amount"`
	MonthlyIncome    float64              `json:"monthly_income"`
	BankInformation  *BankInformationBody `json:"bank_information,omitempty"`
}

// BankInformationBody mirrors the optional banking block of a submission.
type BankInformationBody struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountType   string `json:"account_type,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SWIFT         string `json:"swift,omitempty"`
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitRequest) Validate() error {
	r.Jurisdiction = strings.TrimSpace(r.Jurisdiction)
	r.FullName = strings.TrimSpace(r.FullName)
	r.DocumentType = strings.TrimSpace(r.DocumentType)
	r.IdentityDocument = strings.TrimSpace(r.IdentityDocument)

	if r.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeBadRequest, "jurisdiction is required")
	}
	if !rules.Jurisdiction(r.Jurisdiction).Valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unsupported jurisdiction %q", r.Jurisdiction)
	}
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "full_name is required")
	}
	if len(r.FullName) > 200 {
		return dErrors.New(dErrors.CodeBadRequest, "full_name must be at most 200 characters")
	}
	if r.DocumentType == "" {
		return dErrors.New(dErrors.CodeBadRequest, "document_type is required")
	}
	if r.IdentityDocument == "" {
		return dErrors.New(dErrors.CodeBadRequest, "identity_document is required")
	}
	if r.RequestedAmount <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "requested_amount must be positive")
	}
	if r.MonthlyIncome <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "monthly_income must be positive")
	}
	return nil
}

// ToService converts the request to the service submission type.
func (r *SubmitRequest) ToService() service.SubmitRequest {
	req := service.SubmitRequest{
		Jurisdiction:     rules.Jurisdiction(r.Jurisdiction),
		FullName:         r.FullName,
		DocumentType:     r.DocumentType,
		IdentityDocument: r.IdentityDocument,
		RequestedAmount:  r.RequestedAmount,
		MonthlyIncome:    r.MonthlyIncome,
	}
	if r.BankInformation != nil {
		req.BankInformation = &models.BankInformation{
			BankName:      r.BankInformation.BankName,
			AccountNumber: r.BankInformation.AccountNumber,
			AccountType:   r.BankInformation.AccountType,
			RoutingNumber: r.BankInformation.RoutingNumber,
			IBAN:          r.BankInformation.IBAN,
			SWIFT:         r.BankInformation.SWIFT,
		}
	}
	return req
}

// DecideRequest is the HTTP request body for POST /applications/{id}/decision.
type DecideRequest struct {
	Status          string `json:"status"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

// Validate checks the target status names a real lifecycle state.
func (r *DecideRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeBadRequest, "status is required")
	}
	if !models.Status(r.Status).Valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", r.Status)
	}
	if r.ExpectedVersion < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "expected_version must not be negative")
	}
	return nil
}

// CancelRequest is the HTTP request body for POST /applications/{id}/cancel.
// The body is optional; an absent expected_version skips the version guard.
type CancelRequest struct {
	ExpectedVersion int64 `json:"expected_version,omitempty"`
}

func (r *CancelRequest) Validate() error {
	if r.ExpectedVersion < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "expected_version must not be negative")
	}
	return nil
}
