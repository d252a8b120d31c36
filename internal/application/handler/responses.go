package handler

import (
	"time"

	"creditgate/internal/application/models"
	"creditgate/internal/validation"
)

// ApplicationResponse is the HTTP shape of a stored application.
type ApplicationResponse struct {
	ID               string               `json:"id"`
	ApplicantID      string               `json:"applicant_id"`
	Jurisdiction     string               `json:"jurisdiction"`
	FullName         string               `json:"full_name"`
	DocumentType     string               `json:"document_type"`
	IdentityDocument string               `json:"identity_document"`
	RequestedAmount  float64              `json:"requested_amount"`
	MonthlyIncome    float64              `json:"monthly_income"`
	Status           string               `json:"status"`
	Version          int64                `json:"version"`
	RequestDate      time.Time            `json:"request_date"`
	BankInformation  *BankInformationBody `json:"bank_information,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// FromApplication converts a domain application to an HTTP response.
func FromApplication(app *models.Application) *ApplicationResponse {
	resp := &ApplicationResponse{
		ID:               app.ID.String(),
		ApplicantID:      app.ApplicantID.String(),
		Jurisdiction:     string(app.Jurisdiction),
		FullName:         app.FullName,
		DocumentType:     app.DocumentType,
		IdentityDocument: app.IdentityDocument,
		RequestedAmount:  app.RequestedAmount,
		MonthlyIncome:    app.MonthlyIncome,
		Status:           string(app.Status),
		Version:          app.Version,
		RequestDate:      app.RequestDate,
		CreatedAt:        app.CreatedAt,
		UpdatedAt:        app.UpdatedAt,
	}
	if app.BankInformation != nil {
		resp.BankInformation = &BankInformationBody{
			BankName:      app.BankInformation.BankName,
			AccountNumber: app.BankInformation.AccountNumber,
			AccountType:   app.BankInformation.AccountType,
			RoutingNumber: app.BankInformation.RoutingNumber,
			IBAN:          app.BankInformation.IBAN,
			SWIFT:         app.BankInformation.SWIFT,
		}
	}
	return resp
}

// ViolationBody is one fired rule in a decision response.
type ViolationBody struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
	Review  bool   `json:"review"`
}

// SubmitResponse is returned for an admitted submission.
type SubmitResponse struct {
	Application *ApplicationResponse `json:"application"`
	Violations  []ViolationBody      `json:"violations"`
	Skipped     []string             `json:"skipped,omitempty"`
}

// RejectionResponse is returned with status 400 when validation blocks a
// submission.
type RejectionResponse struct {
	Error      string          `json:"error"`
	Violations []ViolationBody `json:"violations"`
	Skipped    []string        `json:"skipped,omitempty"`
}

func violationBodies(violations []validation.Violation) []ViolationBody {
	out := make([]ViolationBody, 0, len(violations))
	for _, v := range violations {
		out = append(out, ViolationBody{
			Rule:    string(v.RuleType),
			Message: v.Message,
			Review:  v.Review,
		})
	}
	return out
}

func skippedNames(decision *validation.Decision) []string {
	if decision == nil || len(decision.Skipped) == 0 {
		return nil
	}
	out := make([]string, 0, len(decision.Skipped))
	for _, t := range decision.Skipped {
		out = append(out, string(t))
	}
	return out
}

// EventResponse is one lifecycle transition in the history endpoint.
type EventResponse struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func fromEvents(events []*models.TransitionEvent) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			ID:         ev.ID.String(),
			From:       string(ev.From),
			To:         string(ev.To),
			ActorID:    ev.ActorID.String(),
			OccurredAt: ev.OccurredAt,
		})
	}
	return out
}

// PageResponse is the paginated search envelope.
type PageResponse struct {
	Items      []*ApplicationResponse `json:"items"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

func fromPage(page *models.Page, pageNum, limit int) *PageResponse {
	items := make([]*ApplicationResponse, 0, len(page.Items))
	for _, app := range page.Items {
		items = append(items, FromApplication(app))
	}
	return &PageResponse{
		Items:      items,
		Total:      page.Total,
		Page:       pageNum,
		Limit:      limit,
		TotalPages: page.TotalPages,
	}
}
