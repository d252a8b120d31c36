package service

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"creditgate/internal/application/models"
	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/requestcontext"
)

const (
	// DefaultLimit applies when the caller does not pick a page size.
	DefaultLimit = 10

	exportBatchSize = 500
)

// Search returns one page of applications matching the filters, newest
// first. Applicants are always scoped to their own applications regardless
// of the filters they pass.
func (s *Service) Search(ctx context.Context, filters models.Filters, page, limit int) (*models.Page, error) {
	if requestcontext.ActorRole(ctx) == requestcontext.RoleApplicant {
		actorID := requestcontext.ActorID(ctx)
		if actorID == (uuid.UUID{}) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "missing applicant identity")
		}
		filters.ApplicantID = actorID
	}
	for _, j := range filters.Jurisdictions {
		if !j.Valid() {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported jurisdiction %q", string(j))
		}
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", string(filters.Status))
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	items, total, err := s.store.Search(ctx, filters, page, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search applications")
	}
	return &models.Page{
		Items:      items,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Export field identifiers, matching the JSON names of the application.
var exportFields = []string{
	"id",
	"applicant_id",
	"jurisdiction",
	"full_name",
	"document_type",
	"identity_document",
	"requested_amount",
	"monthly_income",
	"status",
	"request_date",
}

// Export projects every application matching the filters onto the requested
// columns. An empty field list selects the full catalog. Reviewer and admin
// only; fails with not-found when nothing matches.
func (s *Service) Export(ctx context.Context, filters models.Filters, fields []string) ([]string, [][]string, error) {
	role := requestcontext.ActorRole(ctx)
	if role != requestcontext.RoleReviewer && role != requestcontext.RoleAdmin {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "only reviewers can export applications")
	}

	if len(fields) == 0 {
		fields = exportFields
	}
	for _, f := range fields {
		if !validExportField(f) {
			return nil, nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown export field %q", f)
		}
	}

	var rows [][]string
	for page := 1; ; page++ {
		batch, _, err := s.store.Search(ctx, filters, page, exportBatchSize)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to export applications")
		}
		for _, app := range batch {
			rows = append(rows, projectRow(app, fields))
		}
		if len(batch) < exportBatchSize {
			break
		}
	}
	if len(rows) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "no applications match the export filters")
	}
	return fields, rows, nil
}

func validExportField(field string) bool {
	for _, f := range exportFields {
		if f == field {
			return true
		}
	}
	return false
}

func projectRow(app *models.Application, fields []string) []string {
	row := make([]string, 0, len(fields))
	for _, f := range fields {
		row = append(row, exportValue(app, f))
	}
	return row
}

func exportValue(app *models.Application, field string) string {
	switch field {
	case "id":
		return app.ID.String()
	case "applicant_id":
		return app.ApplicantID.String()
	case "jurisdiction":
		return string(app.Jurisdiction)
	case "full_name":
		return app.FullName
	case "document_type":
		return app.DocumentType
	case "identity_document":
		return app.IdentityDocument
	case "requested_amount":
		return strconv.FormatFloat(app.RequestedAmount, 'f', 2, 64)
	case "monthly_income":
		return strconv.FormatFloat(app.MonthlyIncome, 'f', 2, 64)
	case "status":
		return string(app.Status)
	case "request_date":
		return app.RequestDate.Format("2006-01-02")
	}
	return ""
}
