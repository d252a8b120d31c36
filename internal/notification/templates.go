package notification

import "creditgate/internal/rules"

// Template keys for the lifecycle notices.
const (
	TemplateSubmitted = "application_submitted"
	TemplateInReview  = "application_in_review"
	TemplateApproved  = "application_approved"
	TemplateRejected  = "application_rejected"
	TemplateCancelled = "application_cancelled"
)

var jurisdictionLocales = map[rules.Jurisdiction]string{
	rules.JurisdictionSpain:    "es",
	rules.JurisdictionMexico:   "es",
	rules.JurisdictionColombia: "es",
	rules.JurisdictionPortugal: "pt",
	rules.JurisdictionBrazil:   "pt",
	rules.JurisdictionItaly:    "it",
}

// Locale returns the notification locale for a jurisdiction, defaulting
// to Spanish.
func Locale(jurisdiction rules.Jurisdiction) string {
	if locale, ok := jurisdictionLocales[jurisdiction]; ok {
		return locale
	}
	return "es"
}

var summaries = map[string]map[string]string{
	TemplateSubmitted: {
		"es": "Su solicitud de crédito ha sido recibida",
		"pt": "Sua solicitação de crédito foi recebida",
		"it": "La tua richiesta di credito è stata ricevuta",
	},
	TemplateInReview: {
		"es": "Su solicitud de crédito está en revisión",
		"pt": "Sua solicitação de crédito está em análise",
		"it": "La tua richiesta di credito è in revisione",
	},
	TemplateApproved: {
		"es": "Su solicitud de crédito ha sido aprobada",
		"pt": "Sua solicitação de crédito foi aprovada",
		"it": "La tua richiesta di credito è stata approvata",
	},
	TemplateRejected: {
		"es": "Su solicitud de crédito ha sido rechazada",
		"pt": "Sua solicitação de crédito foi recusada",
		"it": "La tua richiesta di credito è stata rifiutata",
	},
	TemplateCancelled: {
		"es": "Su solicitud de crédito ha sido cancelada",
		"pt": "Sua solicitação de crédito foi cancelada",
		"it": "La tua richiesta di credito è stata annullata",
	},
}

// Summary returns the localized one-line summary for a template, falling
// back to Spanish for unknown locales.
func Summary(templateKey, locale string) string {
	byLocale, ok := summaries[templateKey]
	if !ok {
		return ""
	}
	if summary, ok := byLocale[locale]; ok {
		return summary
	}
	return byLocale["es"]
}
