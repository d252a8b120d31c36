package rules

import (
	"context"
	"log/slog"

	dErrors "creditgate/pkg/domainerrors"
	"creditgate/pkg/requestcontext"
)

// Document types required per jurisdiction.
const (
	DocumentDNI           = "DNI"
	DocumentNIF           = "NIF"
	DocumentCodiceFiscale = "Codice Fiscale"
	DocumentCURP          = "CURP"
	DocumentCedula        = "Cédula de Ciudadanía"
	DocumentCPF           = "CPF"
)

type defaultRuleSet struct {
	jurisdiction Jurisdiction
	documentType string
	description  string
	rules        []Rule
}

// defaultRuleSets holds the documented per-jurisdiction defaults installed at
// bootstrap. Error messages are shown to applicants in the jurisdiction's
// language.
func defaultRuleSets() []defaultRuleSet {
	incomeRule := func(maxRatio float64, message string) Rule {
		return Rule{
			Type:         RuleIncomeRatio,
			Enabled:      true,
			ErrorMessage: message,
			IncomeRatio:  &IncomeRatioParams{MaxRatio: maxRatio},
		}
	}
	documentRule := func(message string) Rule {
		return Rule{
			Type:         RuleDocumentVerification,
			Enabled:      true,
			ErrorMessage: message,
		}
	}

	return []defaultRuleSet{
		{
			jurisdiction: JurisdictionSpain,
			documentType: DocumentDNI,
			description:  "Reglas de validación para España - DNI requerido",
			rules: []Rule{
				documentRule("El tipo de documento requerido para España es DNI"),
				incomeRule(0.30, "El monto solicitado no puede exceder el 30% del ingreso mensual"),
			},
		},
		{
			jurisdiction: JurisdictionPortugal,
			documentType: DocumentNIF,
			description:  "Reglas de validación para Portugal - NIF requerido",
			rules: []Rule{
				documentRule("El tipo de documento requerido para Portugal es NIF"),
				incomeRule(0.30, "El monto solicitado no puede exceder el 30% del ingreso mensual"),
			},
		},
		{
			jurisdiction: JurisdictionItaly,
			documentType: DocumentCodiceFiscale,
			description:  "Reglas de validación para Italia - Codice Fiscale requerido",
			rules: []Rule{
				documentRule("El tipo de documento requerido para Italia es Codice Fiscale"),
				incomeRule(0.35, "El monto solicitado no puede exceder el 35% del ingreso mensual"),
			},
		},
		{
			jurisdiction: JurisdictionMexico,
			documentType: DocumentCURP,
			description:  "Reglas de validación para México - CURP requerido",
			rules: []Rule{
				documentRule("El tipo de documento requerido para México es CURP"),
				incomeRule(0.40, "El monto solicitado no puede exceder el 40% del ingreso mensual"),
			},
		},
		{
			jurisdiction: JurisdictionColombia,
			documentType: DocumentCedula,
			description:  "Reglas de validación para Colombia - Cédula de Ciudadanía requerida",
			rules: []Rule{
				documentRule("El tipo de documento requerido para Colombia es Cédula de Ciudadanía"),
				incomeRule(0.50, "El monto solicitado no puede exceder el 50% del ingreso mensual"),
			},
		},
		{
			jurisdiction: JurisdictionBrazil,
			documentType: DocumentCPF,
			description:  "Regras de validação para o Brasil - CPF obrigatório",
			rules: []Rule{
				documentRule("O tipo de documento exigido para o Brasil é CPF"),
				incomeRule(0.35, "O valor solicitado não pode exceder 35% da renda mensal"),
			},
		},
	}
}

// Bootstrap installs the documented defaults for every jurisdiction that has
// no active rule set. It is idempotent: jurisdictions with an active
// configuration are skipped.
func Bootstrap(ctx context.Context, registry *Registry, logger *slog.Logger) error {
	created, skipped := 0, 0

	for _, def := range defaultRuleSets() {
		_, err := registry.Get(ctx, def.jurisdiction)
		if err == nil {
			skipped++
			continue
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "bootstrap lookup failed for "+string(def.jurisdiction))
		}

		set, err := NewRuleSet(def.jurisdiction, def.documentType, def.description, def.rules,
			requestcontext.ActorID(ctx), requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := registry.Activate(ctx, set); err != nil {
			return err
		}
		registry.metrics.IncrementBootstrapInstalls()
		created++
		logger.InfoContext(ctx, "installed default rule set",
			"jurisdiction", def.jurisdiction,
			"rule_set_id", set.ID,
		)
	}

	logger.InfoContext(ctx, "rule set bootstrap completed",
		"created", created,
		"skipped", skipped,
	)
	return nil
}
