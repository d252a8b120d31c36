// Package document validates identity document formats per jurisdiction:
// structural patterns plus check-digit algorithms where the document defines
// one (Spanish DNI control letter, Portuguese NIF and Brazilian CPF check
// digits).
package document

import (
	"regexp"
	"strings"

	"creditgate/internal/rules"
)

// Result is the outcome of a format validation. Message is localized for the
// applicant and empty when Valid.
type Result struct {
	Valid   bool
	Message string
}

func ok() Result                { return Result{Valid: true} }
func invalid(msg string) Result { return Result{Valid: false, Message: msg} }

var (
	dniPattern    = regexp.MustCompile(`^[0-9]{8}[A-Z]$`)
	nifPattern    = regexp.MustCompile(`^[0-9]{9}$`)
	cpfPattern    = regexp.MustCompile(`^[0-9]{11}$`)
	curpPattern   = regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[HM][A-Z]{5}[0-9A-Z][0-9]$`)
	codicePattern = regexp.MustCompile(`^[A-Z0-9]{16}$`)
	cedulaPattern = regexp.MustCompile(`^[0-9]{8,10}$`)
)

// dniControlLetters maps number mod 23 to the expected DNI control letter.
const dniControlLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

// Validate checks document against the jurisdiction's format. Unknown
// document types only get a length sanity check, so new jurisdictions don't
// hard-fail before a dedicated validator exists.
func Validate(jurisdiction rules.Jurisdiction, documentType, document string) Result {
	cleaned := strings.TrimSpace(document)
	if cleaned == "" {
		return invalid("El documento de identidad es requerido")
	}

	switch jurisdiction {
	case rules.JurisdictionSpain:
		return validateDNI(cleaned)
	case rules.JurisdictionPortugal:
		return validateNIF(cleaned)
	case rules.JurisdictionBrazil:
		return validateCPF(cleaned)
	case rules.JurisdictionMexico:
		return validateCURP(cleaned)
	case rules.JurisdictionItaly:
		return validateCodiceFiscale(cleaned)
	case rules.JurisdictionColombia:
		return validateCedula(cleaned)
	}

	if len(cleaned) < 3 {
		return invalid("El documento " + documentType + " debe tener al menos 3 caracteres")
	}
	if len(cleaned) > 50 {
		return invalid("El documento " + documentType + " no puede tener más de 50 caracteres")
	}
	return ok()
}

// validateDNI checks the Spanish DNI: 8 digits plus a control letter derived
// from the number mod 23.
func validateDNI(document string) Result {
	document = normalize(document)
	if !dniPattern.MatchString(document) {
		return invalid("El DNI debe tener 8 dígitos seguidos de una letra (ej: 12345678Z)")
	}

	number := 0
	for _, d := range document[:8] {
		number = number*10 + int(d-'0')
	}
	expected := dniControlLetters[number%23]
	if document[8] != expected {
		return invalid("La letra del DNI no es válida. Debería ser " + string(expected))
	}
	return ok()
}

// validateNIF checks the Portuguese NIF: 9 digits, the last a mod-11 check
// digit over weights 9..2.
func validateNIF(document string) Result {
	document = normalize(document)
	if !nifPattern.MatchString(document) {
		return invalid("El NIF debe tener 9 dígitos")
	}

	total := 0
	for i := 0; i < 8; i++ {
		total += int(document[i]-'0') * (9 - i)
	}
	expected := 0
	if remainder := total % 11; remainder >= 2 {
		expected = 11 - remainder
	}
	if int(document[8]-'0') != expected {
		return invalid("El dígito verificador del NIF no es válido")
	}
	return ok()
}

// validateCPF checks the Brazilian CPF: 11 digits with two check digits and
// a rejection of the all-same-digit degenerate values.
func validateCPF(document string) Result {
	document = strings.NewReplacer(".", "", "-", "", " ", "").Replace(document)
	if !cpfPattern.MatchString(document) {
		return invalid("El CPF debe tener 11 dígitos")
	}
	if strings.Count(document, document[:1]) == len(document) {
		return invalid("El CPF no puede tener todos los dígitos iguales")
	}

	digits := make([]int, 11)
	for i := range document {
		digits[i] = int(document[i] - '0')
	}

	check := func(upto, startWeight int) int {
		total := 0
		for i := 0; i < upto; i++ {
			total += digits[i] * (startWeight - i)
		}
		if remainder := total % 11; remainder >= 2 {
			return 11 - remainder
		}
		return 0
	}

	if check(9, 10) != digits[9] {
		return invalid("El primer dígito verificador del CPF no es válido")
	}
	if check(10, 11) != digits[10] {
		return invalid("El segundo dígito verificador del CPF no es válido")
	}
	return ok()
}

// validateCURP checks the Mexican CURP's 18-character structure: 4 letters,
// birth date, sex marker, state code, consonants, homoclave, check digit.
func validateCURP(document string) Result {
	document = normalize(document)
	if !curpPattern.MatchString(document) {
		return invalid("El CURP debe tener 18 caracteres alfanuméricos en el formato correcto")
	}
	return ok()
}

// validateCodiceFiscale checks the Italian Codice Fiscale's 16-character
// alphanumeric structure. Full checksum validation is intentionally not
// implemented; the structural check matches what intake requires.
func validateCodiceFiscale(document string) Result {
	document = normalize(document)
	if !codicePattern.MatchString(document) {
		return invalid("El Codice Fiscale debe tener 16 caracteres alfanuméricos")
	}
	return ok()
}

// validateCedula checks the Colombian Cédula de Ciudadanía: 8 to 10 digits.
func validateCedula(document string) Result {
	document = strings.NewReplacer(".", "", "-", "", " ", "").Replace(document)
	if !cedulaPattern.MatchString(document) {
		return invalid("La Cédula de Ciudadanía debe tener entre 8 y 10 dígitos")
	}
	return ok()
}

func normalize(document string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(document))
}
