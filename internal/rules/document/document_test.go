package document

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"creditgate/internal/rules"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		jurisdiction rules.Jurisdiction
		document     string
		valid        bool
	}{
		{"valid DNI", rules.JurisdictionSpain, "12345678Z", true},
		{"DNI with lowercase and spaces", rules.JurisdictionSpain, " 12345678z ", true},
		{"DNI wrong control letter", rules.JurisdictionSpain, "12345678A", false},
		{"DNI too short", rules.JurisdictionSpain, "1234567Z", false},

		{"valid NIF", rules.JurisdictionPortugal, "123456789", true},
		{"NIF bad check digit", rules.JurisdictionPortugal, "123456780", false},
		{"NIF wrong length", rules.JurisdictionPortugal, "12345678", false},

		{"valid CPF", rules.JurisdictionBrazil, "52998224725", true},
		{"CPF with punctuation", rules.JurisdictionBrazil, "529.982.247-25", true},
		{"CPF all same digits", rules.JurisdictionBrazil, "11111111111", false},
		{"CPF bad first check digit", rules.JurisdictionBrazil, "52998224735", false},

		{"valid CURP", rules.JurisdictionMexico, "ABCD900101HDFLNS09", true},
		{"CURP bad sex marker", rules.JurisdictionMexico, "ABCD900101XDFLNS09", false},
		{"CURP too short", rules.JurisdictionMexico, "ABCD900101H", false},

		{"valid codice fiscale", rules.JurisdictionItaly, "RSSMRA85M01H501Z", true},
		{"codice fiscale too short", rules.JurisdictionItaly, "RSSMRA85M01", false},

		{"valid cedula", rules.JurisdictionColombia, "12345678", true},
		{"cedula with separators", rules.JurisdictionColombia, "1.234.567.890", true},
		{"cedula too short", rules.JurisdictionColombia, "1234567", false},
		{"cedula too long", rules.JurisdictionColombia, "12345678901", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.jurisdiction, "any", tt.document)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.NotEmpty(t, res.Message)
			}
		})
	}

	t.Run("empty document is rejected", func(t *testing.T) {
		res := Validate(rules.JurisdictionSpain, "DNI", "   ")
		assert.False(t, res.Valid)
	})
}
