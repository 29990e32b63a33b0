package forms

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(values url.Values) *RegistrationForm {
	r := httptest.NewRequest("POST", "/register", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ParseRegistrationForm(r)
}

func TestRegistrationFormValid(t *testing.T) {
	f := formRequest(url.Values{
		"first_name": {"Adham"},
		"last_name":  {"Olimov"},
		"username":   {"adham"},
		"password1":  {"secret"},
		"password2":  {"secret"},
	})
	assert.True(t, f.Validate())
	assert.Empty(t, f.Errors)
}

func TestRegistrationFormMissingFields(t *testing.T) {
	f := formRequest(url.Values{"username": {"adham"}})
	assert.False(t, f.Validate())
	assert.Contains(t, f.Errors, "first_name")
	assert.Contains(t, f.Errors, "last_name")
	assert.Contains(t, f.Errors, "password1")
	assert.Contains(t, f.Errors, "password2")
	assert.NotContains(t, f.Errors, "username")
}

func TestRegistrationFormConfirmationNotCompared(t *testing.T) {
	// Mirrors the original form: both password fields are required but a
	// mismatch passes validation.
	f := formRequest(url.Values{
		"first_name": {"Adham"},
		"last_name":  {"Olimov"},
		"username":   {"adham"},
		"password1":  {"secret"},
		"password2":  {"different"},
	})
	assert.True(t, f.Validate())
}

func transactionForm(values url.Values) *TransactionForm {
	r := httptest.NewRequest("POST", "/create", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ParseTransactionForm(r)
}

func TestTransactionFormValid(t *testing.T) {
	f := transactionForm(url.Values{
		"type":        {"income"},
		"amount":      {"100.00"},
		"description": {"salary"},
	})
	require.True(t, f.Validate(), "errors: %v", f.Errors)
	assert.Equal(t, "100", f.ParsedAmount().String())
	assert.True(t, f.ParsedAmount().Equal(f.ParsedAmount().Truncate(2)))
}

func TestTransactionFormAmountValidation(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		ok     bool
	}{
		{"plain integer", "42", true},
		{"two decimal places", "12.34", true},
		{"zero", "0", true},
		{"max integer digits", "9999999999999.99", true},
		{"empty", "", false},
		{"not a number", "ten", false},
		{"negative", "-5.00", false},
		{"three decimal places", "1.005", false},
		{"too many integer digits", "10000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := transactionForm(url.Values{
				"type":        {"expense"},
				"amount":      {tt.amount},
				"description": {"test"},
			})
			if tt.ok {
				assert.True(t, f.Validate(), "errors: %v", f.Errors)
			} else {
				assert.False(t, f.Validate())
				assert.Contains(t, f.Errors, "amount")
			}
		})
	}
}

func TestTransactionFormTypeValidation(t *testing.T) {
	for _, typ := range []string{"income", "expense"} {
		f := transactionForm(url.Values{
			"type":        {typ},
			"amount":      {"1.00"},
			"description": {"test"},
		})
		assert.True(t, f.Validate(), "type %q should be valid", typ)
	}

	for _, typ := range []string{"", "transfer", "INCOME"} {
		f := transactionForm(url.Values{
			"type":        {typ},
			"amount":      {"1.00"},
			"description": {"test"},
		})
		assert.False(t, f.Validate(), "type %q should be invalid", typ)
		assert.Contains(t, f.Errors, "type")
	}
}

func TestTransactionFormMissingDescription(t *testing.T) {
	f := transactionForm(url.Values{
		"type":   {"income"},
		"amount": {"1.00"},
	})
	assert.False(t, f.Validate())
	assert.Contains(t, f.Errors, "description")
}
