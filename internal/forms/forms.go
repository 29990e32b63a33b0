// Package forms holds typed request DTOs for the HTML form surface.
// Each form is parsed field-by-field from the submitted values and
// validated before anything is mapped onto an entity, so a failed
// submission can be re-rendered with the prior input retained.
package forms

import (
	"net/http"
	"strings"

	"github.com/Adhamjon1112/Kirim-Chiqim/internal/models"
	"github.com/shopspring/decimal"
)

// Amounts follow the original column definition: up to 15 digits total,
// of which at most 2 are decimal places.
const (
	maxAmountDigits  = 15
	maxDecimalPlaces = 2
	maxIntegerDigits = maxAmountDigits - maxDecimalPlaces
)

// LoginForm carries the submitted login field. The original login flow
// reads nothing but the username; see the handler for the consequences.
type LoginForm struct {
	Username string
}

// ParseLoginForm reads a login form from the request.
func ParseLoginForm(r *http.Request) *LoginForm {
	return &LoginForm{Username: strings.TrimSpace(r.FormValue("username"))}
}

// Validate checks that a username was submitted.
func (f *LoginForm) Validate() bool {
	return f.Username != ""
}

// RegistrationForm carries the submitted registration fields.
type RegistrationForm struct {
	FirstName string
	LastName  string
	Username  string
	Password1 string
	Password2 string

	Errors map[string]string
}

// EmptyRegistrationForm returns a blank form for the initial page render.
func EmptyRegistrationForm() *RegistrationForm {
	return &RegistrationForm{Errors: map[string]string{}}
}

// ParseRegistrationForm reads a registration form from the request.
func ParseRegistrationForm(r *http.Request) *RegistrationForm {
	return &RegistrationForm{
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
		Username:  strings.TrimSpace(r.FormValue("username")),
		Password1: r.FormValue("password1"),
		Password2: r.FormValue("password2"),
		Errors:    map[string]string{},
	}
}

// Validate checks that every field is present. The two password fields are
// required but not compared against each other; the login flow never reads
// a password either. See DESIGN.md for why this stays as is.
func (f *RegistrationForm) Validate() bool {
	if f.FirstName == "" {
		f.Errors["first_name"] = "This field is required."
	}
	if f.LastName == "" {
		f.Errors["last_name"] = "This field is required."
	}
	if f.Username == "" {
		f.Errors["username"] = "This field is required."
	}
	if f.Password1 == "" {
		f.Errors["password1"] = "This field is required."
	}
	if f.Password2 == "" {
		f.Errors["password2"] = "This field is required."
	}
	return len(f.Errors) == 0
}

// TransactionForm carries the submitted transaction fields.
type TransactionForm struct {
	Type        string
	Amount      string
	Description string

	Errors map[string]string
	amount decimal.Decimal
}

// EmptyTransactionForm returns a blank form for the initial page render.
func EmptyTransactionForm() *TransactionForm {
	return &TransactionForm{Errors: map[string]string{}}
}

// TransactionFormFromModel pre-fills a form with an existing transaction,
// for the edit page.
func TransactionFormFromModel(t *models.Transaction) *TransactionForm {
	return &TransactionForm{
		Type:        string(t.Type),
		Amount:      t.Amount.StringFixed(2),
		Description: t.Description,
		Errors:      map[string]string{},
	}
}

// ParseTransactionForm reads a transaction form from the request.
func ParseTransactionForm(r *http.Request) *TransactionForm {
	return &TransactionForm{
		Type:        strings.TrimSpace(r.FormValue("type")),
		Amount:      strings.TrimSpace(r.FormValue("amount")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Errors:      map[string]string{},
	}
}

// Validate checks the type enumeration, the amount format and the
// description. On success ParsedAmount returns the exact decimal value.
func (f *TransactionForm) Validate() bool {
	if !models.TransactionType(f.Type).Valid() {
		f.Errors["type"] = "Select a valid transaction type."
	}

	f.validateAmount()

	if f.Description == "" {
		f.Errors["description"] = "This field is required."
	}
	return len(f.Errors) == 0
}

func (f *TransactionForm) validateAmount() {
	if f.Amount == "" {
		f.Errors["amount"] = "This field is required."
		return
	}
	amount, err := decimal.NewFromString(f.Amount)
	if err != nil {
		f.Errors["amount"] = "Enter a valid amount."
		return
	}
	if amount.IsNegative() {
		f.Errors["amount"] = "Amount cannot be negative."
		return
	}
	if amount.Exponent() < -maxDecimalPlaces {
		f.Errors["amount"] = "Ensure the amount has no more than 2 decimal places."
		return
	}
	if amount.GreaterThanOrEqual(decimal.New(1, maxIntegerDigits)) {
		f.Errors["amount"] = "Ensure the amount has no more than 13 digits before the decimal point."
		return
	}
	f.amount = amount
}

// ParsedAmount returns the validated amount. Only meaningful after a
// successful Validate.
func (f *TransactionForm) ParsedAmount() decimal.Decimal {
	return f.amount
}
