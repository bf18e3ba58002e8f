// Package validation collects field violations so callers can report every
// failed rule in one response.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	CodeRequired = "required"
	CodeInvalid  = "invalid"
	CodeExists   = "already_exists"
	CodeNotFound = "not_found"
)

const (
	MsgNameRequired      = "Name is required"
	MsgInvalidEmail      = "Invalid email format"
	MsgEmailExists       = "Email already exists"
	MsgInvalidPhone      = "Invalid phone format. Use +1234567890, 123-456-7890 or (123) 456-7890"
	MsgPriceNotPositive  = "Price must be positive"
	MsgStockNegative     = "Stock cannot be negative"
	MsgInvalidCustomerID = "Invalid customer ID"
	MsgNoProducts        = "At least one product must be selected"
	MsgInvalidProductIDs = "One or more invalid product IDs"
)

type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is a non-empty list of violations when used as an error.
type Errors []Violation

func (e Errors) Error() string {
	return strings.Join(e.Messages(), "; ")
}

func (e *Errors) Add(field, code, message string) {
	*e = append(*e, Violation{Field: field, Code: code, Message: message})
}

// Err returns nil when no violation was collected.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e Errors) Messages() []string {
	out := make([]string, 0, len(e))
	for _, v := range e {
		out = append(out, v.Message)
	}
	return out
}

func (e Errors) Has(code string) bool {
	for _, v := range e {
		if v.Code == code {
			return true
		}
	}
	return false
}

func As(err error) (Errors, bool) {
	var verrs Errors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

func New(field, code, message string) Errors {
	return Errors{{Field: field, Code: code, Message: message}}
}

var validate = validator.New()

func ValidEmail(email string) bool {
	if strings.TrimSpace(email) == "" {
		return false
	}
	return validate.Var(email, "required,email") == nil
}

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\+\d{10,15}$`),
	regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`),
	regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`),
}

func ValidPhone(phone string) bool {
	for _, pattern := range phonePatterns {
		if pattern.MatchString(phone) {
			return true
		}
	}
	return false
}
