package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPhone(t *testing.T) {
	valid := []string{"+1234567890", "+123456789012345", "123-456-7890", "(123) 456-7890"}
	for _, phone := range valid {
		assert.True(t, ValidPhone(phone), phone)
	}

	invalid := []string{"", "12345", "+123456789", "+1234567890123456", "1234567890", "(123)456-7890", "123-4567-890", "+12345abcde"}
	for _, phone := range invalid {
		assert.False(t, ValidPhone(phone), phone)
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("alice@example.com"))
	assert.True(t, ValidEmail("Bob.Smith+crm@example.co.uk"))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("alice@"))
}

func TestErrorsCollectsEveryViolation(t *testing.T) {
	var errs Errors
	require.NoError(t, errs.Err())

	errs.Add("name", CodeRequired, MsgNameRequired)
	errs.Add("email", CodeInvalid, MsgInvalidEmail)

	err := fmt.Errorf("create customer: %w", errs.Err())
	got, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, []string{MsgNameRequired, MsgInvalidEmail}, got.Messages())
	assert.True(t, got.Has(CodeRequired))
	assert.False(t, got.Has(CodeExists))
	assert.Equal(t, "Name is required; Invalid email format", errs.Error())
}
