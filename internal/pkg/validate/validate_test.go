package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+15125550123", "+15125550123", true},
		{"+1 (512) 555-0123", "+15125550123", true},
		{"+447911123456", "+447911123456", true},
		{"5551234", "", false},
		{"15125550123", "", false},
		{"+1512555", "", false},
		{"+1234567890123456", "", false},
		{"+1512555abcd", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, err := Phone(c.in)
		if c.ok {
			require.NoError(t, err, "input: %q", c.in)
			assert.Equal(t, c.want, got, "input: %q", c.in)
		} else {
			assert.ErrorIs(t, err, ErrInvalidPhone, "input: %q", c.in)
		}
	}
}

func TestEmail(t *testing.T) {
	got, err := Email("  Owner@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", got)

	_, err = Email("not-an-email")
	assert.Error(t, err)
	_, err = Email("")
	assert.Error(t, err)
}

func TestStruct(t *testing.T) {
	type req struct {
		Code string `validate:"required,len=6,numeric"`
		Type string `validate:"omitempty,oneof=email sms"`
	}
	assert.NoError(t, Struct(&req{Code: "123456", Type: "sms"}))

	err := Struct(&req{Code: "12ab56"})
	assert.ErrorContains(t, err, "field 'Code' failed 'numeric'")

	err = Struct(&req{Code: "123456", Type: "fax"})
	assert.ErrorContains(t, err, "failed 'oneof'")
}
