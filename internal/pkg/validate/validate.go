package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// v is the package-level singleton validator.
var v = validator.New()

var (
	phoneShape     = regexp.MustCompile(`^\+[0-9]{11,15}$`)
	phoneSeparator = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// ErrInvalidPhone is returned by Phone for numbers that are not E.164-like.
var ErrInvalidPhone = errors.New("phone must start with + and contain 11 to 15 digits")

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Phone checks an E.164-like number (leading +, 11 to 15 digits once
// separators are dropped) and returns it in canonical E.164 form.
func Phone(raw string) (string, error) {
	phone := phoneSeparator.Replace(strings.TrimSpace(raw))
	if !phoneShape.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	number, err := phonenumbers.Parse(phone, "US")
	if err != nil {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}

// Email returns the trimmed, lower-cased address when it is syntactically valid.
func Email(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := v.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("invalid email address")
	}
	return email, nil
}
