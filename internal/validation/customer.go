package validation

import (
	"regexp"
	"unicode"
)

var customerSchema = schema{
	accepted: []string{"username", "first_name", "last_name", "email", "password", "phone"},
	required: []requiredField{
		{name: "username", missing: "username is a required field", rule: stringRule},
		{name: "first_name", missing: "first name is a required field", rule: stringRule},
		{name: "last_name", missing: "last name is a required field", rule: stringRule},
		{name: "password", missing: "password is a required field", rule: stringRule},
		{name: "email", missing: "email is a required field", rule: stringRule},
	},
	immutable: []immutableField{
		{name: "username", message: "The username can not be changed"},
	},
}

// The public API accepts anything shaped local@domain.tld, which is looser
// than RFC 5322 and the validator "email" tag.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

const minPasswordLength = 7

// ValidEmail reports whether email looks like local@domain.tld
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// StrongPassword requires at least seven characters with a letter and a digit
func StrongPassword(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
