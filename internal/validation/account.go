package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Ограничения учетной записи dev-сервера
const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// FieldErrors maps a request field to the reason it was rejected.
// The server returns it as api.ErrorResponse.Fields.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e[name])
	}
	return strings.Join(parts, "; ")
}

// ValidateAccount checks the credentials of a new account. It returns nil
// or a FieldErrors holding every rejected field.
func ValidateAccount(username, password string) error {
	fields := FieldErrors{}
	if err := ValidateUsername(username); err != nil {
		fields["username"] = err.Error()
	}
	if err := validatePassword(password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// ValidateUsername проверяет имя учетной записи: латинская буква в начале,
// далее буквы, цифры и '_'
func ValidateUsername(username string) error {
	switch n := len(username); {
	case n == 0:
		return fmt.Errorf("required")
	case n < MinUsernameLen || n > MaxUsernameLen:
		return fmt.Errorf("length must be between %d and %d", MinUsernameLen, MaxUsernameLen)
	}
	if !isLatinLetter(username[0]) {
		return fmt.Errorf("must start with a latin letter")
	}
	for i := 1; i < len(username); i++ {
		c := username[i]
		if !isLatinLetter(c) && !(c >= '0' && c <= '9') && c != '_' {
			return fmt.Errorf("unexpected character %q", rune(c))
		}
	}
	return nil
}

// длина пароля считается в символах, а не в байтах
func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n == 0:
		return fmt.Errorf("required")
	case n < MinPasswordLen:
		return fmt.Errorf("too short, need %d characters", MinPasswordLen)
	case n > MaxPasswordLen:
		return fmt.Errorf("too long, limit is %d characters", MaxPasswordLen)
	}
	return nil
}

func isLatinLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
