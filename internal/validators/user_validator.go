package validators

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	phoneFormatting = regexp.MustCompile(`[\s().-]`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

func init() {
	validate.RegisterValidation("phone_number", validatePhoneNumber)
	validate.RegisterValidation("password", validatePassword)
}

// NormalizePhoneNumber strips spacing and punctuation, keeping a leading +.
func NormalizePhoneNumber(phone string) string {
	return phoneFormatting.ReplaceAllString(strings.TrimSpace(phone), "")
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePhoneNumber(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(NormalizePhoneNumber(fl.Field().String()))
}

// validatePassword counts bytes, not runes.
func validatePassword(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPasswordBytes
}
