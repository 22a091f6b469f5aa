package validate

import (
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// New returns a validator with the strongpwd rule registered: at least
// eight runes including an upper-case letter and a digit.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("strongpwd", func(fl validator.FieldLevel) bool {
		pwd := fl.Field().String()
		if len(pwd) < 8 {
			return false
		}
		var hasUpper, hasDigit bool
		for _, r := range pwd {
			if unicode.IsUpper(r) {
				hasUpper = true
			}
			if unicode.IsDigit(r) {
				hasDigit = true
			}
		}
		return utf8.RuneCountInString(pwd) >= 8 && hasUpper && hasDigit
	})
	return v
}
