package auth

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRegex    = regexp.MustCompile(`^(\+250|0)[7-9]\d{8}$`)
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	fullNameRegex = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	upperRegex    = regexp.MustCompile(`[A-Z]`)
	lowerRegex    = regexp.MustCompile(`[a-z]`)
	digitRegex    = regexp.MustCompile(`\d`)
	symbolRegex   = regexp.MustCompile(`[@$!%*?&]`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rwphone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("emailorphone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return emailRegex.MatchString(s) || phoneRegex.MatchString(s)
	})
	_ = v.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		return fullNameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("complexpassword", func(fl validator.FieldLevel) bool {
		pw := fl.Field().String()
		return upperRegex.MatchString(pw) && lowerRegex.MatchString(pw) &&
			digitRegex.MatchString(pw) && symbolRegex.MatchString(pw)
	})
	return v
}

// fieldMessages holds the form messages keyed by Struct.Field.tag.
var fieldMessages = map[string]string{
	"LoginRequest.Email.required":     "Email or phone number is required",
	"LoginRequest.Email.emailorphone": "Please enter a valid email or phone number",
	"LoginRequest.Password.required":  "Password must be at least 6 characters",
	"LoginRequest.Password.min":       "Password must be at least 6 characters",
	"LoginRequest.Password.max":       "Password must be less than 100 characters",

	"SignupRequest.FullName.required":        "Full name must be at least 2 characters",
	"SignupRequest.FullName.min":             "Full name must be at least 2 characters",
	"SignupRequest.FullName.max":             "Full name must be less than 100 characters",
	"SignupRequest.FullName.fullname":        "Full name can only contain letters and spaces",
	"SignupRequest.Telephone.required":       "Please enter a valid Rwandan phone number (07XXXXXXXX)",
	"SignupRequest.Telephone.rwphone":        "Please enter a valid Rwandan phone number (07XXXXXXXX)",
	"SignupRequest.Email.required":           "Please enter a valid email address",
	"SignupRequest.Email.email":              "Please enter a valid email address",
	"SignupRequest.Email.max":                "Email must be less than 255 characters",
	"SignupRequest.Password.required":        "Password must be at least 8 characters",
	"SignupRequest.Password.min":             "Password must be at least 8 characters",
	"SignupRequest.Password.max":             "Password must be less than 100 characters",
	"SignupRequest.Password.complexpassword": "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character",
	"SignupRequest.ConfirmPassword.eqfield":  "Passwords don't match",
	"SignupRequest.District.required":        "Please select a district",
	"SignupRequest.Sector.required":          "Please select a sector",

	"OAuthSignupRequest.FullName.required": "Full name must be at least 2 characters",
	"OAuthSignupRequest.FullName.min":      "Full name must be at least 2 characters",
	"OAuthSignupRequest.Email.required":    "Please enter a valid email address",
	"OAuthSignupRequest.Email.email":       "Please enter a valid email address",
}

// validateForm checks a request struct and returns the first form message.
func validateForm(form any) (string, bool) {
	err := validate.Struct(form)
	if err == nil {
		return "", true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error(), false
	}
	first := verrs[0]
	if msg, ok := fieldMessages[first.StructNamespace()+"."+first.Tag()]; ok {
		return msg, false
	}
	return strings.ToLower(first.Field()) + " is invalid", false
}
