package validator

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Validator is a struct that provides methods for struct validation using the underlying validator library.
type Validator struct {
	cli *validator.Validate
}

// ValidationError represents an error encountered during validation of a struct field.
type ValidationError struct {
	Field   string
	Message interface{}
}

var (
	usernameChars = regexp.MustCompile(`^[a-zA-Z0-9_.]*$`)
	hasLetter     = regexp.MustCompile(`[a-zA-Z]`)
	hasDigit      = regexp.MustCompile(`\d`)
)

const minUsernameLen = 2

// messages replaces the library's generic text for tags users see at signup.
var messages = map[string]string{
	"username": "Only letters, numbers, underscores, and periods are allowed, with at least 2 characters",
	"password": "Include at least 1 letter and 1 number in your password",
	"email":    "Please enter a valid email",
}

func validUsername(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) >= minUsernameLen && usernameChars.MatchString(s)
}

func validPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return hasLetter.MatchString(s) && hasDigit.MatchString(s)
}

func (v *Validator) formatError(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error()}}
	}

	errs := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		var msg interface{} = fe.Error()
		if m, ok := messages[fe.Tag()]; ok {
			msg = m
		}
		errs = append(errs, ValidationError{
			Field:   fe.StructField(),
			Message: msg,
		})
	}

	return errs
}

// ValidateStruct validates the provided struct using the underlying validator and returns a slice of validation errors.
func (v *Validator) ValidateStruct(s interface{}) []ValidationError {
	err := v.cli.Struct(s)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// Validate checks the provided value against the specified validation tags and returns a slice of validation errors.
func (v *Validator) Validate(value interface{}, tag string) []ValidationError {
	err := v.cli.Var(value, tag)
	if err != nil {
		return v.formatError(err)
	}
	return nil
}

// New initializes and returns a new instance of the Validator with the
// account rules registered as the "username" and "password" tags.
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag or nil func.
	_ = cli.RegisterValidation("username", validUsername)
	_ = cli.RegisterValidation("password", validPassword)
	return &Validator{
		cli: cli,
	}
}
