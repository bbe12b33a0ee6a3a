package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the notempty tag registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("label"); name != "" {
				return name
			}
			return fld.Name
		})
		_ = validate.RegisterValidation("notempty", validateNotEmpty)
	})
	return validate
}

func validateNotEmpty(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// checkInput validates v and turns the first failure into an InvalidInput
// error. emptyMsg replaces the message for notempty and required failures.
func checkInput(v any, emptyMsg string) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "notempty", "required":
		return ErrInvalidInput.WithMessage(emptyMsg)
	case "max":
		return ErrInvalidInput.WithMessage(fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param()))
	default:
		return ErrInvalidInput.WithMessage(fmt.Sprintf("%s is invalid.", fe.Field()))
	}
}

type registerInput struct {
	Username string `validate:"notempty,max=50" label:"Username"`
	Email    string `validate:"notempty,max=255" label:"Email"`
	Password string `validate:"required" label:"Password"`
}

// QuoteInput carries raw form values; blank optional fields become NULL.
type QuoteInput struct {
	Content     string `json:"content" validate:"notempty" label:"Content"`
	Source      string `json:"source" validate:"max=255" label:"Source"`
	Author      string `json:"author" validate:"max=255" label:"Author"`
	Explanation string `json:"explanation" label:"Explanation"`
}

func (in QuoteInput) normalized() QuoteInput {
	return QuoteInput{
		Content:     strings.TrimSpace(in.Content),
		Source:      strings.TrimSpace(in.Source),
		Author:      strings.TrimSpace(in.Author),
		Explanation: strings.TrimSpace(in.Explanation),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
