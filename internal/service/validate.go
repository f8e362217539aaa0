package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate caches struct metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names so messages match what the UI sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct checks the validate tags of s and returns the first violation
// as a *domain.ErrValidation.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}

	fe := fieldErrs[0]
	return &domain.ErrValidation{Field: fe.Field(), Message: fieldMessage(fe)}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Campo obrigatório: %s", fe.Field())
	case "email":
		return "E-mail inválido"
	case "oneof":
		return fmt.Sprintf("Valor inválido para %s", fe.Field())
	default:
		return fmt.Sprintf("Campo inválido: %s", fe.Field())
	}
}
