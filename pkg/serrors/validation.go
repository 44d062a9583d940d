package serrors

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ProcessValidatorErrors turns validator failures into field -> message pairs keyed by struct field name.
func ProcessValidatorErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid uuid", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// CheckStruct validates v with the shared validator and returns the field messages.
func CheckStruct(validate *validator.Validate, v any) (map[string]string, bool) {
	err := validate.Struct(v)
	if err == nil {
		return map[string]string{}, true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return ProcessValidatorErrors(ve), false
	}
	return map[string]string{"_": err.Error()}, false
}
