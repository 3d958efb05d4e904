package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tjfontaine/roomstage/internal/core/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// notblank rejects empty and whitespace-only strings.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// validateRequest maps validator failures onto an invalid_request error.
func validateRequest(v *validator.Validate, req domain.StagingRequest) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ErrInvalidRequest("Invalid request").Wrap(err)
	}

	var missing, other []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "notblank", "required":
			missing = append(missing, fe.Field())
		case "max":
			other = append(other, fmt.Sprintf("%s: at most %s allowed", fe.Field(), fe.Param()))
		default:
			other = append(other, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}

	if len(missing) > 0 {
		details := "missing: " + strings.Join(missing, ", ")
		if len(other) > 0 {
			details += "; " + strings.Join(other, "; ")
		}
		return domain.ErrInvalidRequest("Missing required fields").WithDetails(details)
	}
	return domain.ErrInvalidRequest("Invalid request").WithDetails(strings.Join(other, "; "))
}
