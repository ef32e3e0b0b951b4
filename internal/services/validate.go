package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/aggregates"
	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
)

// inputValidate checks service inputs before any store access.
var inputValidate *validator.Validate

func init() {
	inputValidate = validator.New(validator.WithRequiredStructEnabled())
	inputValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// validateInput returns a CodeValidation error naming every failed field.
func validateInput(op string, in any) error {
	err := inputValidate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domainagg.NewError(domainagg.CodeValidation, op, err.Error(), errors.Join(aggregates.ErrValidation, err))
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + " failed " + fe.Tag()
		if p := fe.Param(); p != "" {
			msg += "=" + p
		}
		parts = append(parts, msg)
	}
	return domainagg.NewError(domainagg.CodeValidation, op, strings.Join(parts, "; "), errors.Join(aggregates.ErrValidation, err))
}
