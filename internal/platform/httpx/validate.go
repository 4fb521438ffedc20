package httpx

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// Validate runs struct validation and converts failures into the shared
// validation error so RespondError renders them as 400s.
func Validate(v *validator.Validate, form any) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fe.Field()+" failed on "+fe.Tag())
	}
	return shared.Validationf("%s", strings.Join(parts, "; "))
}
