package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidInput = errors.New("validation: invalid input")

// Error lists the offending fields with a readable message for each.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return ErrInvalidInput }

// Struct validates command and query messages against their `validate` tags.
type Struct struct {
	validate *validator.Validate
}

func New() *Struct {
	return &Struct{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *Struct) Validate(ctx context.Context, message any) error {
	err := s.validate.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// non-struct messages carry no rules
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fieldPath(fe)] = describe(fe)
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Minimum is %s", fe.Param())
	case "max":
		return fmt.Sprintf("Maximum is %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("Invalid %s field", fe.Field())
	}
}
