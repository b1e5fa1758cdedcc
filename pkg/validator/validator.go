package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/vetclinic-api/pkg/errors"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

// FieldError describes one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required":   "is required",
	"email":      "must be a valid email",
	"max":        "is too long",
	"min":        "is too short",
	"oneof":      "has an unsupported value",
	"party_role": "must be one of client, veterinarian, secretary",
	"e164ish":    "must contain digits and may start with +",
}

type validator struct {
	engine *playground.Validate
}

func New() Validator {
	engine := playground.New(playground.WithRequiredStructEnabled())
	engine.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = engine.RegisterValidation("party_role", func(fl playground.FieldLevel) bool {
		switch fl.Field().String() {
		case "client", "veterinarian", "secretary":
			return true
		}
		return false
	})
	_ = engine.RegisterValidation("e164ish", func(fl playground.FieldLevel) bool {
		s := strings.TrimPrefix(fl.Field().String(), "+")
		if s == "" {
			return false
		}
		for _, r := range s {
			if (r < '0' || r > '9') && r != ' ' && r != '-' {
				return false
			}
		}
		return true
	})

	return &validator{engine: engine}
}

// Validate returns a bad request AppError listing every failed field
func (v *validator) Validate(obj interface{}) error {
	err := v.engine.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewBadRequest("invalid request", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: msg})
		parts = append(parts, fe.Field()+" "+msg)
	}

	return errors.NewBadRequest("validation failed: "+strings.Join(parts, "; "), err).
		WithDetail("fields", fields)
}
