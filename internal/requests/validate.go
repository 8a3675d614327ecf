package requests

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"shop-backoffice/internal/apperrors"
	"shop-backoffice/internal/naming"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New()
	// Report fields by the names clients send.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}

	// keysegment: the value must still name a folder once normalized.
	if err := validate.RegisterValidation("keysegment", func(fl validator.FieldLevel) bool {
		return naming.Normalize(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	err := validate.RegisterTranslation("keysegment", trans,
		func(ut ut.Translator) error {
			return ut.Add("keysegment", "{0} must contain at least one letter or digit", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("keysegment", fe.Field())
			return msg
		},
	)
	if err != nil {
		panic(err)
	}
}

// Validate runs the struct tags of v and reports every failure as one
// ValidationFailed error with field-level messages.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Wrap(apperrors.ValidationFailed, "invalid request", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(trans))
		fields = append(fields, fieldPath(fe.Namespace()))
	}
	return apperrors.Validation(strings.Join(msgs, "; "), fields...)
}

// fieldPath drops the root struct and embedded struct names from a namespace.
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	out := parts[:0]
	for i, p := range parts {
		if i == 0 || p == "Common" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}
