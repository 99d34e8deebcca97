package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/shopspring/decimal"
)

// Decimal comparison tags. decimal.Decimal fields are validated on their exact
// string form, so "dgt=0" never goes through a float.
const (
	tagDecimalGT  = "dgt"
	tagDecimalGTE = "dgte"
	tagDecimalLTE = "dlte"
)

var customTexts = map[string]string{
	tagDecimalGT:  "{0} must be greater than {1}",
	tagDecimalGTE: "{0} must be greater than or equal to {1}",
	tagDecimalLTE: "{0} must be less than or equal to {1}",
}

// Validator validates service inputs and reports failures as field errors.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

var (
	defaultOnce sync.Once
	defaultVal  *Validator
)

// Default returns the shared validator used by the services.
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultVal = New("validate")
	})
	return defaultVal
}

// New creates a validator reading rules from the given struct tag.
func New(tagName string) *Validator {
	v := validator.New()
	v.SetTagName(tagName)
	return &Validator{validate: v, trans: Register(v)}
}

// Register installs JSON field naming, decimal support, the decimal rules and
// English translations on v. It is also applied to gin's binding engine.
func Register(v *validator.Validate) ut.Translator {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation(tagDecimalGT, compareDecimal(func(c int) bool { return c > 0 }))
	_ = v.RegisterValidation(tagDecimalGTE, compareDecimal(func(c int) bool { return c >= 0 }))
	_ = v.RegisterValidation(tagDecimalLTE, compareDecimal(func(c int) bool { return c <= 0 }))

	for tag, text := range customTexts {
		registerTranslation(v, trans, tag, text)
	}
	return trans
}

func compareDecimal(ok func(int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return ok(value.Cmp(bound))
	}
}

func registerTranslation(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Struct validates s and returns an *apperror.AppError listing every failing field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	return FromError(err, v.trans)
}

// FromError converts validator errors into an apperror validation error.
func FromError(err error, trans ut.Translator) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewBadRequestError(err.Error())
	}
	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Error()
		if trans != nil {
			msg = fe.Translate(trans)
		}
		fields = append(fields, apperror.FieldError{Field: fe.Field(), Message: msg})
	}
	return apperror.NewValidationError(fields)
}
