// ============================================================================
// backend/internal/shared/validation.go
// Request validation and field-level error reporting
// ============================================================================

package shared

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FieldError describes one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var fieldLabels = map[string]string{
	"fullName":   "Full name",
	"rollNumber": "Roll number",
	"class":      "Class",
	"section":    "Section",
	"address":    "Address",
	"studentId":  "Student ID",
	"subject":    "Subject",
	"marks":      "Marks",
	"totalMarks": "Total marks",
	"username":   "Username",
	"password":   "Password",
}

// FieldLabel returns the human readable name of a JSON field
func FieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}

var messageOverrides = map[string]string{
	"required": "{0} is required",
	"notblank": "{0} is required",
	"mongodb":  "{0} is invalid",
	"min":      "{0} must be at least {1} characters",
	"gte":      "{0} must be at least {1}",
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func validatorInstance() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report JSON names, not Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ := uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		for tag, text := range messageOverrides {
			tag, text := tag, text
			_ = v.RegisterTranslation(tag, trans,
				func(t ut.Translator) error {
					return t.Add(tag, text, true)
				},
				func(t ut.Translator, fe validator.FieldError) string {
					msg, err := t.T(tag, FieldLabel(fe.Field()), fe.Param())
					if err != nil {
						return fe.Error()
					}
					return msg
				},
			)
		}

		validate = v
		translator = trans
	})
	return validate, translator
}

// ValidateStruct runs the struct's validate tags and returns the failed fields
func ValidateStruct(s interface{}) []FieldError {
	v, trans := validatorInstance()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fe.Translate(trans)})
	}
	return out
}

// ValidationStatus builds an InvalidArgument error carrying the field violations
func ValidationStatus(message string, fields []FieldError) error {
	st := status.New(codes.InvalidArgument, message)
	if len(fields) == 0 {
		return st.Err()
	}

	br := &errdetails.BadRequest{}
	for _, f := range fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       f.Field,
			Description: f.Message,
		})
	}

	detailed, err := st.WithDetails(br)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// FieldErrorsFromStatus extracts field violations attached by ValidationStatus
func FieldErrorsFromStatus(st *status.Status) []FieldError {
	var out []FieldError
	for _, detail := range st.Details() {
		br, ok := detail.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, v := range br.GetFieldViolations() {
			out = append(out, FieldError{Field: v.GetField(), Message: v.GetDescription()})
		}
	}
	return out
}
