package view

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"studylink/internal/studylink"
)

var draftValidator, draftTranslator = newDraftValidator()

// newDraftValidator returns a validator that names fields by their json tag
// and translates failures into English.
func newDraftValidator() (*validator.Validate, ut.Translator) {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(v, trans)
	return v, trans
}

// TrimDraft returns d with surrounding whitespace removed from every text field.
func TrimDraft(d studylink.Draft) studylink.Draft {
	for _, s := range []*string{&d.Name, &d.Subject, &d.Description, &d.MeetingDay, &d.MeetingTime, &d.Building, &d.Floor} {
		*s = strings.TrimSpace(*s)
	}
	return d
}

// ValidateDraft checks d and returns a map of field name to English message.
// The map is nil when d is valid.
func ValidateDraft(d studylink.Draft) map[string]string {
	err := draftValidator.Struct(TrimDraft(d))
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(draftTranslator)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}
