package progress

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/organquest/backend/core"
)

var (
	organTag  = "organ"
	organText = "unknown organ name"

	quizTypeTag  = "quiztype"
	quizTypeText = "quiz type must be multiple-choice, timed-challenge or memory-matching"
)

// InitValidators registers this package's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(organTag, func(fl validator.FieldLevel) bool {
		return IsValidOrgan(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, organTag, organText)

	_ = validate.RegisterValidation(quizTypeTag, func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, qt := range QuizTypes {
			if val == qt {
				return true
			}
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, quizTypeTag, quizTypeText)
}
