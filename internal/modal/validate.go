package modal

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Тексты ошибок локальной валидации.
const (
	MsgInvalidEmail    = "Please enter a valid email address."
	MsgShortPassword   = "Password must be at least 6 characters."
	MsgMissingName     = "Please enter your name."
	basicEmailRuleName = "basic_email"
)

// basicEmail — форма local@domain без пробелов.
var basicEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+$`)

// ValidationError — отказ локальной валидации по конкретному полю.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type signInInput struct {
	Email    string `validate:"required,basic_email"`
	Password string `validate:"min=6"`
}

type registerInput struct {
	Email       string `validate:"required,basic_email"`
	Password    string `validate:"min=6"`
	DisplayName string `validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Имя правила фиксировано, ошибка регистрации невозможна.
	_ = v.RegisterValidation(basicEmailRuleName, func(fl validator.FieldLevel) bool {
		return basicEmail.MatchString(fl.Field().String())
	})

	return v
}

// check проверяет поля формы; возвращает первую ошибку в порядке полей.
func (m *Modal) check(mode Mode, in Fields) error {
	var err error
	if mode == ModeRegister {
		err = m.validate.Struct(registerInput{Email: in.Email, Password: in.Password, DisplayName: in.DisplayName})
	} else {
		err = m.validate.Struct(signInInput{Email: in.Email, Password: in.Password})
	}

	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}

	return fieldError(ves[0])
}

func fieldError(fe validator.FieldError) *ValidationError {
	switch fe.Field() {
	case "Email":
		return &ValidationError{Field: "email", Message: MsgInvalidEmail}
	case "Password":
		return &ValidationError{Field: "password", Message: MsgShortPassword}
	default:
		return &ValidationError{Field: "display_name", Message: MsgMissingName}
	}
}
