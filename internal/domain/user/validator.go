package user

import (
	"fmt"
	"net/mail"
	"unicode"
)

const (
	MaxEmailLen    = 254
	MinPasswordLen = 8
	// bcrypt не принимает пароли длиннее 72 байт
	MaxPasswordLen = 72
)

// Validator - интерфейс для валидации пользовательских данных
type Validator interface {
	ValidateRegister(email, password string) error
	ValidateEmail(email string) error
	ValidatePassword(password string) error
}

type CredentialsValidator struct {
	requireDigit  bool
	requireLetter bool
}

// NewCredentialsValidator создает новый валидатор
func NewCredentialsValidator() *CredentialsValidator {
	return &CredentialsValidator{
		requireDigit:  true,
		requireLetter: true,
	}
}

// ValidateRegister валидирует данные для регистрации
func (v *CredentialsValidator) ValidateRegister(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return fmt.Errorf("email validation failed: %w", err)
	}

	if err := v.ValidatePassword(password); err != nil {
		return fmt.Errorf("password validation failed: %w", err)
	}

	return nil
}

// ValidateEmail проверяет формат адреса
func (v *CredentialsValidator) ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must be at most %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email has invalid format")
	}

	return nil
}

// ValidatePassword валидирует пароль
func (v *CredentialsValidator) ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordLen)
	}

	hasLetter := false
	hasDigit := false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if v.requireLetter && !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}

	if v.requireDigit && !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}

	return nil
}
