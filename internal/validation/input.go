// Package validation нормализует и проверяет текст, который пользователь
// вводит в интерфейсе, до отправки на сервер сделок.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// Константы валидации
const (
	MaxMessageLength             = 1000
	MaxCancelReasonLength        = 500
	MaxPaymentDetailsLength      = 1000
	MaxCustomPaymentMethodLength = 50
	MaxProofDescriptionLength    = 500
)

// Text обрезает пробелы по краям и убирает управляющие символы,
// оставляя переводы строк и табуляцию.
func Text(value string) string {
	value = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(value)
}

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return invalid("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return invalid("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateMessage проверяет текст сообщения чата.
func ValidateMessage(text string) (string, error) {
	text = Text(text)
	if text == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "Сообщение не может быть пустым")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", apperror.New(apperror.ErrCodeValidation, "Сообщение слишком длинное")
	}
	return text, nil
}

// ValidateCancelReason отклоняет пустую причину отмены.
func ValidateCancelReason(reason string) (string, error) {
	reason = Text(reason)
	if reason == "" {
		return "", apperror.ErrEmptyReason
	}
	if err := ValidateLength("причина отмены", reason, 0, MaxCancelReasonLength); err != nil {
		return "", err
	}
	return reason, nil
}

// Optional нормализует необязательное поле и проверяет только верхнюю границу.
func Optional(fieldName, value string, max int) (string, error) {
	value = Text(value)
	if err := ValidateLength(fieldName, value, 0, max); err != nil {
		return "", err
	}
	return value, nil
}

func invalid(format string, args ...any) error {
	return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf(format, args...))
}
