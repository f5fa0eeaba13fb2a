package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeKYCRequired   ErrorCode = "KYC_REQUIRED"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeStaleState    ErrorCode = "STALE_STATE"
	ErrCodeRequestFailed ErrorCode = "REQUEST_FAILED"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// DefaultUserMessage показывается пользователю, когда сервер не прислал текст ошибки.
const DefaultUserMessage = "Что-то пошло не так, попробуйте ещё раз"

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeKYCRequired:
		return http.StatusForbidden
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeStaleState:
		return http.StatusConflict
	case ErrCodeRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для чужих ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatusOf возвращает HTTP статус для ответа локального API.
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// UserMessage возвращает текст для уведомления пользователя: сообщение сервера
// или клиентской валидации, иначе fallback.
func UserMessage(err error, fallback string) string {
	if fallback == "" {
		fallback = DefaultUserMessage
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" && appErr.Code != ErrCodeInternal {
		return appErr.Message
	}
	return fallback
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsKYCRequired(err error) bool {
	return CodeOf(err) == ErrCodeKYCRequired
}

func IsStale(err error) bool {
	return CodeOf(err) == ErrCodeStaleState
}

// IsClientSide сообщает, что ошибка возникла до отправки запроса на сервер.
func IsClientSide(err error) bool {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeKYCRequired, ErrCodeForbidden, ErrCodeStaleState:
		var appErr *AppError
		return errors.As(err, &appErr) && appErr.Cause == nil
	}
	return false
}

var (
	ErrTradeNotFound = New(ErrCodeNotFound, "сделка не найдена")
	ErrUnauthorized  = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden     = New(ErrCodeForbidden, "недостаточно прав")
	ErrKYCRequired   = New(ErrCodeKYCRequired, "Для участия в сделках необходимо пройти верификацию KYC")
	ErrEmptyReason   = New(ErrCodeValidation, "Укажите причину отмены")
	ErrProofRequired = New(ErrCodeValidation, "Сначала загрузите подтверждение оплаты")
	ErrViewNotOpen   = New(ErrCodeValidation, "сделка не открыта")
)
