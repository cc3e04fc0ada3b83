package media

import (
	"errors"
	"fmt"
)

// MediaErrorCode определяет типизированные коды ошибок медиа подсистемы.
type MediaErrorCode int

const (
	// Ошибки готовности и жизненного цикла потока
	ErrorCodeNotReady MediaErrorCode = iota + 1000
	ErrorCodeBreak
	ErrorCodeClosed
	ErrorCodeTimeout
	ErrorCodeStreamNotFound

	// Ошибки данных
	ErrorCodeInvalidFrame
	ErrorCodeInvalidParams
	ErrorCodeBufferFull

	// Ошибки транспорта и согласования
	ErrorCodeTransportFailed
	ErrorCodeSDPInvalid
	ErrorCodeHandleExists
)

// String возвращает строковое представление кода ошибки
func (code MediaErrorCode) String() string {
	switch code {
	case ErrorCodeNotReady:
		return "NotReady"
	case ErrorCodeBreak:
		return "Break"
	case ErrorCodeClosed:
		return "Closed"
	case ErrorCodeTimeout:
		return "Timeout"
	case ErrorCodeStreamNotFound:
		return "StreamNotFound"
	case ErrorCodeInvalidFrame:
		return "InvalidFrame"
	case ErrorCodeInvalidParams:
		return "InvalidParams"
	case ErrorCodeBufferFull:
		return "BufferFull"
	case ErrorCodeTransportFailed:
		return "TransportFailed"
	case ErrorCodeSDPInvalid:
		return "SDPInvalid"
	case ErrorCodeHandleExists:
		return "HandleExists"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// MediaError базовая структура ошибок медиа подсистемы.
// Сравнение через errors.Is выполняется по коду.
type MediaError struct {
	Code      MediaErrorCode
	Message   string
	SessionID string
	MediaType Type
	Wrapped   error
}

// Error реализует интерфейс error
func (e *MediaError) Error() string {
	msg := e.Message
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("[медиа:%s] сессия %s: %s", e.Code, e.SessionID, msg)
	}
	return fmt.Sprintf("[медиа:%s] %s", e.Code, msg)
}

// Unwrap возвращает обернутую ошибку
func (e *MediaError) Unwrap() error {
	return e.Wrapped
}

// Is сравнивает ошибки по коду
func (e *MediaError) Is(target error) bool {
	if t, ok := target.(*MediaError); ok {
		return e.Code == t.Code
	}
	return false
}

// ErrorCode для структурированного логирования
func (e *MediaError) ErrorCode() string {
	return e.Code.String()
}

// Эталонные ошибки для errors.Is
var (
	ErrNotReady       = &MediaError{Code: ErrorCodeNotReady, Message: "медиа не готово"}
	ErrBreak          = &MediaError{Code: ErrorCodeBreak, Message: "чтение прервано"}
	ErrClosed         = &MediaError{Code: ErrorCodeClosed, Message: "транспорт закрыт"}
	ErrTimeout        = &MediaError{Code: ErrorCodeTimeout, Message: "таймаут ожидания пакета"}
	ErrStreamNotFound = &MediaError{Code: ErrorCodeStreamNotFound, Message: "поток не найден"}
	ErrBufferFull     = &MediaError{Code: ErrorCodeBufferFull, Message: "буфер переполнен"}
)

// NewMediaError создает ошибку с кодом
func NewMediaError(code MediaErrorCode, sessionID, message string) *MediaError {
	return &MediaError{Code: code, SessionID: sessionID, Message: message}
}

// WrapMediaError оборачивает существующую ошибку в MediaError
func WrapMediaError(code MediaErrorCode, sessionID, message string, err error) *MediaError {
	return &MediaError{
		Code:      code,
		Message:   message,
		SessionID: sessionID,
		Wrapped:   err,
	}
}

// HasErrorCode проверяет, содержит ли цепочка ошибок указанный код
func HasErrorCode(err error, code MediaErrorCode) bool {
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return mediaErr.Code == code
	}
	return false
}

func streamError(code MediaErrorCode, sessionID string, t Type, message string, err error) *MediaError {
	return &MediaError{
		Code:      code,
		Message:   message,
		SessionID: sessionID,
		MediaType: t,
		Wrapped:   err,
	}
}
