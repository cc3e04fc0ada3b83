package switchcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/arzzra/echo_endpoint/pkg/media"
)

// Status код результата операции ядра и эндпоинтов.
// Ни одна операция эндпоинта не паникует за границу модуля: результат всегда
// сводится к статусу, а решение о завершении вызова принимает ядро.
type Status int

const (
	StatusSuccess Status = iota
	StatusFalse
	StatusTimeout
	StatusRestart
	StatusTerm
	StatusNotImpl
	StatusMemErr
	StatusBreak
	StatusGenErr
	StatusInUse
	StatusNotFound
	StatusIgnore
)

var statusNames = map[Status]string{
	StatusSuccess:  "SUCCESS",
	StatusFalse:    "FALSE",
	StatusTimeout:  "TIMEOUT",
	StatusRestart:  "RESTART",
	StatusTerm:     "TERM",
	StatusNotImpl:  "NOTIMPL",
	StatusMemErr:   "MEMERR",
	StatusBreak:    "BREAK",
	StatusGenErr:   "GENERR",
	StatusInUse:    "INUSE",
	StatusNotFound: "NOTFOUND",
	StatusIgnore:   "IGNORE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// CoreError ошибка ядра/эндпоинта со статусом.
// errors.Is сравнивает по статусу, поэтому эталонные ErrXxx подходят для
// проверки любой ошибки с тем же статусом.
type CoreError struct {
	Status    Status
	Op        string
	SessionID string
	Message   string
	Wrapped   error
}

func (e *CoreError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Status.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.SessionID != "" {
		msg = fmt.Sprintf("сессия %s: %s", e.SessionID, msg)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Status, msg, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Status, msg)
}

func (e *CoreError) Unwrap() error { return e.Wrapped }

func (e *CoreError) Is(target error) bool {
	if t, ok := target.(*CoreError); ok {
		return e.Status == t.Status
	}
	return false
}

// ErrorCode для структурированного логирования
func (e *CoreError) ErrorCode() string { return e.Status.String() }

// Эталонные ошибки для errors.Is
var (
	ErrFalse    = &CoreError{Status: StatusFalse}
	ErrTimeout  = &CoreError{Status: StatusTimeout}
	ErrNotImpl  = &CoreError{Status: StatusNotImpl}
	ErrBreak    = &CoreError{Status: StatusBreak}
	ErrGenErr   = &CoreError{Status: StatusGenErr}
	ErrInUse    = &CoreError{Status: StatusInUse}
	ErrNotFound = &CoreError{Status: StatusNotFound}
	ErrIgnore   = &CoreError{Status: StatusIgnore}
)

// NewError создает ошибку со статусом
func NewError(status Status, op, sessionID, message string) *CoreError {
	return &CoreError{Status: status, Op: op, SessionID: sessionID, Message: message}
}

// WrapError оборачивает ошибку со статусом
func WrapError(status Status, op, sessionID, message string, err error) *CoreError {
	return &CoreError{Status: status, Op: op, SessionID: sessionID, Message: message, Wrapped: err}
}

// StatusOf сводит любую ошибку к статусу
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}

	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Status
	}

	var mediaErr *media.MediaError
	if errors.As(err, &mediaErr) {
		switch mediaErr.Code {
		case media.ErrorCodeNotReady:
			return StatusInUse
		case media.ErrorCodeBreak:
			return StatusBreak
		case media.ErrorCodeTimeout:
			return StatusTimeout
		case media.ErrorCodeStreamNotFound:
			return StatusNotFound
		default:
			return StatusGenErr
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StatusTimeout
	}
	return StatusGenErr
}
