package switchcore

import (
	"errors"
	"fmt"
)

// CallCause причина завершения или неудачи вызова (Q.850)
type CallCause int

const (
	CauseNone                   CallCause = 0
	CauseSuccess                CallCause = 142
	CauseNormalClearing         CallCause = 16
	CauseInvalidNumberFormat    CallCause = 28
	CauseDestinationOutOfOrder  CallCause = 27
	CauseNormalTemporaryFailure CallCause = 41
	CauseSwitchCongestion       CallCause = 42
	CauseChanNotImplemented     CallCause = 66
	CauseManagerRequest         CallCause = 503
)

func (c CallCause) String() string {
	switch c {
	case CauseNone:
		return "NONE"
	case CauseSuccess:
		return "SUCCESS"
	case CauseNormalClearing:
		return "NORMAL_CLEARING"
	case CauseInvalidNumberFormat:
		return "INVALID_NUMBER_FORMAT"
	case CauseDestinationOutOfOrder:
		return "DESTINATION_OUT_OF_ORDER"
	case CauseNormalTemporaryFailure:
		return "NORMAL_TEMPORARY_FAILURE"
	case CauseSwitchCongestion:
		return "SWITCH_CONGESTION"
	case CauseChanNotImplemented:
		return "CHAN_NOT_IMPLEMENTED"
	case CauseManagerRequest:
		return "MANAGER_REQUEST"
	default:
		return fmt.Sprintf("CAUSE(%d)", int(c))
	}
}

// CauseError неудача создания вызова с причиной
type CauseError struct {
	Cause   CallCause
	Message string
	Wrapped error
}

func (e *CauseError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Cause, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Cause, e.Message)
}

func (e *CauseError) Unwrap() error { return e.Wrapped }

func (e *CauseError) ErrorCode() string { return e.Cause.String() }

// CauseOf возвращает причину из цепочки ошибок; nil - CauseSuccess
func CauseOf(err error) CallCause {
	if err == nil {
		return CauseSuccess
	}
	var causeErr *CauseError
	if errors.As(err, &causeErr) {
		return causeErr.Cause
	}
	return CauseNormalTemporaryFailure
}
