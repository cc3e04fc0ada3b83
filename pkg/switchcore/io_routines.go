package switchcore

import (
	"context"
	"fmt"

	"github.com/arzzra/echo_endpoint/pkg/media"
)

// Signal сигнал, доставляемый эндпоинту через KillChannel
type Signal int

const (
	SignalNone Signal = iota
	SignalKill
	SignalXfer
	SignalBreak
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "NONE"
	case SignalKill:
		return "KILL"
	case SignalXfer:
		return "XFER"
	case SignalBreak:
		return "BREAK"
	default:
		return fmt.Sprintf("SIGNAL(%d)", int(s))
	}
}

// MessageID тип межсессионного сообщения
type MessageID int

const (
	MessageIndicateAnswer MessageID = iota
	MessageIndicateProgress
	MessageIndicateRinging
	MessageIndicateBridge
	MessageIndicateUnbridge
	MessageIndicateHold
	MessageIndicateUnhold
	MessageIndicateDisplay
)

// Message управляющее сообщение сессии
type Message struct {
	ID        MessageID
	From      string
	StringArg string
}

// Event событие, адресованное сессии
type Event struct {
	Name    string
	Headers map[string]string
	Body    string
}

// Direction направление вызова
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

func (d Direction) String() string {
	if d == DirectionOutbound {
		return "outbound"
	}
	return "inbound"
}

// OriginateFlag флаги создания исходящего вызова
type OriginateFlag uint32

const (
	OriginateFlagNone OriginateFlag = 0
	// OriginateFlagNoLimits сессия не учитывается в MaxSessions
	OriginateFlagNoLimits OriginateFlag = 1 << 0
)

// VarOriginationUUID переменная запроса с заранее заданным uuid новой сессии
const VarOriginationUUID = "origination_uuid"

// OutgoingRequest запрос на создание исходящего канала
type OutgoingRequest struct {
	// Session инициирующая сессия, может быть nil
	Session *Session
	// Variables переменные запроса (origination_uuid и прочие)
	Variables map[string]string
	// Profile профиль для нового канала, может быть nil
	Profile *CallerProfile
	Flags   OriginateFlag
}

// IORoutines набор операций, которые эндпоинт предоставляет ядру.
// Ядро вызывает их параллельно для разных сессий, но последовательно для
// одной сессии.
type IORoutines interface {
	// OutgoingChannel создает новую исходящую сессию эндпоинта
	OutgoingChannel(ctx context.Context, req *OutgoingRequest) (*Session, error)

	ReadFrame(ctx context.Context, s *Session, flags media.IOFlag, streamID int) (*media.Frame, error)
	WriteFrame(ctx context.Context, s *Session, frame *media.Frame, flags media.IOFlag, streamID int) error

	// KillChannel доставляет сигнал (break - мягкое прерывание чтения,
	// kill - закрытие медиа транспорта)
	KillChannel(s *Session, sig Signal) error

	SendDTMF(s *Session, dtmf media.DTMF) error
	ReceiveMessage(s *Session, msg *Message) error
	ReceiveEvent(s *Session, ev *Event) error

	ReadVideoFrame(ctx context.Context, s *Session, flags media.IOFlag, streamID int) (*media.Frame, error)
	WriteVideoFrame(ctx context.Context, s *Session, frame *media.Frame, flags media.IOFlag, streamID int) error

	// JitterBuffer jitter buffer медиа подсистемы для сессии или nil
	JitterBuffer(s *Session, t media.Type) *media.JitterBuffer
}

// StateHandler необязательная операция: уведомление о смене состояния канала
type StateHandler interface {
	StateChange(s *Session, from, to ChannelState)
}
