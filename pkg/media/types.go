package media

import (
	"fmt"
	"time"

	"github.com/pion/rtp"
)

// Type тип медиа потока сессии
type Type int

const (
	TypeAudio Type = iota
	TypeVideo
)

// Types перечисляет все поддерживаемые типы в порядке обхода
var Types = []Type{TypeAudio, TypeVideo}

func (t Type) String() string {
	switch t {
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// IOFlag флаги операций чтения/записи кадра
type IOFlag uint32

const (
	IOFlagNone IOFlag = 0
	// IOFlagNoBlock - не ждать данных, если очередь пуста
	IOFlagNoBlock IOFlag = 1 << 0
	// IOFlagSingleRead - одна попытка чтения из транспорта, без дозаполнения jitter buffer
	IOFlagSingleRead IOFlag = 1 << 1
)

// FrameFlag флаги кадра
type FrameFlag uint32

const (
	FrameFlagRTP FrameFlag = 1 << iota
	FrameFlagCNG
	FrameFlagMarker
)

// Frame медиа кадр, проходящий через сессию.
// Payload не интерпретируется ни ядром, ни эндпоинтами.
type Frame struct {
	Type        Type
	Payload     []byte
	PayloadType uint8
	Codec       string
	// Samples количество отсчетов в кадре; 0 - вычислить по ptime потока
	Samples uint32
	Flags   FrameFlag
	// Packet исходный RTP пакет (заполняется при чтении)
	Packet *rtp.Packet
}

// HasFlag проверяет наличие флага
func (f *Frame) HasFlag(flag FrameFlag) bool {
	return f.Flags&flag != 0
}

// CodecParams параметры кодека потока
type CodecParams struct {
	Name        string
	PayloadType uint8
	ClockRate   uint32
}

// DefaultAudioCodec G.711 µ-law
func DefaultAudioCodec() CodecParams {
	return CodecParams{Name: "PCMU", PayloadType: 0, ClockRate: 8000}
}

// DefaultVideoCodec VP8 с динамическим payload type
func DefaultVideoCodec() CodecParams {
	return CodecParams{Name: "VP8", PayloadType: 96, ClockRate: 90000}
}

// Params параметры медиа handle сессии
type Params struct {
	PTime time.Duration
	Audio CodecParams
	// Video nil - видео поток не создается
	Video *CodecParams
	// JitterDepth глубина jitter buffer в пакетах; 0 - без буфера
	JitterDepth int
	// RTPTimeout максимальное ожидание пакета при чтении; 0 - без ограничения
	RTPTimeout time.Duration
	// RemoteSDP описание удаленной стороны, если уже известно
	RemoteSDP       string
	LocalIP         string
	DTMFPayloadType uint8
}

// DefaultParams возвращает параметры по умолчанию: PCMU/20ms, без видео
func DefaultParams() Params {
	return Params{
		PTime:           20 * time.Millisecond,
		Audio:           DefaultAudioCodec(),
		LocalIP:         "127.0.0.1",
		DTMFPayloadType: 101,
	}
}

// Validate проверяет параметры
func (p Params) Validate() error {
	if p.PTime <= 0 {
		return NewMediaError(ErrorCodeInvalidParams, "", "ptime должен быть положительным")
	}
	if p.Audio.ClockRate == 0 {
		return NewMediaError(ErrorCodeInvalidParams, "", "не задан clock rate аудио кодека")
	}
	if p.Video != nil && p.Video.ClockRate == 0 {
		return NewMediaError(ErrorCodeInvalidParams, "", "не задан clock rate видео кодека")
	}
	if p.JitterDepth < 0 {
		return NewMediaError(ErrorCodeInvalidParams, "", "глубина jitter buffer не может быть отрицательной")
	}
	return nil
}

func (p Params) codec(t Type) (CodecParams, bool) {
	switch t {
	case TypeAudio:
		return p.Audio, true
	case TypeVideo:
		if p.Video == nil {
			return CodecParams{}, false
		}
		return *p.Video, true
	}
	return CodecParams{}, false
}
