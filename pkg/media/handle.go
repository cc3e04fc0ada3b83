package media

import (
	"context"
	"sync"

	"github.com/pion/sdp/v3"
)

// Handle медиа handle сессии: согласованные параметры, потоки по типам,
// способ передачи DTMF. Создается при подключении эндпоинта к сессии и
// уничтожается ядром вместе с сессией.
type Handle struct {
	sessionID string
	params    Params
	remote    *sdp.SessionDescription

	mu        sync.RWMutex
	streams   map[Type]*Stream
	dtmfType  DTMFType
	destroyed bool
}

// NewHandle создает handle и по потоку на каждый включенный тип медиа.
// При ошибке создания транспорта уже созданные потоки закрываются.
func NewHandle(sessionID string, params Params, factory TransportFactory) (*Handle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		factory = LoopbackFactory(0)
	}

	h := &Handle{
		sessionID: sessionID,
		params:    params,
		streams:   make(map[Type]*Stream, len(Types)),
		dtmfType:  DTMFTypeNone,
	}

	if params.RemoteSDP != "" {
		remote, err := ParseSessionDescription(params.RemoteSDP)
		if err != nil {
			return nil, err
		}
		h.remote = remote
	}

	for _, t := range Types {
		codec, enabled := params.codec(t)
		if !enabled {
			continue
		}
		transport, err := factory(sessionID, t)
		if err != nil {
			h.Destroy()
			return nil, streamError(ErrorCodeTransportFailed, sessionID, t, "не удалось создать транспорт", err)
		}
		h.streams[t] = newStream(sessionID, t, codec, params.PTime, transport, params.JitterDepth, params.RTPTimeout)
	}

	return h, nil
}

// SessionID сессия, которой принадлежит handle
func (h *Handle) SessionID() string { return h.sessionID }

// Params параметры, с которыми создан handle
func (h *Handle) Params() Params { return h.params }

// Stream поток указанного типа или nil
func (h *Handle) Stream(t Type) *Stream {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.destroyed {
		return nil
	}
	return h.streams[t]
}

// Ready медиа указанного типа готово к обмену кадрами
func (h *Handle) Ready(t Type) bool {
	stream := h.Stream(t)
	return stream != nil && stream.Ready()
}

// ReadFrame читает кадр из потока. Поддерживается только stream id 0.
func (h *Handle) ReadFrame(ctx context.Context, flags IOFlag, streamID int, t Type) (*Frame, error) {
	stream, err := h.lookup(streamID, t)
	if err != nil {
		return nil, err
	}
	return stream.Read(ctx, flags)
}

// WriteFrame пишет кадр в поток
func (h *Handle) WriteFrame(frame *Frame, flags IOFlag, streamID int, t Type) error {
	stream, err := h.lookup(streamID, t)
	if err != nil {
		return err
	}
	return stream.Write(frame)
}

// Break прерывает блокирующее чтение потока
func (h *Handle) Break(t Type) {
	if stream := h.Stream(t); stream != nil {
		stream.Break()
	}
}

// KillSocket закрывает транспорт потока
func (h *Handle) KillSocket(t Type) error {
	if stream := h.Stream(t); stream != nil {
		return stream.Kill()
	}
	return nil
}

// JitterBuffer буфер потока или nil
func (h *Handle) JitterBuffer(t Type) *JitterBuffer {
	if stream := h.Stream(t); stream != nil {
		return stream.JitterBuffer()
	}
	return nil
}

// NegotiateDTMF выбирает способ передачи DTMF и запоминает его
func (h *Handle) NegotiateDTMF(preferred string) DTMFType {
	t := NegotiateDTMFType(h.remote, preferred)
	h.mu.Lock()
	h.dtmfType = t
	h.mu.Unlock()
	return t
}

// DTMFType согласованный способ передачи DTMF
func (h *Handle) DTMFType() DTMFType {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dtmfType
}

// Destroy закрывает все потоки. Повторный вызов безопасен.
func (h *Handle) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	streams := h.streams
	h.mu.Unlock()

	for _, stream := range streams {
		stream.Kill()
	}
}

// Destroyed handle уже уничтожен
func (h *Handle) Destroyed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.destroyed
}

func (h *Handle) lookup(streamID int, t Type) (*Stream, error) {
	if streamID != 0 {
		return nil, streamError(ErrorCodeStreamNotFound, h.sessionID, t, "неизвестный stream id", nil)
	}
	stream := h.Stream(t)
	if stream == nil {
		return nil, streamError(ErrorCodeNotReady, h.sessionID, t, "поток не создан", nil)
	}
	return stream, nil
}
