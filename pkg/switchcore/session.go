package switchcore

import (
	"context"
	"sync"
	"time"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
)

// Session вызов внутри ядра. Ядро владеет сессией, каналом и медиа handle;
// эндпоинт хранит на сессии собственное состояние через SetPrivate.
type Session struct {
	uuid      string
	direction Direction
	flags     OriginateFlag
	endpoint  *EndpointInterface
	channel   *Channel
	core      *Core
	createdAt time.Time
	log       logging.Logger

	mu          sync.RWMutex
	private     any
	mediaHandle *media.Handle
	destroyed   bool
}

func (s *Session) UUID() string { return s.uuid }
func (s *Session) Direction() Direction { return s.direction }
func (s *Session) Flags() OriginateFlag { return s.flags }
func (s *Session) Endpoint() *EndpointInterface { return s.endpoint }
func (s *Session) Channel() *Channel { return s.channel }
func (s *Session) Core() *Core { return s.core }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Logger() logging.Logger { return s.log }

// Context добавляет uuid сессии к полям логирования контекста
func (s *Session) Context(ctx context.Context) context.Context {
	return logging.ContextWithFields(ctx, logging.String("uuid", s.uuid))
}

// SetPrivate сохраняет состояние эндпоинта на сессии
func (s *Session) SetPrivate(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.private = v
}

// Private состояние эндпоинта или nil
func (s *Session) Private() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.private
}

// MediaHandle медиа handle сессии или nil
func (s *Session) MediaHandle() *media.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mediaHandle
}

func (s *Session) setMediaHandle(h *media.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mediaHandle != nil || s.destroyed {
		return false
	}
	s.mediaHandle = h
	return true
}

// Destroyed сессия уже уничтожена ядром
func (s *Session) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// markDestroyed возвращает false при повторном вызове
func (s *Session) markDestroyed() (*media.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, false
	}
	s.destroyed = true
	h := s.mediaHandle
	s.mediaHandle = nil
	s.private = nil
	return h, true
}

// routines эндпоинта сессии; для уничтоженной сессии ошибка NotFound
func (s *Session) routines(op string) (IORoutines, error) {
	if s.Destroyed() {
		return nil, NewError(StatusNotFound, op, s.uuid, "сессия уничтожена")
	}
	if s.endpoint == nil || s.endpoint.Routines == nil {
		return nil, NewError(StatusNotImpl, op, s.uuid, "у сессии нет эндпоинта")
	}
	return s.endpoint.Routines, nil
}

// surface приводит ошибку эндпоинта к *CoreError
func (s *Session) surface(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*CoreError); ok {
		return err
	}
	return WrapError(StatusOf(err), op, s.uuid, "", err)
}

// ReadFrame читает аудио кадр через эндпоинт
func (s *Session) ReadFrame(ctx context.Context, flags media.IOFlag, streamID int) (*media.Frame, error) {
	r, err := s.routines("read_frame")
	if err != nil {
		return nil, err
	}
	frame, err := r.ReadFrame(ctx, s, flags, streamID)
	s.core.metrics.frame(media.TypeAudio.String(), "read", err)
	return frame, s.surface("read_frame", err)
}

// WriteFrame пишет аудио кадр через эндпоинт
func (s *Session) WriteFrame(ctx context.Context, frame *media.Frame, flags media.IOFlag, streamID int) error {
	r, err := s.routines("write_frame")
	if err != nil {
		return err
	}
	err = r.WriteFrame(ctx, s, frame, flags, streamID)
	s.core.metrics.frame(media.TypeAudio.String(), "write", err)
	return s.surface("write_frame", err)
}

// ReadVideoFrame читает видео кадр через эндпоинт
func (s *Session) ReadVideoFrame(ctx context.Context, flags media.IOFlag, streamID int) (*media.Frame, error) {
	r, err := s.routines("read_video_frame")
	if err != nil {
		return nil, err
	}
	frame, err := r.ReadVideoFrame(ctx, s, flags, streamID)
	s.core.metrics.frame(media.TypeVideo.String(), "read", err)
	return frame, s.surface("read_video_frame", err)
}

// WriteVideoFrame пишет видео кадр через эндпоинт
func (s *Session) WriteVideoFrame(ctx context.Context, frame *media.Frame, flags media.IOFlag, streamID int) error {
	r, err := s.routines("write_video_frame")
	if err != nil {
		return err
	}
	err = r.WriteVideoFrame(ctx, s, frame, flags, streamID)
	s.core.metrics.frame(media.TypeVideo.String(), "write", err)
	return s.surface("write_video_frame", err)
}

// Kill доставляет сигнал эндпоинту
func (s *Session) Kill(sig Signal) error {
	r, err := s.routines("kill_channel")
	if err != nil {
		return err
	}
	return s.surface("kill_channel", r.KillChannel(s, sig))
}

func (s *Session) SendDTMF(dtmf media.DTMF) error {
	if !media.ValidDigit(dtmf.Digit) {
		return NewError(StatusFalse, "send_dtmf", s.uuid, "недопустимая DTMF цифра "+string(dtmf.Digit))
	}
	r, err := s.routines("send_dtmf")
	if err != nil {
		return err
	}
	return s.surface("send_dtmf", r.SendDTMF(s, dtmf))
}

func (s *Session) ReceiveMessage(msg *Message) error {
	r, err := s.routines("receive_message")
	if err != nil {
		return err
	}
	return s.surface("receive_message", r.ReceiveMessage(s, msg))
}

func (s *Session) ReceiveEvent(ev *Event) error {
	r, err := s.routines("receive_event")
	if err != nil {
		return err
	}
	return s.surface("receive_event", r.ReceiveEvent(s, ev))
}

// JitterBuffer jitter buffer сессии, предоставленный эндпоинтом
func (s *Session) JitterBuffer(t media.Type) *media.JitterBuffer {
	r, err := s.routines("get_jitter_buffer")
	if err != nil {
		return nil
	}
	return r.JitterBuffer(s, t)
}

// onStateChange вызывается каналом после перехода
func (s *Session) onStateChange(_ *Channel, from, to ChannelState) {
	s.core.metrics.stateTransition.WithLabelValues(to.String()).Inc()
	s.log.Debug(context.Background(), "смена состояния канала",
		logging.String("from", from.String()),
		logging.String("to", to.String()),
	)
	if s.endpoint == nil {
		return
	}
	if h, ok := s.endpoint.Routines.(StateHandler); ok {
		h.StateChange(s, from, to)
	}
}
