package switchcore

import (
	"context"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
)

const (
	// VarDTMFType переменная канала с предпочтительным способом передачи DTMF
	VarDTMFType = "dtmf_type"
	// VarRemoteSDP переменная канала с SDP удаленной стороны
	VarRemoteSDP = "switch_r_sdp"
)

// MediaCore медиа подсистема ядра, адресуемая по сессии. Handle хранится на
// сессии и уничтожается ядром вместе с ней.
type MediaCore struct {
	core    *Core
	factory media.TransportFactory
}

func newMediaCore(c *Core, factory media.TransportFactory) *MediaCore {
	return &MediaCore{core: c, factory: factory}
}

// NewHandle создает медиа handle и устанавливает его на сессию.
// У сессии может быть только один handle. Если params не содержат SDP
// удаленной стороны, он берется из переменной канала switch_r_sdp.
func (mc *MediaCore) NewHandle(s *Session, params media.Params) (*media.Handle, error) {
	if s.MediaHandle() != nil {
		return nil, media.NewMediaError(media.ErrorCodeHandleExists, s.UUID(), "у сессии уже есть медиа handle")
	}
	if params.RemoteSDP == "" {
		params.RemoteSDP = s.Channel().Variable(VarRemoteSDP)
	}
	h, err := media.NewHandle(s.UUID(), params, mc.factory)
	if err != nil {
		return nil, err
	}
	if !s.setMediaHandle(h) {
		h.Destroy()
		return nil, media.NewMediaError(media.ErrorCodeHandleExists, s.UUID(), "сессия уничтожена или handle уже установлен")
	}
	s.log.Debug(context.Background(), "медиа handle создан",
		logging.Duration("ptime", params.PTime),
		logging.Bool("video", params.Video != nil),
	)
	return h, nil
}

// CheckDTMFType согласует способ передачи DTMF по удаленному SDP и
// переменной канала dtmf_type
func (mc *MediaCore) CheckDTMFType(s *Session) media.DTMFType {
	h := s.MediaHandle()
	if h == nil {
		return media.DTMFTypeNone
	}
	t := h.NegotiateDTMF(s.Channel().Variable(VarDTMFType))
	s.log.Debug(context.Background(), "способ передачи DTMF", logging.String("dtmf_type", t.String()))
	return t
}

// Ready медиа указанного типа готово
func (mc *MediaCore) Ready(s *Session, t media.Type) bool {
	h := s.MediaHandle()
	return h != nil && h.Ready(t)
}

func (mc *MediaCore) ReadFrame(ctx context.Context, s *Session, flags media.IOFlag, streamID int, t media.Type) (*media.Frame, error) {
	h := s.MediaHandle()
	if h == nil {
		return nil, media.NewMediaError(media.ErrorCodeNotReady, s.UUID(), "нет медиа handle")
	}
	return h.ReadFrame(ctx, flags, streamID, t)
}

func (mc *MediaCore) WriteFrame(s *Session, frame *media.Frame, flags media.IOFlag, streamID int, t media.Type) error {
	h := s.MediaHandle()
	if h == nil {
		return media.NewMediaError(media.ErrorCodeNotReady, s.UUID(), "нет медиа handle")
	}
	return h.WriteFrame(frame, flags, streamID, t)
}

// Break прерывает блокирующее чтение
func (mc *MediaCore) Break(s *Session, t media.Type) {
	if h := s.MediaHandle(); h != nil {
		h.Break(t)
	}
}

// KillSocket закрывает транспорт медиа указанного типа
func (mc *MediaCore) KillSocket(s *Session, t media.Type) error {
	if h := s.MediaHandle(); h != nil {
		return h.KillSocket(t)
	}
	return nil
}

func (mc *MediaCore) JitterBuffer(s *Session, t media.Type) *media.JitterBuffer {
	if h := s.MediaHandle(); h != nil {
		return h.JitterBuffer(t)
	}
	return nil
}
