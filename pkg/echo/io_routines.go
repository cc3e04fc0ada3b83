package echo

import (
	"context"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
	"github.com/arzzra/echo_endpoint/pkg/switchcore"
)

// techPvt состояние эндпоинта на сессии. Сессия и канал принадлежат ядру,
// handle уничтожается ядром вместе с сессией.
type techPvt struct {
	session *switchcore.Session
	channel *switchcore.Channel
	handle  *media.Handle
	profile *switchcore.CallerProfile
	params  media.Params
}

func (m *Module) pvt(s *switchcore.Session) *techPvt {
	if s == nil {
		return nil
	}
	tech, _ := s.Private().(*techPvt)
	return tech
}

func noPvt(op string, s *switchcore.Session) error {
	id := ""
	if s != nil {
		id = s.UUID()
	}
	return switchcore.NewError(switchcore.StatusNotFound, op, id, "к сессии не подключен эндпоинт echo")
}

// attach создает медиа handle, согласует DTMF и подключает состояние к сессии
func (m *Module) attach(ctx context.Context, s *switchcore.Session, tech *techPvt, name string) error {
	params := m.cfg.MediaParams
	h, err := m.media.NewHandle(s, params)
	if err != nil {
		return err
	}

	tech.session = s
	tech.channel = s.Channel()
	tech.handle = h
	tech.params = params

	if m.cfg.DTMFType != "" && s.Channel().Variable(switchcore.VarDTMFType) == "" {
		s.Channel().SetVariable(switchcore.VarDTMFType, m.cfg.DTMFType)
	}
	dtmf := m.media.CheckDTMFType(s)
	s.SetPrivate(tech)

	if name != "" {
		s.Channel().SetName(m.cfg.Name + "/" + name)
	}

	m.log.Debug(s.Context(ctx), "сессия подключена",
		logging.String("channel", s.Channel().Name()),
		logging.String("dtmf_type", dtmf.String()),
	)
	return nil
}

// OutgoingChannel создает исходящую сессию echo. Сессия возвращается в
// состоянии CS_INIT; при ошибке после выделения сессия уничтожается.
func (m *Module) OutgoingChannel(ctx context.Context, req *switchcore.OutgoingRequest) (*switchcore.Session, error) {
	if req == nil {
		req = &switchcore.OutgoingRequest{}
	}
	ep := m.Endpoint()
	if ep == nil || m.host == nil {
		return nil, &switchcore.CauseError{Cause: switchcore.CauseDestinationOutOfOrder, Message: "модуль не загружен"}
	}

	ns, err := m.host.RequestSession(ep, switchcore.DirectionOutbound, req.Flags, req.Variables[switchcore.VarOriginationUUID])
	if err != nil {
		m.log.LogError(ctx, err, "ошибка создания сессии")
		cerr := &switchcore.CauseError{
			Cause:   switchcore.CauseDestinationOutOfOrder,
			Message: "не удалось создать сессию",
			Wrapped: err,
		}
		m.metrics.origination(cerr)
		return nil, cerr
	}

	tech := &techPvt{}
	nchannel := ns.Channel()

	profile := req.Profile
	if profile == nil && req.Session != nil {
		profile = req.Session.Channel().CallerProfile()
	}
	if profile != nil {
		tech.profile = profile.Clone()
		tech.profile.UUID = ns.UUID()
		nchannel.SetCallerProfile(tech.profile)
	}
	for k, v := range req.Variables {
		nchannel.SetVariable(k, v)
	}

	name := ns.UUID()
	if tech.profile != nil && tech.profile.DestinationNumber != "" {
		name = tech.profile.DestinationNumber
	}

	fail := func(err error, msg string) (*switchcore.Session, error) {
		m.log.LogError(ns.Context(ctx), err, msg)
		m.host.DestroySession(ns)
		cerr := &switchcore.CauseError{
			Cause:   switchcore.CauseDestinationOutOfOrder,
			Message: msg,
			Wrapped: err,
		}
		m.metrics.origination(cerr)
		return nil, cerr
	}

	if err := m.attach(ctx, ns, tech, name); err != nil {
		return fail(err, "не удалось подключить медиа")
	}

	if nchannel.State() == switchcore.ChannelStateNew {
		if err := nchannel.SetState(switchcore.ChannelStateInit); err != nil {
			return fail(err, "не удалось перевести канал в CS_INIT")
		}
	}

	m.metrics.origination(nil)
	m.log.Info(ns.Context(ctx), "исходящий канал создан", logging.String("channel", nchannel.Name()))
	return ns, nil
}

// AttachInbound подключает эндпоинт к входящей сессии, созданной ядром.
// Состояние канала не меняется.
func (m *Module) AttachInbound(ctx context.Context, s *switchcore.Session, name string) error {
	if ep := m.Endpoint(); ep == nil || s.Endpoint() != ep {
		return switchcore.NewError(switchcore.StatusFalse, "attach_inbound", s.UUID(), "сессия принадлежит другому эндпоинту")
	}
	if s.Private() != nil {
		return switchcore.NewError(switchcore.StatusInUse, "attach_inbound", s.UUID(), "эндпоинт уже подключен")
	}
	tech := &techPvt{profile: s.Channel().CallerProfile()}
	return m.attach(ctx, s, tech, name)
}

// ReadFrame читает аудио кадр. Пока аудио не готово, возвращается "занято".
func (m *Module) ReadFrame(ctx context.Context, s *switchcore.Session, flags media.IOFlag, streamID int) (*media.Frame, error) {
	if m.pvt(s) == nil {
		return nil, noPvt("read_frame", s)
	}
	if !m.media.Ready(s, media.TypeAudio) {
		m.metrics.frame(media.TypeAudio.String(), "read", switchcore.ErrInUse)
		return nil, switchcore.NewError(switchcore.StatusInUse, "read_frame", s.UUID(), "аудио не готово")
	}

	frame, err := m.media.ReadFrame(ctx, s, flags, streamID, media.TypeAudio)
	m.metrics.frame(media.TypeAudio.String(), "read", err)
	return frame, err
}

// WriteFrame пишет аудио кадр. Пока аудио не готово, запись в поднятый
// канал молча пропускается, в завершенный - ошибка.
func (m *Module) WriteFrame(ctx context.Context, s *switchcore.Session, frame *media.Frame, flags media.IOFlag, streamID int) error {
	tech := m.pvt(s)
	if tech == nil {
		return noPvt("write_frame", s)
	}
	if !m.media.Ready(s, media.TypeAudio) {
		if tech.channel.UpNoSig() {
			m.metrics.frame(media.TypeAudio.String(), "write", switchcore.ErrIgnore)
			return nil
		}
		m.metrics.frame(media.TypeAudio.String(), "write", switchcore.ErrGenErr)
		return switchcore.NewError(switchcore.StatusGenErr, "write_frame", s.UUID(), "аудио не готово, канал завершен")
	}

	err := m.media.WriteFrame(s, frame, flags, streamID, media.TypeAudio)
	m.metrics.frame(media.TypeAudio.String(), "write", err)
	return err
}

// ReadVideoFrame передает чтение видео в медиа подсистему без проверки готовности
func (m *Module) ReadVideoFrame(ctx context.Context, s *switchcore.Session, flags media.IOFlag, streamID int) (*media.Frame, error) {
	if m.pvt(s) == nil {
		return nil, noPvt("read_video_frame", s)
	}
	frame, err := m.media.ReadFrame(ctx, s, flags, streamID, media.TypeVideo)
	m.metrics.frame(media.TypeVideo.String(), "read", err)
	return frame, err
}

// WriteVideoFrame передает запись видео в медиа подсистему без проверки готовности
func (m *Module) WriteVideoFrame(ctx context.Context, s *switchcore.Session, frame *media.Frame, flags media.IOFlag, streamID int) error {
	if m.pvt(s) == nil {
		return noPvt("write_video_frame", s)
	}
	err := m.media.WriteFrame(s, frame, flags, streamID, media.TypeVideo)
	m.metrics.frame(media.TypeVideo.String(), "write", err)
	return err
}

// KillChannel: break прерывает блокирующее чтение готовых потоков, остальные
// сигналы закрывают их транспорт. Повторный сигнал ничего не меняет.
func (m *Module) KillChannel(s *switchcore.Session, sig switchcore.Signal) error {
	if m.pvt(s) == nil {
		return noPvt("kill_channel", s)
	}

	for _, t := range media.Types {
		if !m.media.Ready(s, t) {
			continue
		}
		switch sig {
		case switchcore.SignalBreak:
			m.media.Break(s, t)
		default:
			if err := m.media.KillSocket(s, t); err != nil {
				m.log.Warn(s.Context(context.Background()), "ошибка закрытия медиа транспорта",
					logging.String("media", t.String()),
					logging.Err(err),
				)
			}
		}
	}

	m.log.Debug(s.Context(context.Background()), "сигнал доставлен", logging.String("signal", sig.String()))
	return nil
}

// SendDTMF ничего не делает
func (m *Module) SendDTMF(s *switchcore.Session, _ media.DTMF) error {
	if m.pvt(s) == nil {
		return noPvt("send_dtmf", s)
	}
	return nil
}

// ReceiveMessage принимает сообщения только для поднятого канала
func (m *Module) ReceiveMessage(s *switchcore.Session, _ *switchcore.Message) error {
	if m.pvt(s) == nil {
		return noPvt("receive_message", s)
	}
	if s.Channel().Down() {
		return switchcore.NewError(switchcore.StatusFalse, "receive_message", s.UUID(), "канал завершен")
	}
	return nil
}

func (m *Module) ReceiveEvent(s *switchcore.Session, _ *switchcore.Event) error {
	if m.pvt(s) == nil {
		return noPvt("receive_event", s)
	}
	return nil
}

// JitterBuffer jitter buffer медиа подсистемы или nil
func (m *Module) JitterBuffer(s *switchcore.Session, t media.Type) *media.JitterBuffer {
	if m.pvt(s) == nil {
		return nil
	}
	return m.media.JitterBuffer(s, t)
}
