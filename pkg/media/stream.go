package media

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
)

// StreamStats счетчики потока
type StreamStats struct {
	FramesRead    uint64
	FramesWritten uint64
	ReadErrors    uint64
	WriteErrors   uint64
	Breaks        uint64
}

// Stream один медиа поток сессии (аудио или видео): транспорт, нумерация
// RTP и опциональный jitter buffer.
type Stream struct {
	sessionID string
	typ       Type
	codec     CodecParams
	transport Transport
	jb        *JitterBuffer
	timeout   time.Duration

	mu        sync.Mutex
	killed    bool
	ssrc      uint32
	seq       uint16
	timestamp uint32
	samples   uint32

	framesRead    atomic.Uint64
	framesWritten atomic.Uint64
	readErrors    atomic.Uint64
	writeErrors   atomic.Uint64
	breaks        atomic.Uint64
}

func newStream(sessionID string, t Type, codec CodecParams, ptime time.Duration, transport Transport, jitterDepth int, timeout time.Duration) *Stream {
	s := &Stream{
		sessionID: sessionID,
		typ:       t,
		codec:     codec,
		transport: transport,
		timeout:   timeout,
		ssrc:      rand.Uint32(),
		seq:       uint16(rand.Uint32()),
		timestamp: rand.Uint32(),
		samples:   uint32(uint64(codec.ClockRate) * uint64(ptime) / uint64(time.Second)),
	}
	if jitterDepth > 0 {
		s.jb = NewJitterBuffer(JitterBufferConfig{Depth: jitterDepth})
	}
	return s
}

// Type тип потока
func (s *Stream) Type() Type { return s.typ }

// SSRC потока
func (s *Stream) SSRC() uint32 { return s.ssrc }

// Ready поток готов к обмену кадрами: не убит и транспорт активен
func (s *Stream) Ready() bool {
	s.mu.Lock()
	killed := s.killed
	s.mu.Unlock()
	return !killed && s.transport.IsActive()
}

// LocalPort порт транспорта или 0
func (s *Stream) LocalPort() int {
	if addr, ok := s.transport.LocalAddr().(*net.UDPAddr); ok && addr != nil {
		return addr.Port
	}
	return 0
}

// Read читает следующий кадр потока. Jitter buffer выдает пакеты после
// набора глубины; если транспорт пуст, буфер отдает то, что уже накоплено.
func (s *Stream) Read(ctx context.Context, flags IOFlag) (*Frame, error) {
	if !s.Ready() {
		return nil, streamError(ErrorCodeNotReady, s.sessionID, s.typ, "поток не готов", nil)
	}
	if flags&IOFlagNoBlock != 0 {
		return s.poll()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for {
		if s.jb != nil && s.jb.Len() > 0 {
			return s.poll()
		}

		packet, err := s.transport.Receive(ctx)
		if err != nil {
			return nil, s.readError(err)
		}
		if s.jb == nil {
			return s.frame(packet), nil
		}
		s.jb.Put(packet)
		if next := s.jb.Get(); next != nil {
			return s.frame(next), nil
		}
		if flags&IOFlagSingleRead != 0 {
			if next := s.jb.Drain(); next != nil {
				return s.frame(next), nil
			}
			return nil, streamError(ErrorCodeTimeout, s.sessionID, s.typ, "пакет отброшен jitter buffer как поздний", nil)
		}
	}
}

// poll забирает пришедшие пакеты без ожидания
func (s *Stream) poll() (*Frame, error) {
	for {
		packet, err := s.transport.TryReceive()
		if err != nil {
			if errors.Is(err, ErrTimeout) && s.jb != nil {
				if next := s.jb.Drain(); next != nil {
					return s.frame(next), nil
				}
			}
			return nil, s.readError(err)
		}
		if s.jb == nil {
			return s.frame(packet), nil
		}
		s.jb.Put(packet)
		if next := s.jb.Get(); next != nil {
			return s.frame(next), nil
		}
	}
}

func (s *Stream) readError(err error) error {
	switch {
	case errors.Is(err, ErrBreak):
		s.breaks.Add(1)
	case errors.Is(err, ErrTimeout):
		// пустой транспорт не считается ошибкой чтения
	default:
		s.readErrors.Add(1)
	}
	return s.wrap(err)
}

func (s *Stream) frame(packet *rtp.Packet) *Frame {
	s.framesRead.Add(1)
	flags := FrameFlagRTP
	if packet.Marker {
		flags |= FrameFlagMarker
	}
	return &Frame{
		Type:        s.typ,
		Payload:     packet.Payload,
		PayloadType: packet.PayloadType,
		Codec:       s.codec.Name,
		Flags:       flags,
		Packet:      packet,
	}
}

// Write нумерует кадр и отправляет его в транспорт
func (s *Stream) Write(frame *Frame) error {
	if frame == nil {
		return streamError(ErrorCodeInvalidFrame, s.sessionID, s.typ, "кадр не может быть nil", nil)
	}
	if frame.HasFlag(FrameFlagCNG) {
		return nil
	}

	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return streamError(ErrorCodeNotReady, s.sessionID, s.typ, "поток не готов", nil)
	}
	samples := frame.Samples
	if samples == 0 {
		samples = s.samples
	}
	pt := frame.PayloadType
	if frame.Codec == "" && pt == 0 {
		pt = s.codec.PayloadType
	}
	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        ExpectedRTPVersion,
			Marker:         frame.HasFlag(FrameFlagMarker),
			PayloadType:    pt,
			SequenceNumber: s.seq,
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
		},
		Payload: frame.Payload,
	}
	s.seq++
	s.timestamp += samples
	s.mu.Unlock()

	if err := s.transport.Send(packet); err != nil {
		s.writeErrors.Add(1)
		return s.wrap(err)
	}
	s.framesWritten.Add(1)
	return nil
}

// Break прерывает блокирующее чтение; поток остается готовым
func (s *Stream) Break() {
	s.transport.Interrupt()
}

// Kill закрывает транспорт; поток больше не готов. Повторный вызов ничего не делает.
func (s *Stream) Kill() error {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return nil
	}
	s.killed = true
	s.mu.Unlock()

	if s.jb != nil {
		s.jb.Reset()
	}
	return s.transport.Close()
}

// JitterBuffer буфер потока или nil
func (s *Stream) JitterBuffer() *JitterBuffer {
	return s.jb
}

// Stats счетчики потока
func (s *Stream) Stats() StreamStats {
	return StreamStats{
		FramesRead:    s.framesRead.Load(),
		FramesWritten: s.framesWritten.Load(),
		ReadErrors:    s.readErrors.Load(),
		WriteErrors:   s.writeErrors.Load(),
		Breaks:        s.breaks.Load(),
	}
}

func (s *Stream) wrap(err error) error {
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return &MediaError{
			Code:      mediaErr.Code,
			Message:   mediaErr.Message,
			SessionID: s.sessionID,
			MediaType: s.typ,
			Wrapped:   mediaErr.Wrapped,
		}
	}
	return streamError(ErrorCodeTransportFailed, s.sessionID, s.typ, "ошибка транспорта", err)
}
