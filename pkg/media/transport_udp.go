package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
)

// Константы для валидации пакетов согласно RFC 3550
const (
	MinRTPPacketSize   = 12
	MaxRTPPacketSize   = 1500
	ExpectedRTPVersion = 2
)

// UDPTransport реализует Transport поверх UDP сокета.
// Удаленным адресом по умолчанию служит собственный локальный адрес,
// поэтому пакеты проходят через сетевой стек и возвращаются обратно.
type UDPTransport struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	bufferSize int

	interrupted atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	readMu      sync.Mutex
}

var _ Transport = (*UDPTransport)(nil)

// UDPTransportConfig конфигурация UDP транспорта
type UDPTransportConfig struct {
	LocalAddr  string // Локальный адрес для привязки ("127.0.0.1:0")
	RemoteAddr string // Пусто - отправка на собственный адрес
	BufferSize int
	DSCP       int // 0 - без маркировки
}

// NewUDPTransport создает новый UDP транспорт для RTP
func NewUDPTransport(config UDPTransportConfig) (*UDPTransport, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = MaxRTPPacketSize
	}
	if config.LocalAddr == "" {
		config.LocalAddr = "127.0.0.1:0"
	}

	localAddr, err := net.ResolveUDPAddr("udp", config.LocalAddr)
	if err != nil {
		return nil, WrapMediaError(ErrorCodeTransportFailed, "", "ошибка разрешения локального адреса", err)
	}

	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, WrapMediaError(ErrorCodeTransportFailed, "", "ошибка создания UDP соединения", err)
	}

	if err := setSockOptForVoice(conn, config.DSCP); err != nil {
		conn.Close()
		return nil, WrapMediaError(ErrorCodeTransportFailed, "", "ошибка настройки сокета", err)
	}

	t := &UDPTransport{
		conn:       conn,
		bufferSize: config.BufferSize,
		remoteAddr: conn.LocalAddr().(*net.UDPAddr),
	}

	if config.RemoteAddr != "" {
		remoteAddr, err := net.ResolveUDPAddr("udp", config.RemoteAddr)
		if err != nil {
			conn.Close()
			return nil, WrapMediaError(ErrorCodeTransportFailed, "", "ошибка разрешения удаленного адреса", err)
		}
		t.remoteAddr = remoteAddr
	}

	return t, nil
}

// UDPFactory фабрика UDP транспортов, привязанных к localIP с портом от ядра
func UDPFactory(localIP string, dscp int) TransportFactory {
	return func(string, Type) (Transport, error) {
		return NewUDPTransport(UDPTransportConfig{
			LocalAddr: net.JoinHostPort(localIP, "0"),
			DSCP:      dscp,
		})
	}
}

// Send сериализует и отправляет RTP пакет
func (t *UDPTransport) Send(packet *rtp.Packet) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if packet == nil {
		return NewMediaError(ErrorCodeInvalidFrame, "", "пакет не может быть nil")
	}
	if packet.Version != ExpectedRTPVersion {
		return NewMediaError(ErrorCodeInvalidFrame, "", fmt.Sprintf("неподдерживаемая версия RTP: %d", packet.Version))
	}

	data, err := packet.Marshal()
	if err != nil {
		return WrapMediaError(ErrorCodeInvalidFrame, "", "ошибка маршалинга RTP пакета", err)
	}
	if len(data) > MaxRTPPacketSize {
		return NewMediaError(ErrorCodeInvalidFrame, "", fmt.Sprintf("пакет слишком большой: %d байт", len(data)))
	}

	if _, err := t.conn.WriteToUDP(data, t.remoteAddr); err != nil {
		if t.closed.Load() {
			return ErrClosed
		}
		return WrapMediaError(ErrorCodeTransportFailed, "", "ошибка записи UDP", err)
	}
	return nil
}

// Receive читает и разбирает следующий RTP пакет
func (t *UDPTransport) Receive(ctx context.Context) (*rtp.Packet, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	if t.closed.Load() {
		return nil, ErrClosed
	}
	if err := t.conn.SetReadDeadline(time.Time{}); err != nil && !t.closed.Load() {
		return nil, WrapMediaError(ErrorCodeTransportFailed, "", "ошибка сброса дедлайна", err)
	}
	// Флаг проверяется после сброса дедлайна, иначе прерывание между ними теряется
	if t.interrupted.Swap(false) {
		return nil, ErrBreak
	}

	// Отмена ctx выставляет дедлайн чтения в прошлое
	stop := context.AfterFunc(ctx, func() {
		t.conn.SetReadDeadline(time.Now())
	})
	defer stop()
	if ctx.Err() != nil {
		return nil, WrapMediaError(ErrorCodeTimeout, "", "ожидание пакета прервано", ctx.Err())
	}

	return t.read(ctx)
}

// pollWindow дедлайн TryReceive. Дедлайн в прошлом отклоняет чтение до
// обращения к сокету, поэтому даже пришедший пакет не был бы прочитан.
const pollWindow = time.Millisecond

// TryReceive читает пакет, уже лежащий в буфере сокета
func (t *UDPTransport) TryReceive() (*rtp.Packet, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	if t.closed.Load() {
		return nil, ErrClosed
	}
	if t.interrupted.Swap(false) {
		return nil, ErrBreak
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil && !t.closed.Load() {
		return nil, WrapMediaError(ErrorCodeTransportFailed, "", "ошибка установки дедлайна", err)
	}
	return t.read(context.Background())
}

// read читает сокет до первого валидного RTP пакета; вызывается под readMu
func (t *UDPTransport) read(ctx context.Context) (*rtp.Packet, error) {
	buf := make([]byte, t.bufferSize)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			switch {
			case t.closed.Load() || errors.Is(err, net.ErrClosed):
				return nil, ErrClosed
			case t.interrupted.Swap(false):
				return nil, ErrBreak
			case ctx.Err() != nil:
				return nil, WrapMediaError(ErrorCodeTimeout, "", "ожидание пакета прервано", ctx.Err())
			case errors.Is(err, os.ErrDeadlineExceeded):
				return nil, ErrTimeout
			default:
				return nil, WrapMediaError(ErrorCodeTransportFailed, "", "ошибка чтения UDP", err)
			}
		}

		if n < MinRTPPacketSize {
			continue
		}

		packet := &rtp.Packet{}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if packet.Version != ExpectedRTPVersion {
			continue
		}
		return packet, nil
	}
}

// Interrupt прерывает блокирующее чтение через дедлайн в прошлом
func (t *UDPTransport) Interrupt() {
	if t.closed.Load() {
		return
	}
	t.interrupted.Store(true)
	t.conn.SetReadDeadline(time.Now())
}

func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close закрывает сокет
func (t *UDPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.conn.Close()
	})
	return err
}

func (t *UDPTransport) IsActive() bool {
	return !t.closed.Load()
}
