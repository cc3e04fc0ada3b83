package media

import (
	"context"
	"net"

	"github.com/pion/rtp"
)

// Transport определяет интерфейс для транспортировки RTP пакетов потока.
// Для эхо сессий транспорт замкнут сам на себя: отправленное возвращается
// при следующем чтении.
type Transport interface {
	// Send отправляет RTP пакет
	Send(packet *rtp.Packet) error

	// Receive получает RTP пакет; блокируется до появления данных,
	// прерывания (ErrBreak), закрытия (ErrClosed) или отмены ctx
	Receive(ctx context.Context) (*rtp.Packet, error)

	// TryReceive возвращает уже пришедший пакет без ожидания; ErrTimeout,
	// если пакетов нет
	TryReceive() (*rtp.Packet, error)

	// Interrupt прерывает текущее или следующее блокирующее чтение.
	// Повторные вызовы до чтения не накапливаются.
	Interrupt()

	// LocalAddr возвращает локальный адрес транспорта (nil для loopback)
	LocalAddr() net.Addr

	// Close закрывает транспорт; повторный вызов безопасен
	Close() error

	// IsActive проверяет активность транспорта
	IsActive() bool
}

// TransportFactory создает транспорт для потока сессии
type TransportFactory func(sessionID string, t Type) (Transport, error)
