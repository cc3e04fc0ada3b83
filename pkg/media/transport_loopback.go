package media

import (
	"context"
	"net"
	"sync"

	"github.com/eapache/queue"
	"github.com/pion/rtp"
)

// DefaultLoopbackCapacity емкость очереди loopback транспорта в пакетах
const DefaultLoopbackCapacity = 256

// LoopbackTransport замыкает отправку на прием через FIFO очередь в памяти.
type LoopbackTransport struct {
	mu       sync.Mutex
	queue    *queue.Queue
	capacity int
	notify   chan struct{}
	breakCh  chan struct{}
	done     chan struct{}
	closed   bool
}

var _ Transport = (*LoopbackTransport)(nil)

// NewLoopbackTransport создает loopback транспорт; capacity <= 0 - значение по умолчанию
func NewLoopbackTransport(capacity int) *LoopbackTransport {
	if capacity <= 0 {
		capacity = DefaultLoopbackCapacity
	}
	return &LoopbackTransport{
		queue:    queue.New(),
		capacity: capacity,
		notify:   make(chan struct{}),
		breakCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// LoopbackFactory фабрика loopback транспортов
func LoopbackFactory(capacity int) TransportFactory {
	return func(string, Type) (Transport, error) {
		return NewLoopbackTransport(capacity), nil
	}
}

// Send кладет копию пакета в очередь
func (t *LoopbackTransport) Send(packet *rtp.Packet) error {
	if packet == nil {
		return NewMediaError(ErrorCodeInvalidFrame, "", "пакет не может быть nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.queue.Length() >= t.capacity {
		return ErrBufferFull
	}

	t.queue.Add(packet.Clone())
	close(t.notify)
	t.notify = make(chan struct{})
	return nil
}

// Receive забирает первый пакет очереди
func (t *LoopbackTransport) Receive(ctx context.Context) (*rtp.Packet, error) {
	for {
		select {
		case <-t.breakCh:
			return nil, ErrBreak
		default:
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return nil, ErrClosed
		}
		if t.queue.Length() > 0 {
			packet := t.queue.Remove().(*rtp.Packet)
			t.mu.Unlock()
			return packet, nil
		}
		notify := t.notify
		t.mu.Unlock()

		select {
		case <-notify:
		case <-t.breakCh:
			return nil, ErrBreak
		case <-t.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, WrapMediaError(ErrorCodeTimeout, "", "ожидание пакета прервано", ctx.Err())
		}
	}
}

// TryReceive забирает первый пакет очереди, если он есть
func (t *LoopbackTransport) TryReceive() (*rtp.Packet, error) {
	select {
	case <-t.breakCh:
		return nil, ErrBreak
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if t.queue.Length() == 0 {
		return nil, ErrTimeout
	}
	return t.queue.Remove().(*rtp.Packet), nil
}

// Interrupt прерывает ожидание в Receive
func (t *LoopbackTransport) Interrupt() {
	select {
	case t.breakCh <- struct{}{}:
	default:
	}
}

// Pending количество пакетов в очереди
func (t *LoopbackTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Length()
}

func (t *LoopbackTransport) LocalAddr() net.Addr { return nil }

// Close закрывает транспорт и отбрасывает очередь
func (t *LoopbackTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for t.queue.Length() > 0 {
		t.queue.Remove()
	}
	close(t.done)
	return nil
}

func (t *LoopbackTransport) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}
