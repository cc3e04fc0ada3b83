package media

import (
	"container/heap"
	"sync"

	"github.com/pion/rtp"
)

// JitterBufferConfig параметры jitter buffer потока
type JitterBufferConfig struct {
	Depth   int // Сколько пакетов накопить перед выдачей первого
	MaxSize int // Максимальный размер буфера в пакетах
}

// JitterBufferStats статистика буфера
type JitterBufferStats struct {
	Received uint64
	Dropped  uint64
	Late     uint64
	Buffered int
}

// JitterBuffer упорядочивает входящие пакеты по sequence number.
// Принадлежит медиа подсистеме; эндпоинты получают его только для чтения
// статистики и сброса.
type JitterBuffer struct {
	mu      sync.Mutex
	packets packetHeap
	depth   int
	maxSize int

	nextSeq uint16
	started bool
	primed  bool

	received uint64
	dropped  uint64
	late     uint64
}

// NewJitterBuffer создает буфер; значения по умолчанию - глубина 1, размер 16
func NewJitterBuffer(config JitterBufferConfig) *JitterBuffer {
	if config.Depth <= 0 {
		config.Depth = 1
	}
	if config.MaxSize < config.Depth {
		config.MaxSize = config.Depth * 4
	}
	if config.MaxSize < 16 {
		config.MaxSize = 16
	}
	return &JitterBuffer{
		packets: make(packetHeap, 0, config.MaxSize),
		depth:   config.Depth,
		maxSize: config.MaxSize,
	}
}

// Put добавляет пакет. Пакеты старше уже выданных отбрасываются как поздние.
func (jb *JitterBuffer) Put(packet *rtp.Packet) {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	jb.received++
	if jb.started && seqLess(packet.SequenceNumber, jb.nextSeq) {
		jb.late++
		return
	}
	if len(jb.packets) >= jb.maxSize {
		heap.Pop(&jb.packets)
		jb.dropped++
	}
	heap.Push(&jb.packets, packet)
}

// Get возвращает следующий пакет по порядку или nil, если буфер еще
// не набрал глубину
func (jb *JitterBuffer) Get() *rtp.Packet {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if len(jb.packets) == 0 {
		return nil
	}
	if !jb.primed {
		if len(jb.packets) < jb.depth {
			return nil
		}
		jb.primed = true
	}

	packet := heap.Pop(&jb.packets).(*rtp.Packet)
	jb.nextSeq = packet.SequenceNumber + 1
	jb.started = true
	return packet
}

// Drain возвращает следующий пакет по порядку без ожидания глубины
// или nil для пустого буфера
func (jb *JitterBuffer) Drain() *rtp.Packet {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if len(jb.packets) == 0 {
		return nil
	}
	packet := heap.Pop(&jb.packets).(*rtp.Packet)
	jb.nextSeq = packet.SequenceNumber + 1
	jb.started = true
	return packet
}

// Len количество пакетов в буфере
func (jb *JitterBuffer) Len() int {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return len(jb.packets)
}

// Stats возвращает статистику
func (jb *JitterBuffer) Stats() JitterBufferStats {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return JitterBufferStats{
		Received: jb.received,
		Dropped:  jb.dropped,
		Late:     jb.late,
		Buffered: len(jb.packets),
	}
}

// Reset очищает буфер и начинает накопление заново
func (jb *JitterBuffer) Reset() {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	jb.packets = jb.packets[:0]
	jb.started = false
	jb.primed = false
}

// seqLess сравнивает sequence numbers с учетом переполнения
func seqLess(a, b uint16) bool {
	return int16(a-b) < 0
}

// packetHeap реализует heap.Interface для сортировки по sequence number
type packetHeap []*rtp.Packet

func (h packetHeap) Len() int           { return len(h) }
func (h packetHeap) Less(i, j int) bool { return seqLess(h[i].SequenceNumber, h[j].SequenceNumber) }
func (h packetHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *packetHeap) Push(x interface{}) {
	*h = append(*h, x.(*rtp.Packet))
}

func (h *packetHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
