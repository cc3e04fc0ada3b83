package media

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packetWithSeq(seq uint16) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{Version: 2, SequenceNumber: seq}, Payload: []byte{byte(seq)}}
}

// TestJitterBufferReorders проверяет выдачу пакетов по порядку sequence number
func TestJitterBufferReorders(t *testing.T) {
	jb := NewJitterBuffer(JitterBufferConfig{Depth: 3})

	jb.Put(packetWithSeq(12))
	assert.Nil(t, jb.Get(), "буфер не набрал глубину")
	jb.Put(packetWithSeq(10))
	assert.Nil(t, jb.Get())
	jb.Put(packetWithSeq(11))

	for _, want := range []uint16{10, 11, 12} {
		p := jb.Get()
		require.NotNil(t, p)
		assert.Equal(t, want, p.SequenceNumber)
	}
	assert.Nil(t, jb.Get())
}

// TestJitterBufferDropsLatePackets пакеты старше выданных отбрасываются
func TestJitterBufferDropsLatePackets(t *testing.T) {
	jb := NewJitterBuffer(JitterBufferConfig{Depth: 1})

	jb.Put(packetWithSeq(100))
	require.Equal(t, uint16(100), jb.Get().SequenceNumber)

	jb.Put(packetWithSeq(99))
	assert.Nil(t, jb.Get())

	stats := jb.Stats()
	assert.Equal(t, uint64(2), stats.Received)
	assert.Equal(t, uint64(1), stats.Late)
	assert.Equal(t, 0, stats.Buffered)
}

// TestJitterBufferSequenceWrap учитывает переполнение 16-битного счетчика
func TestJitterBufferSequenceWrap(t *testing.T) {
	jb := NewJitterBuffer(JitterBufferConfig{Depth: 2})

	jb.Put(packetWithSeq(1))
	jb.Put(packetWithSeq(65535))

	assert.Equal(t, uint16(65535), jb.Get().SequenceNumber)
	assert.Equal(t, uint16(1), jb.Get().SequenceNumber)
}

// TestJitterBufferOverflow при переполнении отбрасывается самый старый пакет
func TestJitterBufferOverflow(t *testing.T) {
	jb := NewJitterBuffer(JitterBufferConfig{Depth: 16, MaxSize: 16})

	for i := uint16(0); i < 17; i++ {
		jb.Put(packetWithSeq(i))
	}

	assert.Equal(t, 16, jb.Len())
	assert.Equal(t, uint64(1), jb.Stats().Dropped)
	assert.Equal(t, uint16(1), jb.Get().SequenceNumber)
}

func TestJitterBufferReset(t *testing.T) {
	jb := NewJitterBuffer(JitterBufferConfig{Depth: 1})
	jb.Put(packetWithSeq(5))
	jb.Get()
	jb.Put(packetWithSeq(6))

	jb.Reset()
	assert.Equal(t, 0, jb.Len())

	// после сброса старые номера снова принимаются
	jb.Put(packetWithSeq(1))
	require.NotNil(t, jb.Get())
}

func TestJitterBufferDrainIgnoresDepth(t *testing.T) {
	jb := NewJitterBuffer(JitterBufferConfig{Depth: 3})
	assert.Nil(t, jb.Drain())

	jb.Put(packetWithSeq(11))
	jb.Put(packetWithSeq(10))
	assert.Nil(t, jb.Get(), "глубина не набрана")

	p := jb.Drain()
	require.NotNil(t, p)
	assert.Equal(t, uint16(10), p.SequenceNumber)

	jb.Put(packetWithSeq(9))
	assert.Equal(t, uint64(1), jb.Stats().Late)
	assert.Equal(t, 1, jb.Len())
}
