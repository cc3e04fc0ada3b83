package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPacket(seq uint16, payload string) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    0,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 160,
			SSRC:           0x1234,
		},
		Payload: []byte(payload),
	}
}

// transportCases общий набор транспортов для одинаковых проверок
func transportCases(t *testing.T) map[string]func() Transport {
	return map[string]func() Transport{
		"loopback": func() Transport { return NewLoopbackTransport(8) },
		"udp": func() Transport {
			tr, err := NewUDPTransport(UDPTransportConfig{LocalAddr: "127.0.0.1:0"})
			require.NoError(t, err)
			return tr
		},
	}
}

// TestTransportEchoesPackets отправленный пакет возвращается при чтении
func TestTransportEchoesPackets(t *testing.T) {
	for name, newTransport := range transportCases(t) {
		t.Run(name, func(t *testing.T) {
			tr := newTransport()
			defer tr.Close()

			require.NoError(t, tr.Send(testPacket(1, "hello")))
			require.NoError(t, tr.Send(testPacket(2, "world")))

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			p1, err := tr.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint16(1), p1.SequenceNumber)
			assert.Equal(t, []byte("hello"), p1.Payload)

			p2, err := tr.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte("world"), p2.Payload)
		})
	}
}

// TestTransportInterruptUnblocksReceive Interrupt прерывает блокирующее чтение,
// транспорт остается активным
func TestTransportInterruptUnblocksReceive(t *testing.T) {
	for name, newTransport := range transportCases(t) {
		t.Run(name, func(t *testing.T) {
			tr := newTransport()
			defer tr.Close()

			errCh := make(chan error, 1)
			go func() {
				_, err := tr.Receive(context.Background())
				errCh <- err
			}()

			time.Sleep(50 * time.Millisecond)
			tr.Interrupt()

			select {
			case err := <-errCh:
				assert.True(t, errors.Is(err, ErrBreak), "ожидался ErrBreak, получено %v", err)
			case <-time.After(2 * time.Second):
				t.Fatal("Receive не прерван")
			}
			assert.True(t, tr.IsActive())

			// повторные прерывания не накапливаются
			tr.Interrupt()
			tr.Interrupt()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := tr.Receive(ctx)
			assert.True(t, errors.Is(err, ErrBreak))

			require.NoError(t, tr.Send(testPacket(3, "after")))
			p, err := tr.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte("after"), p.Payload)
		})
	}
}

// TestTransportCloseIsIdempotent закрытие прерывает чтение и повторяется безопасно
func TestTransportCloseIsIdempotent(t *testing.T) {
	for name, newTransport := range transportCases(t) {
		t.Run(name, func(t *testing.T) {
			tr := newTransport()

			errCh := make(chan error, 1)
			go func() {
				_, err := tr.Receive(context.Background())
				errCh <- err
			}()
			time.Sleep(50 * time.Millisecond)

			require.NoError(t, tr.Close())
			require.NoError(t, tr.Close())
			assert.False(t, tr.IsActive())

			select {
			case err := <-errCh:
				assert.True(t, errors.Is(err, ErrClosed), "ожидался ErrClosed, получено %v", err)
			case <-time.After(2 * time.Second):
				t.Fatal("Receive не завершен после Close")
			}
			assert.True(t, errors.Is(tr.Send(testPacket(1, "x")), ErrClosed))
		})
	}
}

// TestTransportReceiveHonorsContext отмена контекста завершает ожидание
func TestTransportReceiveHonorsContext(t *testing.T) {
	for name, newTransport := range transportCases(t) {
		t.Run(name, func(t *testing.T) {
			tr := newTransport()
			defer tr.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			_, err := tr.Receive(ctx)
			assert.True(t, HasErrorCode(err, ErrorCodeTimeout), "ожидался таймаут, получено %v", err)
		})
	}
}

func TestLoopbackTransportCapacity(t *testing.T) {
	tr := NewLoopbackTransport(2)
	require.NoError(t, tr.Send(testPacket(1, "a")))
	require.NoError(t, tr.Send(testPacket(2, "b")))
	assert.True(t, errors.Is(tr.Send(testPacket(3, "c")), ErrBufferFull))
	assert.Equal(t, 2, tr.Pending())
}

func TestLoopbackTransportCopiesPacket(t *testing.T) {
	tr := NewLoopbackTransport(0)
	p := testPacket(1, "orig")
	require.NoError(t, tr.Send(p))
	p.Payload[0] = 'X'

	got, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), got.Payload)
}

// TestTransportTryReceive чтение без ожидания: пустой транспорт - таймаут,
// пришедший пакет возвращается сразу
func TestTransportTryReceive(t *testing.T) {
	for name, newTransport := range transportCases(t) {
		t.Run(name, func(t *testing.T) {
			tr := newTransport()
			defer tr.Close()

			_, err := tr.TryReceive()
			assert.ErrorIs(t, err, ErrTimeout)

			require.NoError(t, tr.Send(testPacket(7, "queued")))
			time.Sleep(50 * time.Millisecond)

			p, err := tr.TryReceive()
			require.NoError(t, err)
			assert.Equal(t, uint16(7), p.SequenceNumber)
			assert.Equal(t, []byte("queued"), p.Payload)

			tr.Interrupt()
			_, err = tr.TryReceive()
			assert.ErrorIs(t, err, ErrBreak)

			require.NoError(t, tr.Close())
			_, err = tr.TryReceive()
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestUDPTransportRejectsInvalidVersion(t *testing.T) {
	tr, err := NewUDPTransport(UDPTransportConfig{})
	require.NoError(t, err)
	defer tr.Close()

	p := testPacket(1, "x")
	p.Version = 1
	assert.True(t, HasErrorCode(tr.Send(p), ErrorCodeInvalidFrame))
	assert.NotNil(t, tr.LocalAddr())
}
