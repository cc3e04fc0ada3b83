package switchcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChannelLifecycle проходит штатный путь NEW -> INIT -> ROUTING -> EXECUTE -> HANGUP -> DESTROY
func TestChannelLifecycle(t *testing.T) {
	var transitions [][2]ChannelState
	ch := newChannel(func(_ *Channel, from, to ChannelState) {
		transitions = append(transitions, [2]ChannelState{from, to})
	})

	assert.Equal(t, ChannelStateNew, ch.State())
	assert.True(t, ch.Up())

	for _, st := range []ChannelState{ChannelStateInit, ChannelStateRouting, ChannelStateExecute} {
		require.NoError(t, ch.SetState(st), "переход в %s", st)
	}
	require.NoError(t, ch.Hangup(CauseNormalClearing))
	assert.True(t, ch.Down())
	assert.False(t, ch.UpNoSig())
	require.NoError(t, ch.SetState(ChannelStateDestroy))

	require.Len(t, transitions, 5)
	assert.Equal(t, [2]ChannelState{ChannelStateNew, ChannelStateInit}, transitions[0])
	assert.Equal(t, [2]ChannelState{ChannelStateHangup, ChannelStateDestroy}, transitions[4])
}

func TestChannelInvalidTransition(t *testing.T) {
	ch := newChannel(nil)

	err := ch.SetState(ChannelStateExecute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFalse)
	assert.Equal(t, ChannelStateNew, ch.State())
	assert.False(t, ch.CanTransition(ChannelStateDestroy))
	assert.True(t, ch.CanTransition(ChannelStateInit))

	// Переход в текущее состояние допустим и ничего не меняет
	assert.NoError(t, ch.SetState(ChannelStateNew))
}

// TestChannelUpNoSig запрошенный отбой влияет на Up, но не на UpNoSig
func TestChannelUpNoSig(t *testing.T) {
	ch := newChannel(nil)
	require.NoError(t, ch.SetState(ChannelStateInit))

	ch.RequestHangup(CauseManagerRequest)
	assert.False(t, ch.Up())
	assert.True(t, ch.UpNoSig())
	assert.False(t, ch.Down())

	// Первая причина сохраняется
	require.NoError(t, ch.Hangup(CauseNormalClearing))
	assert.Equal(t, CauseManagerRequest, ch.HangupCause())

	// Повторный отбой уже завершенного канала
	assert.NoError(t, ch.Hangup(CauseNormalClearing))
	assert.Error(t, ch.Answer())
}

func TestChannelVariablesAndProfile(t *testing.T) {
	ch := newChannel(nil)
	ch.SetCallerProfile(&CallerProfile{Variables: map[string]string{"dtmf_type": "info", "a": "profile"}})
	ch.SetVariable("a", "channel")
	ch.SetName("echo/1000")

	assert.Equal(t, "channel", ch.Variable("a"))
	assert.Equal(t, "info", ch.Variable("dtmf_type"))
	assert.Empty(t, ch.Variable("missing"))
	assert.Equal(t, "echo/1000", ch.Name())

	require.NoError(t, ch.Answer())
	assert.True(t, ch.Answered())
}

func TestChannelStateString(t *testing.T) {
	assert.Equal(t, "CS_INIT", ChannelStateInit.String())
	assert.Equal(t, "CS_UNKNOWN(42)", ChannelState(42).String())
	assert.Less(t, int(ChannelStatePark), int(ChannelStateHangup))
}

func TestCallerProfileClone(t *testing.T) {
	var nilProfile *CallerProfile
	assert.Nil(t, nilProfile.Clone())

	p := &CallerProfile{
		CallerIDName:      "Alice",
		DestinationNumber: "1000",
		Variables:         map[string]string{"k": "v"},
	}
	c := p.Clone()
	require.NotNil(t, c)
	assert.NotSame(t, p, c)
	assert.Equal(t, "Alice", c.CallerIDName)
	assert.False(t, c.CreatedAt.IsZero())

	c.Variables["k"] = "changed"
	assert.Equal(t, "v", p.Variables["k"], "копия не должна делить переменные с оригиналом")

	empty := (&CallerProfile{}).Clone()
	assert.NotNil(t, empty.Variables)
}
