package switchcore

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
)

// ChannelState состояние канала. Состояния упорядочены: все, что меньше
// ChannelStateHangup, считается "канал поднят".
type ChannelState int

const (
	ChannelStateNew ChannelState = iota
	ChannelStateInit
	ChannelStateRouting
	ChannelStateExecute
	ChannelStatePark
	ChannelStateHangup
	ChannelStateReporting
	ChannelStateDestroy
)

var channelStateNames = map[ChannelState]string{
	ChannelStateNew:       "CS_NEW",
	ChannelStateInit:      "CS_INIT",
	ChannelStateRouting:   "CS_ROUTING",
	ChannelStateExecute:   "CS_EXECUTE",
	ChannelStatePark:      "CS_PARK",
	ChannelStateHangup:    "CS_HANGUP",
	ChannelStateReporting: "CS_REPORTING",
	ChannelStateDestroy:   "CS_DESTROY",
}

func (s ChannelState) String() string {
	if name, ok := channelStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CS_UNKNOWN(%d)", int(s))
}

func parseChannelState(name string) ChannelState {
	for st, n := range channelStateNames {
		if n == name {
			return st
		}
	}
	return ChannelStateDestroy
}

// События fsm совпадают с целевым состоянием
var channelEvents = fsm.Events{
	{Name: ChannelStateInit.String(), Src: []string{ChannelStateNew.String()}, Dst: ChannelStateInit.String()},
	{Name: ChannelStateRouting.String(), Src: []string{ChannelStateInit.String(), ChannelStateExecute.String(), ChannelStatePark.String()}, Dst: ChannelStateRouting.String()},
	{Name: ChannelStateExecute.String(), Src: []string{ChannelStateRouting.String(), ChannelStatePark.String()}, Dst: ChannelStateExecute.String()},
	{Name: ChannelStatePark.String(), Src: []string{ChannelStateInit.String(), ChannelStateRouting.String(), ChannelStateExecute.String()}, Dst: ChannelStatePark.String()},
	{Name: ChannelStateHangup.String(), Src: []string{
		ChannelStateNew.String(), ChannelStateInit.String(), ChannelStateRouting.String(),
		ChannelStateExecute.String(), ChannelStatePark.String(),
	}, Dst: ChannelStateHangup.String()},
	{Name: ChannelStateReporting.String(), Src: []string{ChannelStateHangup.String()}, Dst: ChannelStateReporting.String()},
	{Name: ChannelStateDestroy.String(), Src: []string{ChannelStateHangup.String(), ChannelStateReporting.String()}, Dst: ChannelStateDestroy.String()},
}

// StateChangeFunc вызывается после каждого перехода состояния
type StateChangeFunc func(ch *Channel, from, to ChannelState)

// Channel сигнальное представление сессии: состояние, имя, профиль
// вызывающего, переменные и причина отбоя. Принадлежит ядру.
type Channel struct {
	sm *fsm.FSM

	mu            sync.RWMutex
	name          string
	profile       *CallerProfile
	variables     map[string]string
	hangupCause   CallCause
	answered      bool
	onStateChange StateChangeFunc
}

func newChannel(onStateChange StateChangeFunc) *Channel {
	ch := &Channel{
		variables:     make(map[string]string),
		onStateChange: onStateChange,
	}
	ch.sm = fsm.NewFSM(
		ChannelStateNew.String(),
		channelEvents,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				ch.mu.RLock()
				cb := ch.onStateChange
				ch.mu.RUnlock()
				if cb != nil {
					cb(ch, parseChannelState(e.Src), parseChannelState(e.Dst))
				}
			},
		},
	)
	return ch
}

// State текущее состояние
func (ch *Channel) State() ChannelState {
	return parseChannelState(ch.sm.Current())
}

// SetState переводит канал в состояние; недопустимый переход - ошибка.
// Переход в текущее состояние ничего не делает.
func (ch *Channel) SetState(st ChannelState) error {
	if ch.State() == st {
		return nil
	}
	if err := ch.sm.Event(context.Background(), st.String()); err != nil {
		return WrapError(StatusFalse, "set_state", "",
			fmt.Sprintf("переход %s -> %s невозможен", ch.State(), st), err)
	}
	return nil
}

// CanTransition проверяет допустимость перехода
func (ch *Channel) CanTransition(st ChannelState) bool {
	return ch.sm.Can(st.String())
}

// Name имя канала
func (ch *Channel) Name() string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.name
}

// SetName задает имя канала
func (ch *Channel) SetName(name string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.name = name
}

// CallerProfile профиль вызывающего или nil
func (ch *Channel) CallerProfile() *CallerProfile {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.profile
}

// SetCallerProfile устанавливает профиль вызывающего
func (ch *Channel) SetCallerProfile(p *CallerProfile) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.profile = p
}

// Variable значение переменной канала; при отсутствии ищется в профиле
func (ch *Channel) Variable(name string) string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	if v, ok := ch.variables[name]; ok {
		return v
	}
	if ch.profile != nil {
		return ch.profile.Variables[name]
	}
	return ""
}

// SetVariable устанавливает переменную канала
func (ch *Channel) SetVariable(name, value string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.variables[name] = value
}

// Answer помечает вызов отвеченным
func (ch *Channel) Answer() error {
	if ch.Down() {
		return NewError(StatusFalse, "answer", "", "канал уже завершен")
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.answered = true
	return nil
}

// Answered вызов отвечен
func (ch *Channel) Answered() bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.answered
}

// RequestHangup запрашивает отбой без смены состояния; ядро переведет
// канал в CS_HANGUP при обработке сигнала
func (ch *Channel) RequestHangup(cause CallCause) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.hangupCause == CauseNone {
		ch.hangupCause = cause
	}
}

// Hangup запрашивает отбой и переводит канал в CS_HANGUP
func (ch *Channel) Hangup(cause CallCause) error {
	ch.RequestHangup(cause)
	if ch.Down() {
		return nil
	}
	return ch.SetState(ChannelStateHangup)
}

// HangupCause причина отбоя или CauseNone
func (ch *Channel) HangupCause() CallCause {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.hangupCause
}

// UpNoSig канал поднят; запрошенный, но не обработанный отбой не учитывается
func (ch *Channel) UpNoSig() bool {
	return ch.State() < ChannelStateHangup
}

// Up канал поднят и отбой не запрошен
func (ch *Channel) Up() bool {
	return ch.UpNoSig() && ch.HangupCause() == CauseNone
}

// Down канал завершен
func (ch *Channel) Down() bool {
	return ch.State() >= ChannelStateHangup
}
