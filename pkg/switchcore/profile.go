package switchcore

import (
	"maps"
	"time"
)

// CallerProfile неизменяемые данные о вызывающем и маршрутизации вызова.
// Сессии не делят профиль: каждая получает собственную копию через Clone.
type CallerProfile struct {
	Username          string
	Dialplan          string
	CallerIDName      string
	CallerIDNumber    string
	NetworkAddr       string
	ANI               string
	DestinationNumber string
	Context           string
	Source            string
	ChannelName       string
	UUID              string
	Variables         map[string]string
	CreatedAt         time.Time
}

// Clone возвращает глубокую копию профиля; nil остается nil
func (p *CallerProfile) Clone() *CallerProfile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Variables = maps.Clone(p.Variables)
	if clone.Variables == nil {
		clone.Variables = make(map[string]string)
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	return &clone
}
