// Package switchcore реализует ядро коммутатора, в которое загружаются модули
// эндпоинтов: реестр эндпоинтов, выделение и уничтожение сессий, состояние
// каналов, загрузчик модулей и диспетчеризация медиа операций к эндпоинтам.
package switchcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
)

// Config конфигурация ядра
type Config struct {
	// MaxSessions предел одновременных сессий, 0 - без ограничения
	MaxSessions int

	// TransportFactory транспорт медиа потоков; nil - loopback
	TransportFactory media.TransportFactory

	Logger logging.Logger

	// Registerer для метрик ядра; nil - метрики не регистрируются
	Registerer prometheus.Registerer
}

// Core ядро коммутатора
type Core struct {
	cfg     Config
	log     logging.Logger
	metrics *coreMetrics
	media   *MediaCore

	mu        sync.RWMutex
	sessions  map[string]*Session
	endpoints map[string]*EndpointInterface
	modules   map[string]*loadedModule
	order     []string
	closed    bool
}

// NewCore создает ядро
func NewCore(cfg Config) *Core {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	c := &Core{
		cfg:       cfg,
		log:       cfg.Logger.WithComponent("core"),
		metrics:   newCoreMetrics(cfg.Registerer),
		sessions:  make(map[string]*Session),
		endpoints: make(map[string]*EndpointInterface),
		modules:   make(map[string]*loadedModule),
	}
	c.media = newMediaCore(c, cfg.TransportFactory)
	return c
}

// Media медиа подсистема ядра
func (c *Core) Media() *MediaCore { return c.media }

// Logger логгер ядра
func (c *Core) Logger() logging.Logger { return c.log }

// RequestSession выделяет новую сессию на эндпоинте. Если originationUUID не
// пуст, сессия получает этот uuid; он должен быть корректным и свободным.
// Канал новой сессии находится в CS_NEW.
func (c *Core) RequestSession(ep *EndpointInterface, dir Direction, flags OriginateFlag, originationUUID string) (*Session, error) {
	id := uuid.NewString()
	if originationUUID != "" {
		parsed, err := uuid.Parse(originationUUID)
		if err != nil {
			c.metrics.allocFailures.WithLabelValues("invalid_uuid").Inc()
			return nil, WrapError(StatusFalse, "request_session", originationUUID, "некорректный uuid", err)
		}
		id = parsed.String()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.metrics.allocFailures.WithLabelValues("shutdown").Inc()
		return nil, NewError(StatusTerm, "request_session", id, "ядро остановлено")
	}
	if ep == nil || c.endpoints[ep.Name] != ep {
		c.mu.Unlock()
		c.metrics.allocFailures.WithLabelValues("unknown_endpoint").Inc()
		return nil, NewError(StatusNotFound, "request_session", id, "эндпоинт не зарегистрирован")
	}
	if _, exists := c.sessions[id]; exists {
		c.mu.Unlock()
		c.metrics.allocFailures.WithLabelValues("duplicate_uuid").Inc()
		return nil, NewError(StatusInUse, "request_session", id, "uuid уже занят")
	}
	if c.cfg.MaxSessions > 0 && flags&OriginateFlagNoLimits == 0 && len(c.sessions) >= c.cfg.MaxSessions {
		c.mu.Unlock()
		c.metrics.allocFailures.WithLabelValues("limit").Inc()
		return nil, NewError(StatusMemErr, "request_session", id,
			fmt.Sprintf("достигнут предел сессий %d", c.cfg.MaxSessions))
	}

	s := &Session{
		uuid:      id,
		direction: dir,
		flags:     flags,
		endpoint:  ep,
		core:      c,
		createdAt: time.Now(),
		log:       c.log.WithFields(logging.String("uuid", id), logging.String("endpoint", ep.Name)),
	}
	s.channel = newChannel(s.onStateChange)
	c.sessions[id] = s
	c.mu.Unlock()

	c.metrics.sessionsActive.Inc()
	c.metrics.sessionsTotal.WithLabelValues(ep.Name, dir.String()).Inc()
	s.log.Debug(context.Background(), "сессия выделена", logging.String("direction", dir.String()))
	return s, nil
}

// DestroySession завершает канал, уничтожает медиа handle и удаляет сессию.
// Повторный вызов ничего не делает.
func (c *Core) DestroySession(s *Session) {
	if s == nil {
		return
	}
	h, first := s.markDestroyed()
	if !first {
		return
	}

	ch := s.channel
	if !ch.Down() {
		if err := ch.Hangup(CauseNormalClearing); err != nil {
			s.log.LogError(context.Background(), err, "не удалось завершить канал")
		}
	}
	if err := ch.SetState(ChannelStateDestroy); err != nil {
		s.log.LogError(context.Background(), err, "не удалось перевести канал в CS_DESTROY")
	}
	if h != nil {
		h.Destroy()
	}

	c.mu.Lock()
	if c.sessions[s.uuid] == s {
		delete(c.sessions, s.uuid)
	}
	c.mu.Unlock()

	c.metrics.sessionsActive.Dec()
	s.log.Debug(context.Background(), "сессия уничтожена",
		logging.String("cause", ch.HangupCause().String()))
}

// Session сессия по uuid или nil
func (c *Core) Session(id string) *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[id]
}

// Sessions снимок всех сессий
func (c *Core) Sessions() []*Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

// SessionCount число выделенных сессий
func (c *Core) SessionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Endpoint зарегистрированный эндпоинт по имени или nil
func (c *Core) Endpoint(name string) *EndpointInterface {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoints[name]
}

// Originate создает исходящий вызов через эндпоинт
func (c *Core) Originate(ctx context.Context, endpointName string, req *OutgoingRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CauseError{Cause: CauseNormalTemporaryFailure, Message: "originate отменен", Wrapped: err}
	}
	ep := c.Endpoint(endpointName)
	if ep == nil {
		return nil, &CauseError{Cause: CauseChanNotImplemented, Message: "эндпоинт " + endpointName + " не найден"}
	}
	if req == nil {
		req = &OutgoingRequest{}
	}

	s, err := ep.Routines.OutgoingChannel(ctx, req)
	if err != nil {
		c.log.Warn(ctx, "originate не выполнен",
			logging.String("endpoint", endpointName),
			logging.String("cause", CauseOf(err).String()),
			logging.Err(err),
		)
		return nil, err
	}
	if s == nil {
		return nil, &CauseError{Cause: CauseNormalTemporaryFailure, Message: "эндпоинт " + endpointName + " не вернул сессию"}
	}
	return s, nil
}

// Shutdown выгружает модули в обратном порядке загрузки и уничтожает
// оставшиеся сессии
func (c *Core) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	order := append([]string(nil), c.order...)
	c.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := c.UnloadModule(ctx, order[i]); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	for _, s := range c.Sessions() {
		c.DestroySession(s)
	}

	c.log.Info(ctx, "ядро остановлено")
	return errors.Join(errs...)
}
