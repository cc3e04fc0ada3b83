// Package echo реализует эндпоинт "echo": сессии этого эндпоинта возвращают
// звонящему его собственные аудио и видео кадры без какой-либо обработки.
//
// Вся работа с медиа (готовность потоков, RTP, jitter buffer, DTMF)
// выполняется медиа подсистемой ядра; модуль только связывает сессию с
// медиа handle и передает кадры как есть.
//
// Жизненный цикл модуля определяется загрузчиком ядра:
//
//	core := switchcore.NewCore(switchcore.Config{})
//	mod := echo.New(echo.Config{})
//	if err := core.LoadModule(ctx, mod); err != nil {
//		return err
//	}
//	defer core.UnloadModule(ctx, mod.Name())
//
// Load регистрирует эндпоинт, Runtime выполняется в отдельной горутине и
// раз в HeartbeatInterval пишет в лог "loop N", Shutdown не возвращается,
// пока Runtime не завершился.
package echo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
	"github.com/arzzra/echo_endpoint/pkg/switchcore"
)

const (
	// DefaultName имя эндпоинта по умолчанию
	DefaultName = "echo"
	// DefaultHeartbeatInterval период фоновой задачи
	DefaultHeartbeatInterval = 5 * time.Second
)

// Host операции ядра, которые нужны модулю для создания сессий
type Host interface {
	RequestSession(ep *switchcore.EndpointInterface, dir switchcore.Direction, flags switchcore.OriginateFlag, originationUUID string) (*switchcore.Session, error)
	DestroySession(s *switchcore.Session)
}

// MediaCore медиа подсистема ядра в том объеме, который использует модуль
type MediaCore interface {
	NewHandle(s *switchcore.Session, params media.Params) (*media.Handle, error)
	CheckDTMFType(s *switchcore.Session) media.DTMFType
	Ready(s *switchcore.Session, t media.Type) bool
	ReadFrame(ctx context.Context, s *switchcore.Session, flags media.IOFlag, streamID int, t media.Type) (*media.Frame, error)
	WriteFrame(s *switchcore.Session, frame *media.Frame, flags media.IOFlag, streamID int, t media.Type) error
	Break(s *switchcore.Session, t media.Type)
	KillSocket(s *switchcore.Session, t media.Type) error
	JitterBuffer(s *switchcore.Session, t media.Type) *media.JitterBuffer
}

// Config конфигурация модуля
type Config struct {
	// Name имя эндпоинта, уникальное в реестре ядра
	Name string

	// HeartbeatInterval период фоновой задачи
	HeartbeatInterval time.Duration

	// MediaParams параметры медиа handle для новых сессий
	MediaParams media.Params

	// DTMFType способ передачи DTMF, если канал не задает свой dtmf_type
	DTMFType string

	Logger     logging.Logger
	Registerer prometheus.Registerer

	// MediaCore заменяет медиа подсистему ядра; nil - используется ядро,
	// в которое загружен модуль
	MediaCore MediaCore
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Name:              DefaultName,
		HeartbeatInterval: DefaultHeartbeatInterval,
		MediaParams:       media.DefaultParams(),
	}
}

// lifecycle состояние одного цикла load/shutdown
type lifecycle struct {
	running bool
	started bool

	stop     chan struct{}
	exited   chan struct{}
	exitOnce sync.Once
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		running: true,
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (lc *lifecycle) markExited() {
	lc.exitOnce.Do(func() { close(lc.exited) })
}

// Module модуль эндпоинта echo. Несколько модулей с разными именами могут
// быть загружены в одно ядро.
type Module struct {
	cfg     Config
	log     logging.Logger
	metrics *moduleMetrics

	endpoint *switchcore.EndpointInterface
	host     Host
	media    MediaCore

	// mu защищает lc и endpoint
	mu sync.Mutex
	lc *lifecycle

	iterations atomic.Uint64
}

var (
	_ switchcore.RuntimeModule = (*Module)(nil)
	_ switchcore.IORoutines    = (*Module)(nil)
)

// New создает модуль; незаданные поля берутся из DefaultConfig
func New(cfg Config) *Module {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.MediaParams.PTime == 0 {
		cfg.MediaParams = def.MediaParams
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	return &Module{
		cfg:     cfg,
		log:     cfg.Logger.WithComponent("echo").WithFields(logging.String("endpoint", cfg.Name)),
		metrics: newModuleMetrics(cfg.Registerer, cfg.Name),
	}
}

// Name имя модуля и его эндпоинта
func (m *Module) Name() string { return m.cfg.Name }

// Endpoint зарегистрированный эндпоинт или nil, если модуль не загружен
func (m *Module) Endpoint() *switchcore.EndpointInterface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

// Iterations число итераций фоновой задачи
func (m *Module) Iterations() uint64 { return m.iterations.Load() }

// Load регистрирует эндпоинт модуля
func (m *Module) Load(ctx context.Context, mi *switchcore.ModuleInterface) error {
	m.log.Info(ctx, "загрузка модуля")

	lc := newLifecycle()
	m.mu.Lock()
	m.lc = lc
	m.mu.Unlock()

	ep, err := mi.CreateEndpoint(m.cfg.Name, m)
	if err != nil {
		m.mu.Lock()
		m.lc = nil
		m.mu.Unlock()
		m.log.LogError(ctx, err, "не удалось создать эндпоинт")
		return err
	}

	m.host = mi.Core()
	m.media = m.cfg.MediaCore
	if m.media == nil {
		m.media = mi.MediaCore()
	}
	m.mu.Lock()
	m.endpoint = ep
	m.mu.Unlock()

	m.log.Info(ctx, "модуль загружен")
	return nil
}

// Runtime фоновая задача модуля. Раз в HeartbeatInterval увеличивает счетчик
// итераций; завершается после Shutdown или отмены ctx и всегда возвращает
// StatusTerm.
func (m *Module) Runtime(ctx context.Context) switchcore.Status {
	m.mu.Lock()
	lc := m.lc
	if lc == nil {
		m.mu.Unlock()
		return switchcore.StatusTerm
	}
	if !lc.running {
		m.mu.Unlock()
		lc.markExited()
		return switchcore.StatusTerm
	}
	lc.started = true
	m.mu.Unlock()

	m.log.Debug(ctx, "runtime запущен", logging.Duration("interval", m.cfg.HeartbeatInterval))

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-lc.stop:
			break loop
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			n := m.iterations.Add(1)
			m.metrics.iterations.Inc()
			m.log.Info(ctx, "loop", logging.Uint64("n", n))
		}
	}

	m.log.Info(ctx, "runtime завершен", logging.Uint64("iterations", m.iterations.Load()))
	lc.markExited()
	return switchcore.StatusTerm
}

// Shutdown останавливает фоновую задачу и ждет ее завершения. Если задача
// не запускалась, модуль считается остановленным сразу.
func (m *Module) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	lc := m.lc
	if lc == nil {
		m.mu.Unlock()
		return nil
	}
	if lc.running {
		lc.running = false
		close(lc.stop)
	}
	started := lc.started
	m.endpoint = nil
	m.mu.Unlock()

	m.log.Info(ctx, "остановка модуля")
	if !started {
		lc.markExited()
	}

	select {
	case <-lc.exited:
		m.log.Info(ctx, "модуль остановлен")
		return nil
	case <-ctx.Done():
		return switchcore.WrapError(switchcore.StatusTimeout, "shutdown", "", "runtime модуля не завершился", ctx.Err())
	}
}
