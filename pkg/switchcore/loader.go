package switchcore

import (
	"context"
	"slices"

	"github.com/arzzra/echo_endpoint/pkg/logging"
)

// Module загружаемый модуль. Протокол: Load, затем (для RuntimeModule)
// Runtime в отдельной горутине, при выгрузке Shutdown.
type Module interface {
	Name() string
	Load(ctx context.Context, mi *ModuleInterface) error
	Shutdown(ctx context.Context) error
}

// RuntimeModule модуль с долгоживущей фоновой задачей. Ядро повторно
// вызывает Runtime, пока он не вернет StatusTerm.
type RuntimeModule interface {
	Module
	Runtime(ctx context.Context) Status
}

type loadedModule struct {
	module    Module
	endpoints []*EndpointInterface
	cancel    context.CancelFunc
	done      chan struct{}
}

// LoadModule загружает модуль и регистрирует его эндпоинты.
// При ошибке Load ничего не регистрируется.
func (c *Core) LoadModule(ctx context.Context, m Module) error {
	name := m.Name()
	if name == "" {
		return NewError(StatusFalse, "load_module", "", "пустое имя модуля")
	}

	c.mu.RLock()
	closed := c.closed
	_, loaded := c.modules[name]
	c.mu.RUnlock()
	if closed {
		return NewError(StatusTerm, "load_module", "", "ядро остановлено")
	}
	if loaded {
		return NewError(StatusInUse, "load_module", "", "модуль "+name+" уже загружен")
	}

	mi := newModuleInterface(name, c)
	if err := m.Load(ctx, mi); err != nil {
		c.log.LogError(ctx, err, "загрузка модуля не удалась", logging.String("module", name))
		return WrapError(StatusOf(err), "load_module", "", "модуль "+name, err)
	}

	endpoints := mi.pending()

	c.mu.Lock()
	conflict := c.closed
	if _, ok := c.modules[name]; ok {
		conflict = true
	}
	for _, ep := range endpoints {
		if _, ok := c.endpoints[ep.Name]; ok {
			conflict = true
		}
	}
	if conflict {
		c.mu.Unlock()
		if err := m.Shutdown(ctx); err != nil {
			c.log.LogError(ctx, err, "shutdown после неудачной регистрации", logging.String("module", name))
		}
		return NewError(StatusInUse, "load_module", "", "модуль "+name+": конфликт регистрации")
	}

	lm := &loadedModule{module: m, endpoints: endpoints, done: make(chan struct{})}
	for _, ep := range endpoints {
		c.endpoints[ep.Name] = ep
	}
	c.modules[name] = lm
	c.order = append(c.order, name)
	c.mu.Unlock()

	if rm, ok := m.(RuntimeModule); ok {
		runCtx, cancel := context.WithCancel(context.Background())
		lm.cancel = cancel
		go c.runModule(runCtx, name, rm, lm.done)
	} else {
		close(lm.done)
	}

	c.log.Info(ctx, "модуль загружен",
		logging.String("module", name),
		logging.Int("endpoints", len(endpoints)),
	)
	return nil
}

func (c *Core) runModule(ctx context.Context, name string, rm RuntimeModule, done chan struct{}) {
	defer close(done)
	for {
		st := rm.Runtime(ctx)
		if st == StatusTerm {
			c.log.Debug(ctx, "runtime модуля завершен", logging.String("module", name))
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.log.Debug(ctx, "перезапуск runtime модуля",
			logging.String("module", name),
			logging.String("status", st.String()),
		)
	}
}

// UnloadModule снимает эндпоинты модуля, уничтожает их сессии, вызывает
// Shutdown модуля и дожидается завершения его runtime
func (c *Core) UnloadModule(ctx context.Context, name string) error {
	c.mu.Lock()
	lm, ok := c.modules[name]
	if !ok {
		c.mu.Unlock()
		return NewError(StatusNotFound, "unload_module", "", "модуль "+name+" не загружен")
	}
	delete(c.modules, name)
	c.order = slices.DeleteFunc(c.order, func(n string) bool { return n == name })
	for _, ep := range lm.endpoints {
		if c.endpoints[ep.Name] == ep {
			delete(c.endpoints, ep.Name)
		}
	}
	var victims []*Session
	for _, s := range c.sessions {
		if slices.Contains(lm.endpoints, s.endpoint) {
			victims = append(victims, s)
		}
	}
	c.mu.Unlock()

	for _, s := range victims {
		s.channel.RequestHangup(CauseManagerRequest)
		c.DestroySession(s)
	}

	shutdownErr := lm.module.Shutdown(ctx)
	if lm.cancel != nil {
		lm.cancel()
	}

	select {
	case <-lm.done:
	case <-ctx.Done():
		return WrapError(StatusTimeout, "unload_module", "", "runtime модуля "+name+" не завершился", ctx.Err())
	}

	if shutdownErr != nil {
		c.log.LogError(ctx, shutdownErr, "shutdown модуля завершился с ошибкой", logging.String("module", name))
		return WrapError(StatusOf(shutdownErr), "unload_module", "", "модуль "+name, shutdownErr)
	}
	c.log.Info(ctx, "модуль выгружен", logging.String("module", name))
	return nil
}

// Modules имена загруженных модулей в порядке загрузки
func (c *Core) Modules() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}
