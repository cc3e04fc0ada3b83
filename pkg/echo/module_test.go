package echo_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/echo_endpoint/pkg/echo"
	"github.com/arzzra/echo_endpoint/pkg/switchcore"
)

// withoutRuntime скрывает Runtime от загрузчика, так что фоновая задача
// никогда не запускается
type withoutRuntime struct {
	mod *echo.Module
}

func (w withoutRuntime) Name() string { return w.mod.Name() }

func (w withoutRuntime) Load(ctx context.Context, mi *switchcore.ModuleInterface) error {
	return w.mod.Load(ctx, mi)
}

func (w withoutRuntime) Shutdown(ctx context.Context) error { return w.mod.Shutdown(ctx) }

func TestNewDefaults(t *testing.T) {
	mod := echo.New(echo.Config{})
	assert.Equal(t, echo.DefaultName, mod.Name())
	assert.Nil(t, mod.Endpoint())
	assert.Zero(t, mod.Iterations())

	// Shutdown до загрузки ничего не ждет
	assert.NoError(t, mod.Shutdown(context.Background()))
}

func TestLoadRegistersEndpoint(t *testing.T) {
	core := switchcore.NewCore(switchcore.Config{})
	mod := echo.New(echo.Config{HeartbeatInterval: time.Hour})

	require.NoError(t, core.LoadModule(context.Background(), mod))
	ep := core.Endpoint("echo")
	require.NotNil(t, ep)
	assert.Same(t, ep, mod.Endpoint())
	assert.Equal(t, "echo", ep.Module)

	require.NoError(t, core.UnloadModule(context.Background(), "echo"))
	assert.Nil(t, core.Endpoint("echo"))
	assert.Nil(t, mod.Endpoint(), "после выгрузки модуль не загружен")

	s, err := mod.OutgoingChannel(context.Background(), &switchcore.OutgoingRequest{})
	assert.Nil(t, s)
	assert.Equal(t, switchcore.CauseDestinationOutOfOrder, switchcore.CauseOf(err))
}

// TestDuplicateNameFailsLoad второй модуль с тем же именем не загружается,
// первый остается рабочим
func TestDuplicateNameFailsLoad(t *testing.T) {
	core := switchcore.NewCore(switchcore.Config{})
	defer core.Shutdown(context.Background())

	first := echo.New(echo.Config{HeartbeatInterval: time.Hour})
	require.NoError(t, core.LoadModule(context.Background(), first))

	second := echo.New(echo.Config{HeartbeatInterval: time.Hour})
	require.Error(t, core.LoadModule(context.Background(), second))
	assert.Nil(t, second.Endpoint())
	assert.Same(t, first.Endpoint(), core.Endpoint("echo"))

	// Модули с разными именами сосуществуют
	third := echo.New(echo.Config{Name: "echo2", HeartbeatInterval: time.Hour})
	require.NoError(t, core.LoadModule(context.Background(), third))
	assert.ElementsMatch(t, []string{"echo", "echo2"}, core.Modules())
}

// TestShutdownStopsRuntime после возврата Shutdown счетчик итераций больше
// не меняется
func TestShutdownStopsRuntime(t *testing.T) {
	reg := prometheus.NewRegistry()
	core := switchcore.NewCore(switchcore.Config{})
	mod := echo.New(echo.Config{HeartbeatInterval: time.Millisecond, Registerer: reg})
	require.NoError(t, core.LoadModule(context.Background(), mod))

	require.Eventually(t, func() bool { return mod.Iterations() >= 3 }, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, mod.Shutdown(ctx))

	stopped := mod.Iterations()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, mod.Iterations(), "фоновая задача не выполняется после Shutdown")

	count, err := testutil.GatherAndCount(reg, "echo_runtime_iterations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Повторный Shutdown и выгрузка ядром проходят без ожидания
	require.NoError(t, mod.Shutdown(ctx))
	require.NoError(t, core.UnloadModule(ctx, "echo"))
	assert.Equal(t, stopped, mod.Iterations())
}

func TestUnloadWaitsForRuntime(t *testing.T) {
	core := switchcore.NewCore(switchcore.Config{})
	mod := echo.New(echo.Config{HeartbeatInterval: time.Millisecond})
	require.NoError(t, core.LoadModule(context.Background(), mod))
	require.Eventually(t, func() bool { return mod.Iterations() > 0 }, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, core.UnloadModule(ctx, "echo"))

	stopped := mod.Iterations()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, mod.Iterations())
}

// TestShutdownWithoutRuntime если фоновая задача не запускалась, Shutdown
// сам отмечает модуль остановленным
func TestShutdownWithoutRuntime(t *testing.T) {
	core := switchcore.NewCore(switchcore.Config{})
	mod := echo.New(echo.Config{HeartbeatInterval: time.Millisecond})
	require.NoError(t, core.LoadModule(context.Background(), withoutRuntime{mod: mod}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, core.UnloadModule(ctx, "echo"))

	// Запоздавший Runtime сразу завершается
	assert.Equal(t, switchcore.StatusTerm, mod.Runtime(context.Background()))
	assert.Zero(t, mod.Iterations())
}

func TestRuntimeStopsOnContext(t *testing.T) {
	core := switchcore.NewCore(switchcore.Config{})
	mod := echo.New(echo.Config{HeartbeatInterval: time.Hour})
	require.NoError(t, core.LoadModule(context.Background(), withoutRuntime{mod: mod}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan switchcore.Status, 1)
	go func() { done <- mod.Runtime(ctx) }()

	cancel()
	select {
	case st := <-done:
		assert.Equal(t, switchcore.StatusTerm, st)
	case <-time.After(time.Second):
		t.Fatal("Runtime не завершился после отмены контекста")
	}

	require.NoError(t, core.Shutdown(context.Background()))
}
