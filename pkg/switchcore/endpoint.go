package switchcore

import (
	"sync"

	"github.com/arzzra/echo_endpoint/pkg/logging"
)

// EndpointInterface зарегистрированный в ядре эндпоинт
type EndpointInterface struct {
	Name     string
	Module   string
	Routines IORoutines
}

// ModuleInterface передается модулю при загрузке. Эндпоинты, созданные через
// него, попадают в реестр ядра только после успешного Load.
type ModuleInterface struct {
	name string
	core *Core

	mu        sync.Mutex
	endpoints []*EndpointInterface
}

func newModuleInterface(name string, core *Core) *ModuleInterface {
	return &ModuleInterface{name: name, core: core}
}

// ModuleName имя загружаемого модуля
func (mi *ModuleInterface) ModuleName() string { return mi.name }

// Core ядро, в которое загружается модуль
func (mi *ModuleInterface) Core() *Core { return mi.core }

// MediaCore медиа подсистема ядра
func (mi *ModuleInterface) MediaCore() *MediaCore { return mi.core.Media() }

// Logger логгер модуля
func (mi *ModuleInterface) Logger() logging.Logger {
	return mi.core.log.WithComponent(mi.name)
}

// CreateEndpoint объявляет эндпоинт модуля. Имя должно быть уникально среди
// уже зарегистрированных эндпоинтов и эндпоинтов этого же модуля.
func (mi *ModuleInterface) CreateEndpoint(name string, routines IORoutines) (*EndpointInterface, error) {
	if name == "" {
		return nil, NewError(StatusFalse, "create_endpoint", "", "пустое имя эндпоинта")
	}
	if routines == nil {
		return nil, NewError(StatusFalse, "create_endpoint", "", "эндпоинт "+name+" без io routines")
	}
	if mi.core.Endpoint(name) != nil {
		return nil, NewError(StatusInUse, "create_endpoint", "", "эндпоинт "+name+" уже зарегистрирован")
	}

	mi.mu.Lock()
	defer mi.mu.Unlock()
	for _, ep := range mi.endpoints {
		if ep.Name == name {
			return nil, NewError(StatusInUse, "create_endpoint", "", "эндпоинт "+name+" уже объявлен модулем")
		}
	}

	ep := &EndpointInterface{Name: name, Module: mi.name, Routines: routines}
	mi.endpoints = append(mi.endpoints, ep)
	return ep, nil
}

func (mi *ModuleInterface) pending() []*EndpointInterface {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return append([]*EndpointInterface(nil), mi.endpoints...)
}
