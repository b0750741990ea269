package controller

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Constructor builds a controller instance from its config.
type Constructor func(deps Deps, conf Config, logger logging.Logger) (Controller, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a controller type available to New. It is meant to be
// called from package init functions and panics on duplicate or empty
// registrations, mirroring the resource registry this module plugs into.
func Register(typeName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if typeName == "" || ctor == nil {
		panic(errors.New("controller registration requires a type name and a constructor"))
	}
	if _, ok := registry[typeName]; ok {
		panic(errors.Errorf("controller type %q registered twice", typeName))
	}
	registry[typeName] = ctor
}

// New builds the controller described by conf.
func New(deps Deps, conf Config, logger logging.Logger) (Controller, error) {
	if conf.Name == "" {
		return nil, errors.New("controller config needs a name")
	}
	if conf.Type == "" {
		return nil, errors.Errorf("controller %q needs a type", conf.Name)
	}
	registryMu.RLock()
	ctor, ok := registry[conf.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no controller type %q (have %v)", conf.Type, Types())
	}
	c, err := ctor(deps, conf, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "controller %q", conf.Name)
	}
	return c, nil
}

// Types lists the registered controller types in sorted order.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
