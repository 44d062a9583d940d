package modules

import (
	"github.com/iota-uz/testbench/modules/catalog"
	"github.com/iota-uz/testbench/modules/core"
	"github.com/iota-uz/testbench/modules/execution"
	"github.com/iota-uz/testbench/modules/logging"
	"github.com/iota-uz/testbench/pkg/application"
)

// BuiltInModules returns the service modules in registration order: core provides
// users and the request principal, catalog and execution share the reconciler, and
// logging subscribes to the events the others publish.
func BuiltInModules() []application.Module {
	return []application.Module{
		core.NewModule(),
		catalog.NewModule(&catalog.ModuleOptions{
			Reconciler: execution.Reconciler,
		}),
		execution.NewModule(),
		logging.NewModule(),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
