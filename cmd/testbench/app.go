package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/testbench/migrations"
	"github.com/iota-uz/testbench/modules"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/eventbus"
)

var errMemoryStore = errors.New("STORE_BACKEND=memory keeps nothing between runs; point the CLI at postgres")

// openApp connects to postgres and loads the built-in modules. The returned context
// carries the pool so services can open transactions.
func openApp(ctx context.Context) (application.Application, context.Context, func(), error) {
	conf := configuration.Use()
	if conf.UsesMemoryStore() {
		return nil, ctx, nil, withCode(exitUsage, errMemoryStore)
	}
	logger := conf.Logger()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	cancel()
	if err != nil {
		return nil, ctx, nil, withCode(exitDB, fmt.Errorf("connect: %w", err))
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	app.Migrations().RegisterSchema(migrations.FS)
	if err := modules.Load(app, modules.BuiltInModules()...); err != nil {
		pool.Close()
		return nil, ctx, nil, withCode(exitDB, fmt.Errorf("load modules: %w", err))
	}
	return app, composables.WithPool(ctx, pool), pool.Close, nil
}
