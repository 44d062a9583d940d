package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/testbench/internal/server"
	"github.com/iota-uz/testbench/migrations"
	"github.com/iota-uz/testbench/modules"
	"github.com/iota-uz/testbench/modules/core/seed"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/logging"
	"github.com/iota-uz/testbench/pkg/memdb"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	opts := &application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	}
	if conf.UsesMemoryStore() {
		opts.Memory = memdb.New()
		logger.Warn("STORE_BACKEND=memory: data lives in process memory and is lost on exit")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		pool, err := pgxpool.New(ctx, conf.Database.Opts)
		cancel()
		if err != nil {
			panic(err)
		}
		defer pool.Close()
		opts.Pool = pool
	}

	app := application.New(opts)
	app.Migrations().RegisterSchema(migrations.FS)
	if err := modules.Load(app, modules.BuiltInModules()...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	if opts.Memory != nil {
		org, users, err := seed.Demo(context.Background(), app)
		if err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
		for _, u := range users {
			logger.WithField("organization", org.Name).Infof("demo user %s id=%s", u.Email(), u.ID())
		}
	}

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(ctx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
