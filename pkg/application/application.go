package application

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/eventbus"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/repo"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Name() string
	Register(app Application) error
}

type Application interface {
	DB() *pgxpool.Pool
	// Memory is the in-process store when the service runs without Postgres, nil otherwise.
	Memory() *memdb.DB
	Transactor() repo.Transactor
	EventPublisher() eventbus.EventBus
	Logger() *logrus.Logger
	Migrations() MigrationManager
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...any)
	Service(service any) any
	Services() map[reflect.Type]any
}

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	Memory   *memdb.DB
	EventBus eventbus.EventBus
	Logger   *logrus.Logger
}

func New(opts *ApplicationOptions) Application {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.NewEventPublisher(logger)
	}
	var tx repo.Transactor = composables.PoolTransactor{}
	if opts.Memory != nil {
		tx = opts.Memory
	}
	return &application{
		pool:           opts.Pool,
		memory:         opts.Memory,
		transactor:     tx,
		eventPublisher: bus,
		logger:         logger,
		controllers:    make(map[string]Controller),
		services:       make(map[reflect.Type]any),
		migrations:     NewMigrationManager(opts.Pool, logger),
	}
}

// application with a dynamically extendable service registry
type application struct {
	pool           *pgxpool.Pool
	memory         *memdb.DB
	transactor     repo.Transactor
	eventPublisher eventbus.EventBus
	logger         *logrus.Logger
	migrations     MigrationManager

	mu           sync.Mutex
	services     map[reflect.Type]any
	controllers  map[string]Controller
	controllerIx []string
	middleware   []mux.MiddlewareFunc
}

func (app *application) DB() *pgxpool.Pool { return app.pool }
func (app *application) Memory() *memdb.DB { return app.memory }
func (app *application) Transactor() repo.Transactor { return app.transactor }
func (app *application) EventPublisher() eventbus.EventBus { return app.eventPublisher }
func (app *application) Logger() *logrus.Logger { return app.logger }
func (app *application) Migrations() MigrationManager { return app.migrations }
func (app *application) Middleware() []mux.MiddlewareFunc { return app.middleware }
func (app *application) Services() map[reflect.Type]any { return app.services }

// Controllers returns controllers in registration order.
func (app *application) Controllers() []Controller {
	out := make([]Controller, 0, len(app.controllerIx))
	for _, key := range app.controllerIx {
		out = append(out, app.controllers[key])
	}
	return out
}

// RegisterControllers replaces a controller registered under the same key.
func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		if _, exists := app.controllers[c.Key()]; !exists {
			app.controllerIx = append(app.controllerIx, c.Key())
		}
		app.controllers[c.Key()] = c
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...any) {
	app.mu.Lock()
	defer app.mu.Unlock()
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

// Service retrieves a service by its type
func (app *application) Service(service any) any {
	app.mu.Lock()
	defer app.mu.Unlock()
	serviceType := reflect.TypeOf(service)
	svc, exists := app.services[serviceType]
	if !exists {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) lookup(key reflect.Type) (any, bool) {
	app.mu.Lock()
	defer app.mu.Unlock()
	svc, ok := app.services[key]
	return svc, ok
}

func (app *application) store(key reflect.Type, svc any) any {
	app.mu.Lock()
	defer app.mu.Unlock()
	if existing, ok := app.services[key]; ok {
		return existing
	}
	app.services[key] = svc
	return svc
}

type registry interface {
	lookup(key reflect.Type) (any, bool)
	store(key reflect.Type, svc any) any
}

// Resolve returns the service registered under T, building and registering it on
// first use. Modules use it to share one repository instance per store.
func Resolve[T any](app Application, build func() T) T {
	reg, ok := app.(registry)
	if !ok {
		return build()
	}
	key := reflect.TypeOf((*T)(nil)).Elem()
	if svc, ok := reg.lookup(key); ok {
		return svc.(T)
	}
	return reg.store(key, build()).(T)
}

// Health reports whether the backing store answers.
func Health(ctx context.Context, app Application) error {
	if app.Memory() != nil {
		return nil
	}
	if app.DB() == nil {
		return fmt.Errorf("database pool is not configured")
	}
	return app.DB().Ping(ctx)
}

// HealthHandler serves GET /health.
func HealthHandler(app Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := Health(r.Context(), app); err != nil {
			composables.UseLogger(r.Context()).WithError(err).Error("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
