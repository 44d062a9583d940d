package server

import (
	"slices"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/iota-uz/testbench/modules/core/presentation/controllers"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/metrics"
	"github.com/iota-uz/testbench/pkg/middleware"
	"github.com/iota-uz/testbench/pkg/routing"
	"github.com/iota-uz/testbench/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
}

// Default builds the HTTP server. The stack set up here runs before the middleware
// modules registered (principal, CSRF), so every request already carries its logger,
// span, pool and params by then.
func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	rules, err := routing.LoadAllowlist("", "server")
	if err != nil {
		return nil, err
	}
	opsPaths := routing.Prefixes(rules, routing.RouteClassOps)
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
		if !slices.Contains(opsPaths, conf.Prometheus.Path) {
			opsPaths = append(opsPaths, conf.Prometheus.Path)
		}
	}

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, middleware.DefaultLoggerOptions()),

		middleware.TracedMiddleware("database"),
		middleware.Provide(constants.AppKey, app),
	}
	if pool := app.DB(); pool != nil {
		middlewares = append(middlewares, middleware.Provide(constants.PoolKey, pool))
	}
	middlewares = append(middlewares,
		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.CORSOrigins...),

		middleware.TracedMiddleware("opsGuard"),
		middleware.OpsGuard(conf, opsPaths...),
	)

	if conf.RateLimit.Enabled {
		var store limiter.Store

		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}

		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Store:             store,
			}),
		)
	}

	middlewares = append(middlewares,
		middleware.TracedMiddleware("requestParams"),
		middleware.RequestParams(),
		middleware.TracedMiddleware("principal"),
	)

	serverInstance := server.NewHTTPServer(
		app,
		controllers.NotFound(),
		controllers.MethodNotAllowed(),
	)
	serverInstance.Middlewares = slices.Concat(middlewares, serverInstance.Middlewares)
	serverInstance.ReadTimeout = conf.ReadTimeout
	serverInstance.WriteTimeout = conf.WriteTimeout
	return serverInstance, nil
}
