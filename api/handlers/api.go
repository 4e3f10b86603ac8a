package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linesmerrill/lead-push/api"
	"github.com/linesmerrill/lead-push/config"
	"github.com/linesmerrill/lead-push/databases"
	"github.com/linesmerrill/lead-push/logging"
	"github.com/linesmerrill/lead-push/push"
	"github.com/linesmerrill/lead-push/registry"
	"github.com/linesmerrill/lead-push/transport"
)

// App stores the router and its collaborators, so they can be reused
type App struct {
	Router     *mux.Router
	Config     config.Config
	Registry   registry.Registry
	Engine     Deliverer
	Hub        *ForegroundHub
	Guard      *api.Guard
	Prometheus *prometheus.Registry

	httpMetrics *api.HTTPMetrics
	dbClient    databases.ClientHelper
}

// New creates a new mux router and all the routes. Collaborators left nil
// are built from Config.
func (a *App) New() *mux.Router {
	a.defaults()

	r := mux.NewRouter()
	r.Use(a.httpMetrics.Middleware)

	// healthchex
	r.HandleFunc("/health", api.HealthCheckHandler)
	r.Handle("/metrics", promhttp.HandlerFor(a.Prometheus, promhttp.HandlerOpts{}))
	r.Handle("/ws/push", a.Hub.ServeWS(a.Guard)).Methods("GET")

	p := Push{Registry: a.Registry, Engine: a.Engine, Hub: a.Hub, VAPID: a.Config.VAPID}

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))

	apiCreate.Handle("/push/vapid-public-key", http.HandlerFunc(p.VAPIDPublicKeyHandler)).Methods("GET")
	apiCreate.Handle("/push/devices", a.Guard.Middleware(http.HandlerFunc(p.SubscribeDeviceHandler))).Methods("POST")
	apiCreate.Handle("/push/devices", a.Guard.Middleware(http.HandlerFunc(p.ListDevicesHandler))).Methods("GET")
	apiCreate.Handle("/push/devices/{device_id}", a.Guard.Middleware(http.HandlerFunc(p.UnsubscribeDeviceHandler))).Methods("DELETE")
	apiCreate.Handle("/push/users/{user_id}/deliver", a.Guard.Middleware(http.HandlerFunc(p.DeliverHandler))).Methods("POST")

	return r
}

func (a *App) defaults() {
	if a.Prometheus == nil {
		a.Prometheus = prometheus.NewRegistry()
	}
	if a.httpMetrics == nil {
		a.httpMetrics = api.NewHTTPMetrics(a.Prometheus)
	}
	if a.Registry == nil {
		a.Registry = registry.NewMemoryRegistry()
	}
	if a.Guard == nil {
		a.Guard = api.NewGuard(&a.Config)
	}
	if a.Hub == nil {
		a.Hub = NewForegroundHub()
	}
	if a.Engine == nil {
		a.Engine = push.NewEngine(a.Registry,
			transport.NewWebPush(a.Config.VAPID, a.Config.Push),
			a.Config.VAPID,
			push.WithMaxConcurrency(a.Config.Push.MaxConcurrency),
			push.WithLogger(logging.New("push")),
			push.WithMetrics(push.NewMetrics(a.Prometheus)),
		)
	}
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	if !a.Config.VAPID.Configured() {
		// deliver and the public key endpoint answer 503 until keys are set
		zap.S().Warn("VAPID keys are not configured, push delivery is disabled")
	}

	switch a.Config.RegistryBackend {
	case "memory":
		a.Registry = registry.NewMemoryRegistry()
		zap.S().Info("lead-push is using the in-memory device registry")
	case "mongo", "":
		reg, err := a.connectMongo()
		if err != nil {
			return err
		}
		a.Registry = reg
	default:
		return fmt.Errorf("unknown registry backend %q", a.Config.RegistryBackend)
	}

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) connectMongo() (registry.Registry, error) {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With("error", err).Error("failed to create new client")
		return nil, err
	}

	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()

	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With("error", err).Error("failed to connect to database")
		return nil, err
	}
	a.dbClient = client
	zap.S().Info("lead-push has connected to the database")

	deviceDB := databases.NewDeviceDatabase(databases.NewDatabase(&a.Config, client))
	if err := deviceDB.EnsureIndexes(ctx); err != nil {
		zap.S().With("error", err).Error("failed to create device indexes")
		return nil, err
	}
	return registry.NewMongoRegistry(deviceDB), nil
}

// Close releases the database connection
func (a *App) Close(ctx context.Context) error {
	if a.dbClient == nil {
		return nil
	}
	return a.dbClient.Disconnect(ctx)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}
