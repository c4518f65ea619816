// server/cmd/api/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"spotmytrash-api-server/config"
	"spotmytrash-api-server/internal/api/handlers"
	"spotmytrash-api-server/internal/api/routes"
	"spotmytrash-api-server/internal/database"
	"spotmytrash-api-server/internal/garbage"
	"spotmytrash-api-server/internal/metrics"
	"spotmytrash-api-server/internal/notify"
	"spotmytrash-api-server/internal/offline"
	"spotmytrash-api-server/internal/routing"
	"spotmytrash-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			fx.WithLogger(func() fxevent.Logger {
				return &fxevent.ZapLogger{Logger: zap.L()}
			}),
			fx.Supply(cfg),
			fx.Provide(
				ProvideMetrics,
				ProvideStores,
				ProvideOfflineStore,
				ProvidePublisher,
				ProvideRouter,
				ProvideHub,
				ProvideHandlers,
				ProvideEngine,
			),
			fx.Invoke(StartServer),
		)
		app.Run()
		return app.Err()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func ProvideMetrics() (*metrics.Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return metrics.New(registry)
}

func ProvideStores(lc fx.Lifecycle, c config.Config) (*stores, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := openStores(ctx, c)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			db := st.Database(c)
			if db == nil {
				return nil
			}
			return database.EnsureIndexes(ctx, db)
		},
		OnStop: func(ctx context.Context) error {
			st.Close(ctx)
			return nil
		},
	})
	return st, nil
}

func ProvideOfflineStore(c config.Config) *offline.Store {
	return offline.New(c.Capture.OfflineDir)
}

// ProvidePublisher returns nil when no MQTT broker is configured.
func ProvidePublisher(lc fx.Lifecycle, c config.Config) (*notify.Publisher, error) {
	if c.MQTT.Broker == "" {
		return nil, nil
	}
	pub, err := notify.Dial(c.MQTT)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pub.Close()
			return nil
		},
	})
	return pub, nil
}

func ProvideRouter(c config.Config, st *stores, local *offline.Store, m *metrics.Metrics, pub *notify.Publisher) *routing.Router {
	observers := []routing.Observer{m}
	if pub != nil {
		observers = append(observers, pub)
	}
	return newRouter(c, st, local, observers...)
}

func ProvideHub(m *metrics.Metrics) *socket.Hub {
	return socket.NewHub(m.WebsocketClients)
}

func ProvideHandlers(c config.Config, st *stores, local *offline.Store, router *routing.Router, hub *socket.Hub, m *metrics.Metrics) routes.Handlers {
	points := &handlers.GarbagePointHandler{
		Docs:      st.Docs,
		PhotoURLs: garbage.NewPhotoURLs(st.Docs, c.Repository.PhotoURLCacheTTL),
		Observer:  m,
		OrderBy:   c.Repository.OrderBy,
		Limit:     c.Repository.Limit,
	}
	return routes.Handlers{
		Capture: &handlers.CaptureHandler{
			Router:         router,
			Device:         c.Capture.Device,
			FixTimeout:     c.Capture.FixTimeout,
			MaxUploadBytes: c.Server.MaxUploadMB << 20,
		},
		Points:       points,
		OfflineQueue: &handlers.OfflineQueueHandler{Store: local},
		WebSocket:    &handlers.WebSocketHandler{Hub: hub, Points: points},
		Health: &handlers.HealthHandler{
			Checks: map[string]func(context.Context) error{
				"docstore":  st.Docs.Ping,
				"blobstore": st.Blobs.Ping,
			},
			Timeout: c.Mongo.PingTimeout,
		},
	}
}

func ProvideEngine(c config.Config, h routes.Handlers, m *metrics.Metrics) *gin.Engine {
	if c.Log.Format != "console" {
		gin.SetMode(gin.ReleaseMode)
	}
	return routes.SetupRouter(c.Server, h, m)
}

func StartServer(lc fx.Lifecycle, c config.Config, engine *gin.Engine, hub *socket.Hub) {
	srv := &http.Server{
		Addr:              ":" + c.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				zap.L().Info("server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.L().Fatal("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("shutting down server")
			hub.CloseAll()
			return srv.Shutdown(ctx)
		},
	})
}
