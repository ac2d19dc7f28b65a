package main

import (
	"coderooms/config"
	"coderooms/core"
	"coderooms/handlers/api/rooms"
	"coderooms/handlers/websocket"
	"coderooms/metrics"
	registry "coderooms/rooms"
	"coderooms/stores"
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const shutdownTimeout = 10 * time.Second

func setupRouter(cfg *config.Config, live rooms.LiveRooms, history core.ActivityStore, collector *metrics.Collector, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(collector.Middleware)

	corsOptions := cors.Options{
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsOptions.AllowedOrigins = cfg.AllowedOrigins
	} else {
		corsOptions.AllowedOrigins = []string{"tauri://localhost"}
		corsOptions.AllowOriginFunc = allowLocalOrigin
	}
	r.Use(cors.Handler(corsOptions))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler(gatherer))

	r.Get("/api/rooms", rooms.HandleListRooms(live, history))
	r.Route("/api/rooms/{roomId}", func(r chi.Router) {
		r.Get("/", rooms.HandleGetRoom(live, history))
		r.Delete("/", rooms.HandleForgetRoom(history))
	})

	return r
}

func allowLocalOrigin(r *http.Request, origin string) bool {
	if origin == "" {
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	switch parsed.Scheme {
	case "http", "https":
		switch parsed.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	case "tauri":
		return parsed.Hostname() == "localhost"
	}

	return false
}

func waitForShutdown(ctx context.Context, srv *http.Server, ioo *socketio.Server) {
	<-ctx.Done()
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	ioo.Close(nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	cfg.ConfigureLogging()

	history, err := stores.GetStore()
	if err != nil {
		logrus.WithField("event", "open store").Fatal(err)
	}
	defer history.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	recorder := stores.NewRecorder(history, cfg.QueueSize, time.Second)
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(ctx)
	}()

	ioo := websocket.NewSocketServer(cfg.AllowedOrigins)
	gateway := websocket.NewGateway(registry.NewRegistry(), websocket.NewSocketTransport(ioo), websocket.Options{
		CreatePolicy: cfg.CreatePolicy,
		Placeholder:  cfg.Placeholder,
		QueueSize:    cfg.QueueSize,
		Recorder:     recorder,
		Observer:     collector,
	})
	go gateway.Run(ctx)
	websocket.Attach(ioo, gateway)

	r := setupRouter(cfg, gateway, history, collector, reg)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	logrus.WithFields(logrus.Fields{
		"addr":          cfg.ListenAddr,
		"create_policy": cfg.CreatePolicy,
	}).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(ctx, srv, ioo)
	<-recorderDone
}
