package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/dmarjanovic/gopress/internal/auth"
	"github.com/dmarjanovic/gopress/internal/categories"
	"github.com/dmarjanovic/gopress/internal/config"
	"github.com/dmarjanovic/gopress/internal/db"
	"github.com/dmarjanovic/gopress/internal/middleware"
	"github.com/dmarjanovic/gopress/internal/posts"
	"github.com/dmarjanovic/gopress/internal/telemetry/metrics"
	"github.com/dmarjanovic/gopress/internal/uploads"
	"github.com/dmarjanovic/gopress/internal/users"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config          *config.Config
	mongoDB         *mongo.Database
	mongoDisconnect func(context.Context) error

	authService *auth.Service
	uploadsSink *uploads.DiskSink

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
}

type NewServerParams struct {
	Config      *config.Config
	JWTSecret   string
	VersionInfo string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	mongoDB, mongoDisconnect, err := db.NewMongoDatabase(ctx, db.NewMongoParams{
		URI:    params.Config.MongoURI,
		DBName: params.Config.MongoDBName,
	})
	if err != nil {
		return nil, fmt.Errorf("new mongo database: %w", err)
	}

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	uploadsSink, err := uploads.NewDiskSink(params.Config.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("new uploads sink: %w", err)
	}

	return &Server{
		config:          params.Config,
		versionInfo:     params.VersionInfo,
		mongoDB:         mongoDB,
		mongoDisconnect: mongoDisconnect,
		authService:     auth.NewService([]byte(params.JWTSecret), auth.DefaultTTL),
		uploadsSink:     uploadsSink,
		metricsManager:  metricsManager,
		promRegistry:    promRegistry,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	postsHandler := posts.NewHandler(posts.NewHandlerParams{
		Service:        posts.NewService(posts.NewRepo(s.mongoDB)),
		Sink:           s.uploadsSink,
		MetricsManager: s.metricsManager,
		DefaultImage:   s.config.DefaultPostImage,
		UploadsPath:    s.config.UploadsServePath,
		MaxUploadBytes: s.config.MaxUploadSizeMB << 20,
	})
	postsHandler.SetupRoutes(r)

	categoriesHandler := categories.NewHandler(categories.NewRepo(s.mongoDB))
	categoriesHandler.SetupRoutes(r)

	usersHandler := users.NewHandler(users.NewRepo(s.mongoDB), s.authService)
	usersHandler.SetupRoutes(r)

	// uploaded images, served from the fixed path
	r.PathPrefix(s.config.UploadsServePath).Handler(
		http.StripPrefix(
			s.config.UploadsServePath,
			http.FileServer(http.Dir(s.uploadsSink.Root())),
		),
	).Methods("GET").Name("uploads")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.mongoDisconnect != nil {
		log.Debugln("disconnecting mongo client ...")
		if err := s.mongoDisconnect(ctx); err != nil {
			log.Errorf("failed to disconnect mongo client: %s", err)
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
