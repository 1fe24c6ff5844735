package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/contactdesk/internal/admin"
	"github.com/2beens/contactdesk/internal/auth"
	"github.com/2beens/contactdesk/internal/config"
	"github.com/2beens/contactdesk/internal/contact"
	"github.com/2beens/contactdesk/internal/middleware"
	"github.com/2beens/contactdesk/internal/store"
	"github.com/2beens/contactdesk/internal/telemetry/metrics"
	"github.com/2beens/contactdesk/internal/telemetry/tracing"
	"github.com/2beens/contactdesk/internal/views"
	"github.com/2beens/contactdesk/pkg"
)

const serviceName = "contactdesk"

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config      *config.Config
	store       store.Store
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	sessions    *auth.SessionManager
	authService *auth.Service
	cookieCodec *auth.CookieCodec
	renderer    *views.Renderer

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config *config.Config
	// Store and SessionStore replace the ones selected by Config when set
	Store        store.Store
	SessionStore auth.SessionStore
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	s := &Server{
		config: cfg,
		store:  params.Store,
	}

	if params.SessionStore == nil && cfg.SessionStore == config.SessionStoreRedis {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := s.redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(cfg.HoneycombEnabled, serviceName, s.redisClient)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.otelShutdown = otelShutdown

	var collectors []prometheus.Collector
	if s.store == nil {
		s.store, s.dbPool, err = OpenStore(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		if s.dbPool != nil {
			collectors = append(collectors, pgxpoolprometheus.NewCollector(
				s.dbPool,
				map[string]string{"db_name": cfg.PostgresDBName},
			))
		}
	}

	s.promRegistry = metrics.SetupPrometheus(collectors...)
	s.metricsManager = metrics.NewManager(serviceName, "main", s.promRegistry)
	s.metricsManager.GaugeLifeSignal.Set(0) // set to 1 once serving

	if err := s.initStore(ctx); err != nil {
		s.Close()
		return nil, err
	}

	sessionStore := params.SessionStore
	if sessionStore == nil {
		if s.redisClient != nil {
			sessionStore = auth.NewRedisSessionStore(s.redisClient)
		} else {
			sessionStore = auth.NewMemorySessionStore(auth.DefaultMemoryStoreSize)
		}
	}

	s.sessions = auth.NewSessionManager(sessionStore, auth.SessionTTL)
	s.authService = auth.NewService(s.store, s.sessions)
	s.cookieCodec = auth.NewCookieCodec(cfg.SessionSecret, auth.SessionTTL, cfg.SecureCookies)

	s.renderer, err = views.NewRenderer()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("new renderer: %w", err)
	}

	if cfg.UsingDefaultSecret() {
		log.Warnln("!!! using the default session secret, set SESSION_SECRET")
	}

	return s, nil
}

// initStore creates the tables and seeds the default admin account when
// there is no admin yet.
func (s *Server) initStore(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.store.InitSchema(initCtx); err != nil {
		return fmt.Errorf("init store schema: %w", err)
	}

	if s.config.SkipAdminSeed {
		return nil
	}

	passwordHash, err := pkg.HashPassword(store.DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hash default admin password: %w", err)
	}

	seedCtx, seedCancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer seedCancel()

	created, err := s.store.SeedDefaultAdmin(seedCtx, store.DefaultAdminUsername, passwordHash)
	if err != nil {
		return fmt.Errorf("seed default admin: %w", err)
	}
	if created {
		log.Warnf("seeded default admin user [%s], change its password", store.DefaultAdminUsername)
	}

	return nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("contactdesk-router"))

	authGate := middleware.NewAuthGate(s.cookieCodec, s.sessions, admin.LoginPath, s.config.StoreTimeout)

	adminHandler := admin.NewHandler(
		s.authService,
		s.cookieCodec,
		s.store,
		s.renderer,
		s.metricsManager,
		s.config.StoreTimeout,
	)
	adminHandler.SetupRoutes(r, authGate.Require())

	contactHandler := contact.NewHandler(s.store, s.metricsManager, s.config.StoreTimeout)
	contactHandler.SetupRoutes(r)

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET").Name("healthz")

	if s.config.StaticDir != "" {
		dirExists, err := pkg.PathExists(s.config.StaticDir, true)
		if err != nil {
			return nil, fmt.Errorf("check static dir: %w", err)
		}
		if !dirExists {
			return nil, fmt.Errorf("static dir does not exist: %s", s.config.StaticDir)
		}
		r.PathPrefix("/").
			Handler(staticFileServer(s.config.StaticDir)).
			Methods("GET", "HEAD").Name("static")
	}

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "ok")
}

// staticFileServer serves the public site, never its hidden files or a
// database file placed next to it.
func staticFileServer(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range strings.Split(path.Clean(r.URL.Path), "/") {
			if strings.HasPrefix(part, ".") {
				http.NotFound(w, r)
				return
			}
		}
		switch path.Ext(r.URL.Path) {
		case ".sqlite", ".sqlite-wal", ".sqlite-shm", ".db", ".toml", ".log":
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func (s *Server) Serve(host string, port int) {
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
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
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

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.Close()

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

// Close releases the store, redis client and tracing exporter. The http
// servers are left alone, see GracefulShutdown.
func (s *Server) Close() {
	if s.otelShutdown != nil {
		s.otelShutdown()
		log.Trace("otel shut down ...")
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.store != nil {
		log.Debugln("closing store ...")
		if err := s.store.Close(); err != nil {
			log.Errorf("failed to close store: %s", err)
		}
		log.Debugln("store closed")
	}
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
