package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mychatmanager/chatmod/automod/audit"
	"github.com/mychatmanager/chatmod/automod/cachestore"
	"github.com/mychatmanager/chatmod/automod/classify"
	"github.com/mychatmanager/chatmod/automod/enforce"
	"github.com/mychatmanager/chatmod/automod/engine"
	"github.com/mychatmanager/chatmod/automod/escalation"
	"github.com/mychatmanager/chatmod/automod/eventbus"
	"github.com/mychatmanager/chatmod/automod/flood"
	"github.com/mychatmanager/chatmod/automod/keyword"
	"github.com/mychatmanager/chatmod/automod/model"
	"github.com/mychatmanager/chatmod/automod/pipeline"
	"github.com/mychatmanager/chatmod/automod/platform"
	"github.com/mychatmanager/chatmod/automod/policystore"
	"github.com/mychatmanager/chatmod/automod/ratewindow"
	"github.com/mychatmanager/chatmod/util"
	"github.com/mychatmanager/chatmod/util/cliutil"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Config struct {
	Logger *slog.Logger

	DatabaseURL      string
	MaxDBConnections int
	DBTracing        bool
	RedisURL         string

	KafkaBrokers      []string
	KafkaTopic        string
	RelayRedisChannel string

	PlatformHost      string
	PlatformToken     string
	PlatformRateLimit float64
	ReadOnly          bool

	SetsFileJSON    string
	SlackWebhookURL string
	AdminToken      string

	PolicyCacheTTL    time.Duration
	LockTimeout       time.Duration
	BusCapacity       int
	BusEnqueueTimeout time.Duration
	ShutdownGrace     time.Duration

	Bind string
}

var cliDefaults = Config{
	PolicyCacheTTL:    5 * time.Minute,
	LockTimeout:       5 * time.Second,
	BusCapacity:       10_000,
	BusEnqueueTimeout: 50 * time.Millisecond,
	ShutdownGrace:     10 * time.Second,
}

type Server struct {
	logger   *slog.Logger
	coord    *pipeline.Coordinator
	bus      *eventbus.Bus
	resolver *policystore.Resolver
	policies policystore.PolicyWriter
	sink     *audit.GormSink
	kafka    *eventbus.KafkaRelay
	routes   map[string]*pipeline.Route

	adminToken    string
	shutdownGrace time.Duration

	echo  *echo.Echo
	httpd *http.Server
}

type settingsStore interface {
	policystore.PolicyStore
	policystore.BlacklistStore
	policystore.PolicyWriter
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.PolicyCacheTTL <= 0 {
		config.PolicyCacheTTL = cliDefaults.PolicyCacheTTL
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = cliDefaults.ShutdownGrace
	}

	global := classify.DefaultGlobalBlacklist
	if config.SetsFileJSON != "" {
		terms, err := policystore.LoadGlobalBlacklistJSON(config.SetsFileJSON)
		if err != nil {
			return nil, fmt.Errorf("loading global blacklist: %v", err)
		}
		logger.Info("loaded global blacklist from JSON", "path", config.SetsFileJSON, "terms", len(terms))
		global = keyword.MergeTerms(global, terms)
	}

	var settings settingsStore
	var sink *audit.GormSink
	if config.DatabaseURL != "" {
		db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, err
		}
		if config.DBTracing {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return nil, err
			}
		}
		gs, err := policystore.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("initializing policy store: %v", err)
		}
		settings = gs
		sink, err = audit.NewGormSink(db)
		if err != nil {
			return nil, fmt.Errorf("initializing audit log: %v", err)
		}
	} else {
		logger.Warn("no database configured, chat settings are kept in memory")
		settings = policystore.NewMemStore()
	}

	var windows ratewindow.WindowStore
	var warnings escalation.WarningStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		w, err := ratewindow.NewRedisWindowStore(config.RedisURL, ratewindow.DefaultRetention)
		if err != nil {
			return nil, fmt.Errorf("initializing redis window store: %v", err)
		}
		windows = w

		ws, err := escalation.NewRedisWarningStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis warning store: %v", err)
		}
		warnings = ws

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, config.PolicyCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		windows = ratewindow.NewMemWindowStore(ratewindow.DefaultRetention)
		warnings = escalation.NewMemWarningStore()
		cache = cachestore.NewMemCacheStore(50_000, config.PolicyCacheTTL)
	}

	resolver := policystore.NewResolver(settings, settings, cache, global, logger)
	eng := engine.Engine{
		Logger:     logger.With("component", "engine"),
		Config:     resolver,
		Classifier: classify.NewClassifier(),
		Flood: flood.NewDetector(flood.Config{
			Windows: windows,
			Logger:  logger,
		}),
		Escalation: escalation.NewEscalator(warnings, logger),
	}

	bus := eventbus.NewBus(eventbus.Config{
		Capacity:       config.BusCapacity,
		EnqueueTimeout: config.BusEnqueueTimeout,
		Logger:         logger,
	})
	bus.SubscribeAll(audit.NewLogger(logger).Handle)
	if sink != nil {
		bus.SubscribeAll(sink.Handle)
	}
	if config.SlackWebhookURL != "" {
		slack := audit.NewSlackNotifier(config.SlackWebhookURL, util.RobustHTTPClient(logger))
		bus.Subscribe(model.EventUserBanned, slack.Handle)
		bus.Subscribe(model.EventUserKicked, slack.Handle)
	}
	var kafka *eventbus.KafkaRelay
	if len(config.KafkaBrokers) > 0 {
		logger.Info("relaying moderation events to kafka", "brokers", config.KafkaBrokers, "topic", config.KafkaTopic)
		kafka = eventbus.NewKafkaRelay(config.KafkaBrokers, config.KafkaTopic)
		bus.SubscribeAll(kafka.Handle)
	}
	if config.RelayRedisChannel != "" {
		if config.RedisURL == "" {
			return nil, fmt.Errorf("relay-redis-channel requires redis-url")
		}
		rr, err := eventbus.NewRedisRelay(config.RedisURL, config.RelayRedisChannel)
		if err != nil {
			return nil, fmt.Errorf("initializing redis relay: %v", err)
		}
		bus.SubscribeAll(rr.Handle)
	}

	var plat enforce.ChatPlatform
	if config.ReadOnly || config.PlatformToken == "" {
		logger.Warn("running with dry-run chat platform, no enforcement actions will be taken")
		plat = platform.NewLogPlatform(logger)
	} else {
		plat = platform.NewHTTPPlatform(config.PlatformHost, config.PlatformToken, config.PlatformRateLimit, logger)
	}
	exec := enforce.NewExecutor(plat, bus, logger)

	coord := pipeline.NewCoordinator(&eng, exec, bus, pipeline.Config{
		Logger:      logger,
		LockTimeout: config.LockTimeout,
	})

	s := &Server{
		logger:        logger,
		coord:         coord,
		bus:           bus,
		resolver:      resolver,
		policies:      settings,
		sink:          sink,
		kafka:         kafka,
		routes:        pipeline.DefaultRoutes(),
		adminToken:    config.AdminToken,
		shutdownGrace: config.ShutdownGrace,
	}
	s.setupHTTP(config.Bind)
	bus.Start()
	return s, nil
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	s.echo.ServeHTTP(rw, req)
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run serves the HTTP API and the state sweeper until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.coord.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Info("starting server", "bind", s.httpd.Addr)
		if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server shutting down unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown()
	})
	return g.Wait()
}

// Shutdown stops accepting HTTP requests, then lets the pipeline finish in-flight messages and drain events.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
	defer cancel()

	var errs []error
	if err := s.httpd.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}
	if err := s.coord.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline shutdown: %w", err))
	}
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing kafka relay: %w", err))
		}
	}
	return errors.Join(errs...)
}
