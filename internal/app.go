package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lms-upload-api/config"
	"lms-upload-api/internal/application/ports"
	"lms-upload-api/internal/application/services"
	"lms-upload-api/internal/infrastructure/jwt"
	"lms-upload-api/internal/infrastructure/metrics"
	"lms-upload-api/internal/infrastructure/mq"
	"lms-upload-api/internal/infrastructure/s3"
	"lms-upload-api/internal/infrastructure/staging"
	"lms-upload-api/internal/interface/api/rest"
	"lms-upload-api/internal/interface/api/rest/middleware"
	"lms-upload-api/pkg/rmqconsumer"
)

type App struct {
	logger        *zap.Logger
	cfg           config.Config
	httpSrv       *http.Server
	router        *gin.Engine
	mCounter      *prometheus.CounterVec
	stager        *staging.Stager
	uploadService ports.UploadService
	// nil when RABBITMQ_HOST is unset
	mq         ports.RabbitMQ
	mqConsumer ports.RMQConsumer
}

func NewApp(ctx context.Context) (*App, error) {
	// logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("cannot initialize zap logger: %v", err)
	}
	defer logger.Sync()

	// config; .env is optional, the environment wins
	if err = godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatal("error loading .env file", zap.Error(err))
	}
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// metrics
	mCounter := metrics.NewCounter()

	// router
	switch cfg.App.Env {
	case gin.ReleaseMode, "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	// "avatars%2Fa.png" must reach the handler as one :key
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery())
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
	}
	r.Use(middleware.RequestLogGin(logger, mCounter))

	// httpServer
	httpSrv := &http.Server{
		Addr:              cfg.App.Host + ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// s3
	s3Client, err := s3.New(ctx, logger, cfg.S3)
	if err != nil {
		logger.Fatal("failed to init S3 client", zap.Error(err))
	}

	// rabbitMQ
	var (
		rbMQ   ports.RabbitMQ
		events ports.EventPublisher = mq.Nop{}
		dsn    string
	)
	if cfg.EventsEnabled() {
		dsn, err = cfg.AMQPDSN()
		if err != nil {
			logger.Fatal("RabbitMQ config error", zap.Error(err))
		}
		publisher := mq.New(cfg.MQ, logger, mCounter)
		if err = publisher.Connect(ctx, dsn); err != nil {
			logger.Fatal("failed to connect to rabbitMQ", zap.Error(err))
		}
		if err = publisher.Init(); err != nil {
			logger.Fatal("failed init rabbitMQ", zap.Error(err))
		}
		rbMQ, events = publisher, publisher
	} else {
		logger.Info("RABBITMQ_HOST not set, object events disabled")
	}

	uploadService := services.NewUploadService(s3Client, events, mCounter, cfg.Upload.MaxParallel)

	// rmqConsumer
	var rmqConsumer ports.RMQConsumer
	if cfg.EventsEnabled() {
		c := rmqconsumer.New(cfg.MQ, logger, func(ctx context.Context, key string) error {
			mCounter.WithLabelValues(metrics.DeleteRequests).Inc()
			return uploadService.Delete(ctx, key)
		})
		if err = c.Connect(dsn); err != nil {
			logger.Fatal("failed to connect rabbitMQ consumer", zap.Error(err))
		}
		if err = c.Init(); err != nil {
			logger.Fatal("failed to init rabbitMQ consumer", zap.Error(err))
		}
		rmqConsumer = c
	}

	return &App{
		logger:        logger,
		cfg:           cfg,
		httpSrv:       httpSrv,
		router:        r,
		mCounter:      mCounter,
		stager:        staging.New(cfg.Upload.StagingDir, cfg.Upload.MaxRequestBytes),
		uploadService: uploadService,
		mq:            rbMQ,
		mqConsumer:    rmqConsumer,
	}, nil
}

func (a *App) Close() {
	if a.mq != nil && a.mq.GetConn() != nil {
		a.mq.GetConn().Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// Run - The central place to launch and manage our application and
// parallel processes through a single context.
func (a *App) Run(ctx context.Context) error {
	// context with os signals cancel chan
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting "+a.cfg.App.Name, zap.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server "+a.cfg.App.Name+" error: %w", err)
		}

		return nil
	})

	if a.mq != nil {
		g.Go(func() error {
			a.mq.PublisherWorker(ctx)
			return nil
		})
	}

	if a.mqConsumer != nil {
		g.Go(func() error {
			a.mqConsumer.DeliveryWorker(ctx)
			return nil
		})
	}

	<-ctx.Done()

	a.logger.Info("shutting down " + a.cfg.App.Name + " gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown "+a.cfg.App.Name+" error", zap.Error(err))
			return err
		}
	}

	if err := g.Wait(); err != nil {
		a.logger.Error(a.cfg.App.Name+" returning an error", zap.Error(err))
		return err
	}

	a.logger.Info(a.cfg.App.Name + " gracefully stopped")

	return nil
}

func (a *App) InitControllers() {
	jwtService := jwt.New(a.cfg.App.JWTSecret)

	// controllers
	rest.NewUploadController(a.router, a.uploadService, a.stager, a.logger, jwtService)

	// ops
	a.router.GET(rest.RouteHealth, func(c *gin.Context) { c.Status(http.StatusOK) })
	a.router.GET(rest.RouteMetrics, gin.WrapH(promhttp.Handler()))
}

func (a *App) Logger() *zap.Logger { return a.logger }
