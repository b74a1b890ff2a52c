// Package app 组装存储、业务服务与 HTTP 引擎，并管理它们的生命周期.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/fileparser/pkg/auth"
	"github.com/yeisme/fileparser/pkg/cache"
	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/handle"
	"github.com/yeisme/fileparser/pkg/internal/jobs"
	"github.com/yeisme/fileparser/pkg/internal/notify"
	"github.com/yeisme/fileparser/pkg/internal/processor"
	"github.com/yeisme/fileparser/pkg/internal/router"
	"github.com/yeisme/fileparser/pkg/internal/service"
	"github.com/yeisme/fileparser/pkg/internal/storage"
	"github.com/yeisme/fileparser/pkg/log"
	"github.com/yeisme/fileparser/pkg/metrics"
	"github.com/yeisme/fileparser/pkg/middleware"
	"github.com/yeisme/fileparser/pkg/queue"
	"github.com/yeisme/fileparser/pkg/scheduler"
	"github.com/yeisme/fileparser/pkg/tracing"
)

// App 一个完整的服务实例.
type App struct {
	Engine *gin.Engine

	config    *configs.AppConfig
	log       zerolog.Logger
	storage   *storage.Manager
	hub       *notify.Hub
	simulator *processor.Simulator
	scheduler *scheduler.Scheduler
	auth      *service.AuthService

	started bool
	bg      *errgroup.Group
	stop    context.CancelFunc
}

// NewApp 读取配置文件并创建实例.
func NewApp(configPath string) (*App, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	cfg := configs.GetConfig()
	log.Init(cfg.Log, cfg.Server.Debug)

	return New(context.Background(), cfg)
}

// New 按给定配置创建实例，不读取配置文件.
func New(ctx context.Context, cfg *configs.AppConfig) (*App, error) {
	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	var opts storage.Options
	if cfg.Metrics.Enabled {
		opts.Registerer = metrics.GetRegistry()
	}

	mgr, err := storage.Init(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a, err := build(cfg, mgr)
	if err != nil {
		_ = mgr.Close()

		return nil, err
	}

	return a, nil
}

func build(cfg *configs.AppConfig, mgr *storage.Manager) (*App, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	db := mgr.DB.DB
	pub := mgr.MQ.Publisher()
	events := queue.NewEmitter(pub, cfg.Events)
	notifier := notify.NewBusNotifier(pub, cfg.Notify.Topic)

	statsCache := cache.NewCache(mgr.KV.KVStore, cache.WithDisabled(!cfg.Cache.Enabled))
	stats := service.NewStatsService(db, statsCache, cfg.Cache.StatsTTL, log.Component("stats"))

	deps := processor.Deps{
		DB:       db,
		Notifier: notifier,
		Events:   events,
		Stats:    stats,
		Logger:   log.Component("processor"),
	}
	if mgr.S3 != nil && cfg.Upload.Archive {
		deps.Archiver = mgr.S3
	}

	sim := processor.New(deps, cfg.Processing)

	fileDeps := service.FileDeps{
		DB:        db,
		Processor: sim,
		Events:    events,
		Stats:     stats,
		Upload:    cfg.Upload,
		Logger:    log.Component("files"),
	}
	if mgr.S3 != nil {
		fileDeps.Objects = mgr.S3
	}

	files := service.NewFileService(fileDeps)
	authSvc := service.NewAuthService(db, tokens, cfg.Auth, log.Component("auth"))
	hub := notify.NewHub(cfg.Notify.SendBuffer, log.Component("notify"))

	sched, err := scheduler.NewScheduler(log.Component("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(context.Background(), sched, jobs.Deps{
		DB:         db,
		Active:     sim,
		Notifier:   notifier,
		Events:     events,
		Stats:      stats,
		Upload:     cfg.Upload,
		Processing: cfg.Processing,
		Logger:     log.Component("jobs"),
	}); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	h := handle.New(handle.Deps{
		Auth:         authSvc,
		Files:        files,
		Stats:        stats,
		Hub:          hub,
		Notify:       cfg.Notify,
		Upload:       cfg.Upload,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       log.Component("http"),
	})

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(cfg.Server),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.GzipMiddleware(),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
	)

	router.Register(engine, router.Options{
		Config:    cfg,
		Handler:   h,
		Storage:   mgr,
		Scheduler: sched,
	})
	metrics.Mount(cfg.Metrics, engine)

	return &App{
		Engine:    engine,
		config:    cfg,
		log:       log.Component("app"),
		storage:   mgr,
		hub:       hub,
		simulator: sim,
		scheduler: sched,
		auth:      authSvc,
	}, nil
}

// Auth 返回认证服务，命令行工具使用.
func (a *App) Auth() *service.AuthService {
	return a.auth
}

// Start 订阅推送主题并启动后台任务，调用后新上传的文件才能推送进度.
func (a *App) Start(ctx context.Context) error {
	if a.started {
		return nil
	}

	// 推送消费只在 Close 中停止，模拟器写出的中断事件仍能送达
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	messages, err := a.storage.MQ.Subscribe(bgCtx, a.config.Notify.Topic)
	if err != nil {
		cancel()

		return fmt.Errorf("subscribe %s: %w", a.config.Notify.Topic, err)
	}

	g, gctx := errgroup.WithContext(bgCtx)

	g.Go(func() error { return a.hub.Run(gctx, messages) })

	a.scheduler.Start()

	a.started = true
	a.bg = g
	a.stop = cancel

	return nil
}

// Run 启动全部组件并阻塞到收到退出信号或任一组件失败.
func (a *App) Run(ctx context.Context) error {
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	if ms := metrics.NewServer(a.config.Metrics); ms != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", ms.Addr).Msg("metrics server listening")

			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			return ms.Close()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.GetShutdownDuration())
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Msg("http server shutdown")
		}

		return nil
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.GetShutdownDuration())
	defer cancel()

	return errors.Join(err, a.Close(shutdownCtx))
}

// Close 依次停止模拟器、调度器、推送与存储.
// 模拟器先停，未完成的文件会被写成中断状态.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if err := a.simulator.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close simulator: %w", err))
	}

	if err := a.scheduler.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}

	if a.stop != nil {
		a.stop()

		if err := a.bg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}

	if err := a.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}

	tracingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := tracing.ShutdownTracer(tracingCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}

	return errors.Join(errs...)
}
