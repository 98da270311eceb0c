package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"corptrain_backend/internal/config"
	"corptrain_backend/internal/controller"
	"corptrain_backend/internal/repository"
	"corptrain_backend/internal/service"
	"corptrain_backend/pkg/configwatcher"
	"corptrain_backend/pkg/database"
	"corptrain_backend/pkg/logger"
	"corptrain_backend/pkg/monitoring"
	"corptrain_backend/pkg/security"
	"corptrain_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	exercise *repository.ExerciseRepository
	attempt  *repository.ExerciseAttemptRepository
}

type services struct {
	storage *service.StorageService
	catalog *service.ExerciseCatalogService
	attempt *service.ExerciseAttemptService
}

type controllers struct {
	exercise *controller.ExerciseController
	attempt  *controller.ExerciseAttemptController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		exercise: repository.NewExerciseRepository(db),
		attempt:  repository.NewExerciseAttemptRepository(db, a.Config.Attempt.MaxConflictRetries),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.catalog = service.NewExerciseCatalogService(
		repos.exercise,
		rdb,
		s.storage,
		time.Duration(cfg.Catalog.CacheTTLSeconds)*time.Second,
	)
	s.attempt = service.NewExerciseAttemptService(repos.attempt, s.catalog, cfg)

	// 评分策略支持热更新
	a.RegisterConfigCallback(s.attempt.ApplyConfig)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		exercise: controller.NewExerciseController(s.catalog, s.attempt),
		attempt:  controller.NewExerciseAttemptController(s.attempt, s.catalog),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// build 组装仓库、服务、控制器与路由
func (a *App) build(db *gorm.DB, rdb *redis.Client) {
	a.DB = db
	a.Redis = rdb

	repos := a.initRepositories(db)
	a.services = a.initServices(repos, a.Config, rdb)
	controllers := a.initControllers(a.services, db, rdb)

	monitoring.Init()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	a.Router = router

	a.setupMiddlewares(router, a.Config)
	a.registerRoutes(router, controllers, a.Config)
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")
	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式默认跳过迁移
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
	}
	if cfg.MigrateOnly {
		app.DB = db
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.build(db, rdb)
	return app
}

func (a *App) watchConfig(ctx context.Context) {
	path := filepath.Join(a.ConfigDir, "config.yaml")
	err := configwatcher.WatchConfig(ctx, path, func(cfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(cfg)
		}
	})
	if err != nil {
		logger.Log.Error("Config watcher stopped", zap.Error(err))
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go a.watchConfig(watchCtx)

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
