package app

import (
	"context"
	"errors"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/controller"
	"lesson_bundle_backend/internal/repository"
	"lesson_bundle_backend/internal/service"
	"lesson_bundle_backend/pkg/configwatcher"
	"lesson_bundle_backend/pkg/database"
	"lesson_bundle_backend/pkg/logger"
	"lesson_bundle_backend/pkg/monitoring"
	"lesson_bundle_backend/pkg/security"
	"lesson_bundle_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const studentLockTTL = 30 * time.Second

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	cron            *cron.Cron
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)

	// cancelled on shutdown, stops background goroutines
	ctx  context.Context
	stop context.CancelFunc
}

type repositories struct {
	tx       repository.TxRunner
	bundle   *repository.BundleRepository
	note     *repository.NoteRepository
	quiz     *repository.QuizRepository
	resource *repository.ResourceRepository
	attempt  *repository.AttemptRepository
	badge    *repository.BadgeRepository
	noteView *repository.NoteViewRepository
}

type services struct {
	ai       *service.AIService
	storage  *service.StorageService
	bundle   *service.BundleService
	badge    *service.BadgeService
	quiz     *service.QuizService
	noteView *service.NoteViewService
}

type controllers struct {
	bundle  *controller.BundleController
	quiz    *controller.QuizController
	learner *controller.LearnerController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		tx:       repository.NewTxRunner(db),
		bundle:   repository.NewBundleRepository(db),
		note:     repository.NewNoteRepository(db),
		quiz:     repository.NewQuizRepository(db),
		resource: repository.NewResourceRepository(db),
		attempt:  repository.NewAttemptRepository(db),
		badge:    repository.NewBadgeRepository(db),
		noteView: repository.NewNoteViewRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	s.ai = service.NewAIService(cfg.AI)
	a.RegisterConfigCallback(func(c *config.Config) {
		s.ai.UpdateConfig(c.AI)
	})

	s.storage = service.NewStorageService(cfg)

	bundle, err := service.NewBundleService(
		repos.tx,
		repos.bundle,
		repos.note,
		repos.quiz,
		repos.resource,
		s.ai,
		s.storage,
		cfg.Generation,
	)
	if err != nil {
		return nil, err
	}
	s.bundle = bundle

	var locker service.StudentLocker = service.NewLocalStudentLocker()
	if rdb != nil {
		locker = service.NewRedisStudentLocker(rdb, studentLockTTL)
	}

	s.badge = service.NewBadgeService(repos.badge, repos.attempt)
	s.quiz = service.NewQuizService(repos.tx, repos.quiz, repos.attempt, repos.bundle, s.badge, locker)
	s.noteView = service.NewNoteViewService(repos.tx, repos.noteView, repos.note, repos.bundle, rdb, cfg.NoteView)

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		bundle:  controller.NewBundleController(s.bundle),
		quiz:    controller.NewQuizController(s.quiz),
		learner: controller.NewLearnerController(s.badge, s.noteView),
		health:  controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if a.tracer != nil {
		router.Use(tracing.GinMiddleware(a.tracer))
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks schedules note view pruning.
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) error {
	if cfg.NoteView.PruneSchedule == "" || cfg.NoteView.RetentionDays <= 0 {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.NoteView.PruneSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.noteView.PruneViews(ctx); err != nil {
			logger.Log.Error("note view prune error", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	a.cron = c
	return nil
}

func (a *App) migrate(db *gorm.DB, cfg *config.Config) error {
	if cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate {
		logger.Log.Info("Running database migration")
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	badges, err := database.LoadBadgeCatalog(cfg.Badges.CatalogPath)
	if err != nil {
		return err
	}
	return database.SeedBadges(db, badges)
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}
	app.ctx, app.stop = context.WithCancel(context.Background())

	if err := app.migrate(db, cfg); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if err := app.startBackgroundTasks(services, cfg); err != nil {
		logger.Log.Fatal("Failed to schedule background tasks", zap.Error(err))
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	defer a.stop()
	if a.ConfigDir != "" {
		go func() {
			if err := configwatcher.WatchConfig(a.ctx, a.ConfigDir, configwatcher.DefaultDebounce, a.applyConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// serve
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// graceful shutdown on SIGINT/SIGTERM, 5s timeout
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	a.stop()

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
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
