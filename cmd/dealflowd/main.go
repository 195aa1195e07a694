package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"dealflow/internal/auth"
	"dealflow/internal/cache"
	"dealflow/internal/config"
	cronrunner "dealflow/internal/cron"
	"dealflow/internal/db"
	"dealflow/internal/feed"
	"dealflow/internal/handler"
	"dealflow/internal/logger"
	"dealflow/internal/metrics"
	"dealflow/internal/models"
	gormrepository "dealflow/internal/repository/gorm"
	"dealflow/internal/service"

	_ "dealflow/docs"
)

func main() {
	cfgPath := os.Getenv("DF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if raw := os.Getenv("DF_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	pipeline, err := ensureDefaultPipeline(context.Background(), store, cfg.Board.DefaultPipeline)
	if err != nil {
		logger.Fatal("default pipeline init failed", zap.Error(err))
	}
	logger.Info("default pipeline ready", zap.String("pipeline_id", pipeline.ID), zap.String("name", pipeline.Name))

	hub := feed.NewHub(store, logger, cfg.Feed.SubscriberBuffer)
	metricsCfg := metrics.Config{RottenAfter: cfg.Board.RottenAfter}

	cacheStore := cache.New(cfg.Cache)

	stageSvc := &service.StageService{Repo: store, Hub: hub, Logger: logger}
	dealSvc := &service.DealService{Repo: store, Hub: hub, Logger: logger, DefaultCurrency: cfg.Board.DefaultCurrency}
	moveSvc := &service.MoveService{Repo: store, Hub: hub, Logger: logger, MaxRetries: cfg.Move.MaxRetries}
	boardSvc := &service.BoardService{Repo: store, Logger: logger, Metrics: metricsCfg, CacheTTL: cfg.Cache.TTL}
	if cacheStore != nil {
		boardSvc.Cache = cacheStore
	}
	sweepSvc := &service.SweepService{
		Repo:      store,
		Hub:       hub,
		Logger:    logger,
		Metrics:   metricsCfg,
		Retention: cfg.Feed.Retention,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(auth.Middleware(cfg.Auth))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	stageHandler := &handler.StageHandler{Stages: stageSvc, Board: boardSvc}
	stageHandler.Register(engine)
	dealHandler := &handler.DealHandler{Deals: dealSvc, Moves: moveSvc, Repo: store}
	dealHandler.Register(engine)
	boardHandler := &handler.BoardHandler{Board: boardSvc}
	boardHandler.Register(engine)
	feedHandler := &handler.FeedHandler{
		Hub:          hub,
		Logger:       logger,
		ReplayLimit:  cfg.Feed.ReplayLimit,
		WriteTimeout: cfg.Feed.WriteTimeout,
	}
	feedHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	if cacheStore != nil {
		go cacheStore.RunFeedInvalidator(ctx, hub, service.MetricsCacheKey, logger)
		defer cacheStore.Close()
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.FeedRetention, sweepSvc.SweepFeedRetention); err != nil {
			logger.Fatal("schedule feed retention sweep failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.RottenScan, sweepSvc.SweepRotten); err != nil {
			logger.Fatal("schedule rotten sweep failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}

func ensureDefaultPipeline(ctx context.Context, store *gormrepository.Store, name string) (*models.Pipeline, error) {
	if name == "" {
		name = "Sales"
	}
	existing, err := store.GetPipelineByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	pipeline := &models.Pipeline{ID: uuid.NewString(), Name: name}
	if err := store.CreatePipeline(ctx, pipeline); err != nil {
		return nil, err
	}
	return pipeline, nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
