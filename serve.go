package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/config"
	"scriptslap-server/logger"
	"scriptslap-server/models"
	"scriptslap-server/routers"
	"scriptslap-server/routers/api"
	"scriptslap-server/service"
	"scriptslap-server/workflow"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func loadConfig(configPath, envFile string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func runServe(ctx context.Context, configPath, envFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}
	defer log.Sync()
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := models.InitDB(cfg.MySQL.DSN, cfg.MySQL.SchemaFile, log)
	if err != nil {
		return err
	}
	store := models.NewStore(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	queue := service.NewQueue(asynqClient, log)

	var objects service.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		m, err := service.NewMinIOStore(service.MinIOConfig{
			Endpoint:      cfg.MinIO.Endpoint,
			AccessKey:     cfg.MinIO.AccessKey,
			SecretKey:     cfg.MinIO.SecretKey,
			Bucket:        cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			PresignExpiry: cfg.MinIO.PresignExpiry,
		}, log)
		if err != nil {
			return err
		}
		objects = m
		log.Info("minio initialized", zap.String("endpoint", cfg.MinIO.Endpoint), zap.String("bucket", cfg.MinIO.Bucket))
	} else {
		log.Warn("MINIO_ENDPOINT not set, script export disabled")
	}

	dispatcher := workflow.NewClient(workflow.URLs{
		Generate:        cfg.Workflow.GenerateURL,
		RefineHook:      cfg.Workflow.RefineHookURL,
		RefineCTA:       cfg.Workflow.RefineCTAURL,
		RefineParagraph: cfg.Workflow.RefineParagraphURL,
		AddParagraph:    cfg.Workflow.AddParagraphURL,
	}, cfg.Workflow.Timeout, log)
	costs := service.CreditCosts{Generate: cfg.Credits.GenerateCost, Refine: cfg.Credits.RefineCost}

	h := &api.Handler{
		Generation: service.NewGenerationService(store, dispatcher, queue, costs, cfg.Workflow.GenerationDeadline, log),
		Refinement: service.NewRefinementService(store, dispatcher, queue, service.NewRedisGuard(rdb), costs,
			cfg.Workflow.RefinementDeadline, 2*cfg.Workflow.Timeout, log),
		Editor:    service.NewEditorService(store, objects, log),
		History:   service.NewHistoryService(store, log),
		Callbacks: service.NewCallbackService(store, cfg.Workflow.CallbackSecret, log),
		Watcher:   service.NewWatcher(store, cfg.Realtime.PollInterval, log),
		Logger:    log.Named("api"),
	}
	if cfg.Workflow.CallbackSecret == "" {
		log.Warn("WORKFLOW_CALLBACK_SECRET not set, workflow callbacks are refused")
	}

	router := routers.InitRouter(h, routers.Options{
		Authenticator:      auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Audience),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:             log.Named("http"),
	})

	processor := service.NewProcessor(store, log)
	worker := service.NewServer(redisOpt, cfg.Worker.Concurrency, log)
	if err := worker.Start(processor.Mux()); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer worker.Shutdown()
	log.Info("watchdog worker started", zap.Int("concurrency", cfg.Worker.Concurrency))

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMigrate(configPath, envFile string) error {
	cfg, log, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := models.InitDB(cfg.MySQL.DSN, "", log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return models.ApplySchema(sqlDB, cfg.MySQL.SchemaFile, log)
}
