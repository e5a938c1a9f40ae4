package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"conference-central/cache"
	"conference-central/config"
	"conference-central/database"
	"conference-central/handlers"
	"conference-central/logging"
	"conference-central/mail"
	"conference-central/middleware"
	"conference-central/model"
	"conference-central/router"
	"conference-central/service"
	"conference-central/tasks"
	"conference-central/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.NewProvider(ctx, tracing.Config{
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampleRate,
		ServiceName:  "conference-central",
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(flushCtx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	queue := tasks.NewQueue(tasks.Config{
		Workers:        cfg.QueueWorkers,
		Size:           cfg.QueueSize,
		MaxAttempts:    cfg.TaskAttempts,
		InitialBackoff: cfg.TaskInitialBackoff,
	}, logger)

	svc := service.New(service.Deps{
		Store:           store,
		Announcements:   cache.NewInMemoryCacheManager[string]("announcements", cfg.CacheTTL, logger),
		FeaturedSpeaker: cache.NewInMemoryCacheManager[model.FeaturedSpeaker]("featured-speaker", cfg.CacheTTL, logger),
		Queue:           queue,
		Mailer:          mailer,
		Logger:          logger,
		Tracer:          tracer.Tracer(),
	}, service.Options{
		TxAttempts:       cfg.TxAttempts,
		TxInitialBackoff: cfg.TxInitialBackoff,
	})
	svc.RegisterTasks(queue)

	app := fiber.New(fiber.Config{
		UnescapePath:          true,
		DisableStartupMessage: true,
	})
	router.SetupRoutes(app, handlers.New(svc, cfg.Sign, cfg.TokenTTL, logger), middleware.Authorize(cfg.Sign))

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("listening",
		zap.String("port", cfg.Port),
		zap.Bool("mongo", cfg.UseMongo()),
		zap.Bool("tracing", tracer.Enabled()))
	return serve(ctx, app, ln, queue)
}

// serve runs the task workers and the HTTP server until ctx is done, then stops both.
func serve(ctx context.Context, app *fiber.App, ln net.Listener, queue *tasks.Queue) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		return app.Listener(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		queue.Close()
		return app.Shutdown()
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (database.Store, error) {
	if cfg.UseMongo() {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return database.DBInit(connectCtx, cfg.MongoConnString, cfg.MongoDatabase, logger)
	}
	logger.Info("using local store", zap.String("path", cfg.LocalDBPath))
	return database.OpenLocalStore(cfg.LocalDBPath)
}

func newMailer(cfg config.Config, logger *zap.Logger) (mail.Mailer, error) {
	if cfg.SMTPAddr == "" {
		return mail.NewLogMailer(logger), nil
	}
	return mail.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPassword)
}
