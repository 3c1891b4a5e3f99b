package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"remi-caller/config"
	"remi-caller/handlers"
	"remi-caller/middleware"
	"remi-caller/services"

	_ "remi-caller/docs"
)

const flagEnvFile = "env-file"

// @title Remi Caller API
// @version 1.0
// @description Schedules reminder calls and places them when they become due
// @host localhost:8080
// @BasePath /
func main() {
	app := &cli.App{
		Name:  "remi-caller",
		Usage: "schedule reminder calls and place them when due",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagEnvFile,
				Value: ".env",
				Usage: "optional dotenv file loaded before the environment",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "recover pending reminders and start the API server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the database schema and exit",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.String(flagEnvFile))
	if err != nil {
		return cfg, nil, errors.Wrap(err, "load config")
	}
	lg, err := config.NewLogger(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, lg, nil
}

func migrate(c *cli.Context) error {
	cfg, lg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := services.NewDBService(c.Context, cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(c.Context); err != nil {
		return errors.Wrap(err, "initialize schema")
	}
	lg.WithField("database", cfg.DBName).Info("database schema initialized")
	return nil
}

type reminderBackend interface {
	services.ReminderStore
	services.TokenStore
}

func serve(c *cli.Context) error {
	cfg, lg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reminder store
	var store reminderBackend
	switch cfg.StoreDriver {
	case "postgres":
		db, err := services.NewDBService(ctx, cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			return errors.Wrap(err, "initialize schema")
		}
		store = db
	default:
		lg.Warn("using in-memory reminder store, reminders will not survive a restart")
		store = services.NewMemoryReminderStore()
	}
	lg.WithField("driver", cfg.StoreDriver).Info("reminder store ready")

	// Due index
	var index services.DueIndex
	switch cfg.QueueDriver {
	case "redis":
		client := services.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
		defer client.Close()
		ri := services.NewRedisDueIndex(client, cfg.RedisQueueKey)
		if err := ri.Ping(ctx); err != nil {
			return errors.Wrap(err, "connect to redis")
		}
		index = ri
	default:
		index = services.NewMemoryDueIndex()
	}
	lg.WithField("driver", cfg.QueueDriver).Info("task index ready")

	// Outbound clients
	httpClient := middleware.NewHTTPClient(30*time.Second, cfg.XRayEnabled)
	retryClient := middleware.NewRetryableClient(httpClient, 3, lg)

	placer, err := services.NewCallPlacer(cfg.CallProvider, services.TwilioConfig{
		BaseURL:           cfg.TwilioBaseURL,
		AccountSID:        cfg.TwilioAccountSID,
		AuthToken:         cfg.TwilioAuthToken,
		StatusCallbackURL: cfg.StatusCallbackURL(),
	}, httpClient, lg)
	if err != nil {
		return err
	}

	dispatcher := services.NewDispatcher(store, placer, lg, services.DispatcherConfig{
		MaxConcurrent:    cfg.MaxConcurrent,
		PlacementTimeout: cfg.PlacementTimeout,
		CallsPerSecond:   cfg.CallsPerSecond,
		CallerNumber:     cfg.CallerNumber,
		MaxCallDuration:  cfg.MaxCallDuration,
		Tracing:          cfg.XRayEnabled,
	})
	if cfg.PushEnabled {
		dispatcher.SetNotifier(services.NewPushNotifier(retryClient, cfg.PushURL, store, lg))
	}

	queue := services.NewTaskQueue(index, dispatcher, lg, services.WithPollInterval(cfg.PollInterval))

	// Pending reminders go back into the queue before any mutation is accepted
	recovered, err := services.NewRecoveryBootstrapper(store, queue, lg, cfg.RecoveryPageSize).Run(ctx)
	if err != nil {
		return errors.Wrap(err, "recover pending reminders")
	}
	lg.WithField("recovered", recovered).Info("recovery finished")

	storage, err := services.NewAudioStorage(cfg.StorageType, cfg.StoragePath, cfg.StoragePublicURL)
	if err != nil {
		return errors.Wrap(err, "initialize audio storage")
	}
	lg.WithFields(logrus.Fields{"type": cfg.StorageType, "path": cfg.StoragePath}).Info("audio storage ready")

	var receiver handlers.StatusReceiver
	if tp, ok := placer.(*services.TwilioPlacer); ok {
		receiver = tp
	}

	routes := handlers.Routes{
		Reminders: handlers.NewReminderHandler(services.NewReminderService(store, queue, lg)),
		Audio:     handlers.NewAudioHandler(services.NewAudioService(retryClient, cfg.InferenceURL, storage, lg)),
		Calls:     handlers.NewCallHandler(dispatcher, receiver),
		Tokens:    handlers.NewTokenHandler(store),
	}

	app := fiber.New(fiber.Config{
		AppName:               "remi-caller",
		DisableStartupMessage: true,
		Immutable:             true,
	})
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	if cfg.XRayEnabled {
		app.Use(middleware.XRayMiddleware("remi-caller", lg))
	}
	if cfg.StorageType == "local" {
		app.Static("/audio", cfg.StoragePath)
	}
	routes.Register(app)

	reconciler := services.NewReconciler(store, queue, lg, cfg.RecoveryPageSize)
	if err := reconciler.Start(cfg.ReconcileSchedule); err != nil {
		return errors.Wrap(err, "start reconciler")
	}
	queue.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.WithField("port", cfg.ServerPort).Info("server starting")
		return app.Listen(":" + cfg.ServerPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PlacementTimeout+15*time.Second)
		defer cancel()

		err := app.ShutdownWithContext(shutdownCtx)
		queue.Stop()
		reconciler.Stop()
		if derr := dispatcher.Shutdown(shutdownCtx); derr != nil && err == nil {
			err = derr
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Info("server stopped")
	return nil
}
