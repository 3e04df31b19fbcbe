// Package api собирает HTTP API фитнес-курсов: хранилища, сервисы и маршруты.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fitness-courses/internal/cache"
	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/health"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/jwt"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/migrations"
	"github.com/magabrotheeeer/fitness-courses/internal/objectstorage"
	"github.com/magabrotheeeer/fitness-courses/internal/paymentprovider"
	accessservice "github.com/magabrotheeeer/fitness-courses/internal/services/access"
	adminservice "github.com/magabrotheeeer/fitness-courses/internal/services/admin"
	authservice "github.com/magabrotheeeer/fitness-courses/internal/services/auth"
	courseservice "github.com/magabrotheeeer/fitness-courses/internal/services/course"
	enrollmentservice "github.com/magabrotheeeer/fitness-courses/internal/services/enrollment"
	paymentservice "github.com/magabrotheeeer/fitness-courses/internal/services/payment"
	planner "github.com/magabrotheeeer/fitness-courses/internal/services/planner"
	"github.com/magabrotheeeer/fitness-courses/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-приложение со всеми открытыми ресурсами.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилища и брокер, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.db = db
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}
	a.cache = cacheRedis

	files, err := objectstorage.New(ctx, objectstorage.Options{
		Endpoint:     cfg.S3.Endpoint,
		Region:       cfg.S3.Region,
		Bucket:       cfg.S3.Bucket,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
		UsePathStyle: cfg.S3.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init object storage: %w", err)
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	publisher := rabbitmq.NewPublisher(a.ch)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTToken.SecretKey, cfg.JWTToken.TokenTTL)
	plans := planner.NewPlanner(db)

	authService := authservice.NewAuthService(logger, db, jwtMaker, cacheRedis, publisher, authservice.ResetOptions{
		TokenTTL:    cfg.PasswordReset.TokenTTL,
		FrontendURL: cfg.Mail.FrontendURL,
	})
	if cfg.Admin.Username != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			return nil, fmt.Errorf("failed to create admin: %w", err)
		}
	}
	accessService := accessservice.NewAccessService(logger, db, plans, publisher, cfg.Freeze)

	services := Services{
		Auth: authService,
		Courses: courseservice.NewCourseService(logger, db, cacheRedis, files, courseservice.Options{
			CacheTTL:   cfg.RedisConnection.CacheTTL,
			PresignTTL: cfg.S3.PresignTTL,
		}),
		Payments:    paymentservice.NewPaymentService(logger, db, paymentprovider.NewClient(cfg.Stripe), publisher),
		Access:      accessService,
		Enrollments: enrollmentservice.NewEnrollmentService(logger, db, accessService, plans),
		Admin:       adminservice.NewAdminService(logger, db),
		Health: map[string]health.Check{
			"postgres": db.DB.PingContext,
			"redis": func(ctx context.Context) error {
				return cacheRedis.Db.Ping(ctx).Err()
			},
		},
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, services)

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	ok = true
	return a, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
