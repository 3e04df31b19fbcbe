package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/access"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/admin"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/auth"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/course"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/enrollment"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/health"
	"github.com/magabrotheeeer/fitness-courses/internal/http/handlers/payment"
	"github.com/magabrotheeeer/fitness-courses/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// AuthService регистрация, вход и проверка токенов.
type AuthService interface {
	auth.Service
	middlewarectx.TokenValidator
}

// Services сервисы, которые обслуживают маршруты API.
type Services struct {
	Auth        AuthService
	Courses     course.Service
	Payments    payment.Service
	Access      access.Service
	Enrollments enrollment.Service
	Admin       admin.Service
	Health      map[string]health.Check
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, s Services) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		metrics.Middleware,
	)

	authH := auth.New(logger, s.Auth)
	courseH := course.New(logger, s.Courses)
	paymentH := payment.New(logger, s.Payments)
	accessH := access.New(logger, s.Access)
	enrollmentH := enrollment.New(logger, s.Enrollments)
	adminH := admin.New(logger, s.Admin)
	limit := middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые маршруты
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.Post("/password/forgot", authH.ForgotPassword)
			r.Post("/password/reset", authH.ResetPassword)
			r.Get("/courses", courseH.ListPublished)
			r.Get("/courses/{id}", courseH.GetPublished)
		})

		// Вебхук провайдера без аутентификации и лимита, подлинность проверяется подписью
		r.Post("/payments/webhook", paymentH.Webhook)
		r.Method(http.MethodGet, "/health", health.New(logger, s.Health))

		// Маршруты с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Use(limit)

			r.Post("/courses/{id}/checkout", paymentH.Checkout)
			r.Get("/payments", paymentH.List)

			r.Get("/access", accessH.List)
			r.Get("/access/{id}/freezes", accessH.ListFreezes)
			r.Post("/access/{id}/freezes", accessH.Freeze)

			r.Post("/enrollments", enrollmentH.Enroll)
			r.Get("/enrollments/current", enrollmentH.Current)
			r.Put("/enrollments/current/schedule", enrollmentH.Reschedule)
			r.Delete("/enrollments/current", enrollmentH.Cancel)

			r.Get("/plan", enrollmentH.Plan)
			r.Get("/plan/today", enrollmentH.Today)
			r.Post("/plan/{id}/complete", enrollmentH.CompleteDay)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RoleMiddleware(logger, models.RoleAdmin))

				r.Get("/users", adminH.ListUsers)
				r.Put("/users/{uid}/role", adminH.ChangeRole)
				r.Get("/users/{uid}/access", accessH.ListForUser)

				r.Post("/access", accessH.Grant)
				r.Delete("/access/{id}", accessH.Revoke)

				r.Get("/courses", courseH.List)
				r.Post("/courses", courseH.Create)
				r.Get("/courses/{id}", courseH.Get)
				r.Put("/courses/{id}", courseH.Update)
				r.Delete("/courses/{id}", courseH.Remove)
				r.Post("/courses/{id}/workouts", courseH.AddWorkout)
				r.Post("/courses/{id}/meals", courseH.AddMealPlan)
				r.Put("/courses/{id}/cover", courseH.UploadCover)
				r.Get("/courses/{id}/enrollments", enrollmentH.ListByCourse)
			})
		})
	})

	r.Handle("/metrics", metrics.Handler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))
}
