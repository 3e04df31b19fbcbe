// Package course реализует HTTP-обработчики каталога курсов и их администрирования.
package course

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitness-courses/internal/http/request"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
	coursesvc "github.com/magabrotheeeer/fitness-courses/internal/services/course"
)

// Service описывает бизнес-логику каталога.
type Service interface {
	ListPublished(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	GetPublished(ctx context.Context, id int64) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	Get(ctx context.Context, id int64) (*models.Course, error)
	Create(ctx context.Context, in models.CourseInput) (*models.Course, error)
	Update(ctx context.Context, id int64, in models.CourseInput) (*models.Course, error)
	Remove(ctx context.Context, id int64) error
	AddWorkout(ctx context.Context, courseID int64, in models.WorkoutInput) (*models.Workout, error)
	AddMealPlan(ctx context.Context, courseID int64, in models.MealPlanInput) (*models.MealPlan, error)
	ListWorkouts(ctx context.Context, courseID int64) ([]models.Workout, error)
	ListMealPlans(ctx context.Context, courseID int64) ([]models.MealPlan, error)
	UploadCover(ctx context.Context, id int64, cover coursesvc.Cover) (*models.Course, error)
}

// Handler обрабатывает запросы к курсам.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request, log *slog.Logger) (models.CourseFilter, bool) {
	limit, offset, ok := request.Page(w, r, log)
	if !ok {
		return models.CourseFilter{}, false
	}
	return models.CourseFilter{
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	}, true
}

// ListPublished godoc
// @Summary Каталог курсов
// @Description Опубликованные курсы с поиском по названию.
// @Tags Courses
// @Produce  json
// @Param q query string false "Подстрока названия"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Router /courses [get]
func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.ListPublished")

	filter, ok := h.filter(w, r, log)
	if !ok {
		return
	}
	courses, err := h.service.ListPublished(r.Context(), filter)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"courses": courses,
	}))
}

// GetPublished godoc
// @Summary Карточка курса
// @Tags Courses
// @Produce  json
// @Param id path int true "ID курса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Router /courses/{id} [get]
func (h *Handler) GetPublished(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.GetPublished")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	c, err := h.service.GetPublished(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"course": c,
	}))
}
