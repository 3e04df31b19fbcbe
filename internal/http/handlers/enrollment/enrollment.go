// Package enrollment реализует HTTP-обработчики записи на курс и дневного плана.
package enrollment

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
)

// Service описывает бизнес-логику записей и плана.
type Service interface {
	Enroll(ctx context.Context, userUID string, req models.EnrollRequest) (*models.Enrollment, error)
	Current(ctx context.Context, userUID string) (*models.Enrollment, error)
	Cancel(ctx context.Context, userUID string) error
	Reschedule(ctx context.Context, userUID string, req models.RescheduleRequest) (*models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.Enrollment, error)
	Today(ctx context.Context, userUID string) (*models.PlanDayView, error)
	ListPlan(ctx context.Context, userUID, from, to string) ([]models.PlanDayView, error)
	CompleteDay(ctx context.Context, userUID string, dayID int64) (*models.PlanDay, error)
}

// Handler обрабатывает запросы к записям и плану.
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

// Enroll godoc
// @Summary Записаться на курс
// @Description Требует активного доступа к курсу. Дни недели от 1 (пн) до 7 (вс), их число равно workouts_per_week курса.
// @Tags Enrollments
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param request body models.EnrollRequest true "Курс, дни тренировок и дата начала"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверные дни или дата"
// @Failure 403 {object} response.ErrorResponse "Нет доступа к курсу"
// @Failure 409 {object} response.ErrorResponse "Уже есть активная запись"
// @Router /enrollments [post]
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.Enroll")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	var req models.EnrollRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}
	e, err := h.service.Enroll(r.Context(), uid, req)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"enrollment": e,
	}))
}

// Current godoc
// @Summary Текущая запись
// @Tags Enrollments
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Нет активной записи"
// @Router /enrollments/current [get]
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.Current")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	e, err := h.service.Current(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"enrollment": e,
	}))
}

// Reschedule godoc
// @Summary Сменить дни тренировок
// @Description Выполненные и прошедшие дни сохраняются, оставшиеся тренировки раскладываются по новым дням.
// @Tags Enrollments
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param request body models.RescheduleRequest true "Новые дни"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверные дни или дата"
// @Failure 404 {object} response.ErrorResponse "Нет активной записи"
// @Router /enrollments/current/schedule [put]
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.Reschedule")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	var req models.RescheduleRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}
	e, err := h.service.Reschedule(r.Context(), uid, req)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"enrollment": e,
	}))
}

// Cancel godoc
// @Summary Отменить запись
// @Tags Enrollments
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Нет активной записи"
// @Router /enrollments/current [delete]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.Cancel")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), uid); err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OK())
}

// ListByCourse godoc
// @Summary Записи на курс
// @Tags Admin
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID курса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Router /admin/courses/{id}/enrollments [get]
func (h *Handler) ListByCourse(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.ListByCourse")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	list, err := h.service.ListByCourse(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"enrollments": list,
	}))
}
