// Package access реализует HTTP-обработчики доступов к курсам и их заморозок.
package access

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitness-courses/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitness-courses/internal/http/request"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
	accesssvc "github.com/magabrotheeeer/fitness-courses/internal/services/access"
)

// Service описывает бизнес-логику доступов.
type Service interface {
	ListForUser(ctx context.Context, userUID string) ([]models.AccessGrant, error)
	Grant(ctx context.Context, req models.GrantRequest) (*models.AccessGrant, error)
	Revoke(ctx context.Context, grantID int64) error
	ListFreezes(ctx context.Context, actor accesssvc.Actor, grantID int64) ([]models.Freeze, error)
	Freeze(ctx context.Context, actor accesssvc.Actor, grantID int64, req models.FreezeRequest) (*models.Freeze, *models.AccessGrant, error)
}

// Handler обрабатывает запросы к доступам.
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

func (h *Handler) actor(w http.ResponseWriter, r *http.Request, log *slog.Logger) (accesssvc.Actor, bool) {
	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return accesssvc.Actor{}, false
	}
	return accesssvc.Actor{UserUID: uid, Role: middlewarectx.RoleFrom(r.Context())}, true
}

// List godoc
// @Summary Мои доступы
// @Description Доступы текущего пользователя со статусом active, frozen, expired, revoked или pending.
// @Tags Access
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /access [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.access.List")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	grants, err := h.service.ListForUser(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"grants": grants,
	}))
}

// ListFreezes godoc
// @Summary Заморозки доступа
// @Tags Access
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID доступа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Доступ не найден"
// @Router /access/{id}/freezes [get]
func (h *Handler) ListFreezes(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.access.ListFreezes")

	actor, ok := h.actor(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	freezes, err := h.service.ListFreezes(r.Context(), actor, id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"freezes": freezes,
	}))
}

// Freeze godoc
// @Summary Заморозить доступ
// @Description Приостанавливает доступ на days дней с start_date и продлевает срок на столько же.
// @Description Дни плана в периоде заморозки переносятся.
// @Tags Access
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param id path int true "ID доступа"
// @Param request body models.FreezeRequest true "Период заморозки"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный период"
// @Failure 403 {object} response.ErrorResponse "Доступ истёк"
// @Failure 404 {object} response.ErrorResponse "Доступ не найден"
// @Failure 409 {object} response.ErrorResponse "Пересечение или превышен лимит"
// @Router /access/{id}/freezes [post]
func (h *Handler) Freeze(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.access.Freeze")

	actor, ok := h.actor(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	var req models.FreezeRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	f, grant, err := h.service.Freeze(r.Context(), actor, id, req)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("access frozen", slog.Int64("grant_id", id), slog.Int("days", f.Days))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"freeze": f,
		"grant":  grant,
	}))
}

// Grant godoc
// @Summary Выдать доступ
// @Description Выдаёт или продлевает доступ пользователя к курсу. Без days доступ бессрочный.
// @Tags Admin
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param request body models.GrantRequest true "Доступ"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь или курс не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/access [post]
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.access.Grant")

	var req models.GrantRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}
	grant, err := h.service.Grant(r.Context(), req)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("access granted", slog.String("user_uid", req.UserUID), slog.Int64("course_id", req.CourseID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"grant": grant,
	}))
}

// Revoke godoc
// @Summary Отозвать доступ
// @Tags Admin
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID доступа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Доступ не найден"
// @Router /admin/access/{id} [delete]
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.access.Revoke")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	if err := h.service.Revoke(r.Context(), id); err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("access revoked", slog.Int64("grant_id", id))
	render.JSON(w, r, response.OK())
}

// ListForUser godoc
// @Summary Доступы пользователя
// @Tags Admin
// @Security BearerAuth
// @Produce  json
// @Param uid path string true "UID пользователя"
// @Success 200 {object} response.Response
// @Router /admin/users/{uid}/access [get]
func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.access.ListForUser")

	uid := chi.URLParam(r, "uid")
	if err := h.validate.Var(uid, "required,uuid"); err != nil {
		response.WriteStatus(w, r, http.StatusBadRequest, "invalid uid")
		return
	}
	grants, err := h.service.ListForUser(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"grants": grants,
	}))
}
