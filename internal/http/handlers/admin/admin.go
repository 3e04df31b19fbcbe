// Package admin реализует HTTP-обработчики управления пользователями в админ-панели.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitness-courses/internal/http/request"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// Service описывает операции над пользователями.
type Service interface {
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	ChangeRole(ctx context.Context, actorUID, userUID, role string) (*models.User, error)
}

// RoleRequest новая роль пользователя.
type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// Handler обрабатывает запросы админ-панели.
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

// ListUsers godoc
// @Summary Поиск пользователей
// @Tags Admin
// @Security BearerAuth
// @Produce  json
// @Param q query string false "Подстрока email или имени"
// @Param role query string false "Роль: user или admin"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Router /admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.ListUsers")

	limit, offset, ok := request.Page(w, r, log)
	if !ok {
		return
	}
	q := r.URL.Query()
	users, err := h.service.ListUsers(r.Context(), models.UserFilter{
		Query:  q.Get("q"),
		Role:   q.Get("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"users": users,
	}))
}

// ChangeRole godoc
// @Summary Сменить роль пользователя
// @Description Администратор не может снять роль admin с самого себя.
// @Tags Admin
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param uid path string true "UID пользователя"
// @Param request body RoleRequest true "Роль"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Нельзя понизить себя"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /admin/users/{uid}/role [put]
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.ChangeRole")

	actor, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	uid := chi.URLParam(r, "uid")
	if err := h.validate.Var(uid, "required,uuid"); err != nil {
		response.WriteStatus(w, r, http.StatusBadRequest, "invalid uid")
		return
	}
	var req RoleRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	u, err := h.service.ChangeRole(r.Context(), actor, uid, req.Role)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": u,
	}))
}
