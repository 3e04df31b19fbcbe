// Package auth реализует HTTP-обработчики регистрации, входа и сброса пароля.
//
// Пароли и токены не попадают в логи: логируется только имя пользователя.
package auth

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

// Service описывает бизнес-логику аутентификации.
type Service interface {
	Register(ctx context.Context, email, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// RegisterRequest данные регистрации.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest учётные данные для входа.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest запрос письма со ссылкой сброса.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest новый пароль по токену из письма.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required,uuid"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Handler обрабатывает запросы аутентификации.
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

// Register godoc
// @Summary Регистрация пользователя
// @Description Создает пользователя с ролью user и отправляет приветственное письмо.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body RegisterRequest true "Данные нового пользователя"
// @Success 201 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email или имя заняты"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.Register")

	var req RegisterRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	uid, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("user registered", slog.String("username", req.Username))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_uid": uid,
	}))
}

// Login godoc
// @Summary Авторизация пользователя
// @Description Проверяет имя и пароль и возвращает JWT.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body LoginRequest true "Учетные данные"
// @Success 200 {object} response.Response "Токен и пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.Login")

	var req LoginRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("login success", slog.String("username", req.Username))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token": token,
		"user":  user,
	}))
}

// ForgotPassword godoc
// @Summary Запрос сброса пароля
// @Description Отправляет письмо со ссылкой сброса. Ответ не зависит от того, зарегистрирован ли email.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body ForgotPasswordRequest true "Email"
// @Success 202 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /password/forgot [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.ForgotPassword")

	var req ForgotPasswordRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.OK())
}

// ResetPassword godoc
// @Summary Сброс пароля
// @Description Устанавливает новый пароль по одноразовому токену из письма.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body ResetPasswordRequest true "Токен и новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Токен недействителен или истёк"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /password/reset [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.auth.ResetPassword")

	var req ResetPasswordRequest
	if !request.DecodeJSON(w, r, log, h.validate, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("password reset")
	render.JSON(w, r, response.OK())
}
