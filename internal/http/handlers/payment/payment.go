// Package payment реализует HTTP-обработчики покупки курса и вебхука платёжного провайдера.
package payment

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fitness-courses/internal/http/request"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// maxWebhookBytes предел тела вебхука, совпадает с рекомендацией Stripe.
const maxWebhookBytes = 65536

// SignatureHeader заголовок с подписью вебхука.
const SignatureHeader = "Stripe-Signature"

// Service описывает бизнес-логику оплат.
type Service interface {
	Checkout(ctx context.Context, userUID string, courseID int64) (*models.CheckoutSession, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	ListPayments(ctx context.Context, userUID string) ([]models.Payment, error)
}

// Handler обрабатывает запросы оплат.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Checkout godoc
// @Summary Купить курс
// @Description Создает сессию оплаты и возвращает ссылку на страницу оплаты.
// @Tags Payments
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID курса"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Failure 409 {object} response.ErrorResponse "Доступ уже есть или курс не опубликован"
// @Router /courses/{id}/checkout [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payment.Checkout")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	cs, err := h.service.Checkout(r.Context(), uid, id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"session_id":   cs.ID,
		"checkout_url": cs.URL,
	}))
}

// Webhook godoc
// @Summary Вебхук платёжного провайдера
// @Description Проверяет подпись и применяет событие. Не 2xx ответ заставляет провайдера повторить доставку.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Платёж не найден"
// @Router /payments/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payment.Webhook")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		response.WriteStatus(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.OK())
}

// List godoc
// @Summary Мои оплаты
// @Tags Payments
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response
// @Router /payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payment.List")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payments": payments,
	}))
}
