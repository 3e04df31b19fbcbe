package enrollment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fitness-courses/internal/http/request"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
)

// Today godoc
// @Summary План на сегодня
// @Tags Plan
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Нет записи или дня плана"
// @Router /plan/today [get]
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.Today")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	day, err := h.service.Today(r.Context(), uid)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"day": day,
	}))
}

// Plan godoc
// @Summary План за период
// @Description Без параметров возвращает четыре недели с начала записи.
// @Tags Plan
// @Security BearerAuth
// @Produce  json
// @Param from query string false "Начало периода, 2006-01-02"
// @Param to query string false "Конец периода включительно, 2006-01-02"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверный период"
// @Failure 404 {object} response.ErrorResponse "Нет активной записи"
// @Router /plan [get]
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.Plan")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	q := r.URL.Query()
	days, err := h.service.ListPlan(r.Context(), uid, q.Get("from"), q.Get("to"))
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"days": days,
	}))
}

// CompleteDay godoc
// @Summary Отметить день выполненным
// @Description Повторная отметка ничего не меняет. Будущие дни отмечать нельзя.
// @Tags Plan
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID дня плана"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "День в будущем"
// @Failure 404 {object} response.ErrorResponse "День не найден"
// @Router /plan/{id}/complete [post]
func (h *Handler) CompleteDay(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.enrollment.CompleteDay")

	uid, ok := request.UserUID(w, r, log)
	if !ok {
		return
	}
	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	day, err := h.service.CompleteDay(r.Context(), uid, id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("plan day completed", slog.Int64("day_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"day": day,
	}))
}
