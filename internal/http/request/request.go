// Package request разбирает входные данные HTTP-запросов: JSON-тело,
// параметры пути и строки запроса, пользователя из контекста.
// При ошибке хелперы сами пишут ответ и возвращают false.
package request

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitness-courses/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
)

// maxBodyBytes предел размера JSON-тела запроса.
const maxBodyBytes = 1 << 20

// DecodeJSON читает тело в dst и проверяет его валидатором.
// Некорректный JSON даёт 400, ошибки валидации 422.
func DecodeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		response.WriteStatus(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			log.Warn("validation failed", sl.Err(err))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return false
		}
		log.Error("validator failed", sl.Err(err))
		response.WriteStatus(w, r, http.StatusInternalServerError, "internal error")
		return false
	}
	return true
}

// IDParam читает положительный целочисленный параметр пути name.
func IDParam(w http.ResponseWriter, r *http.Request, log *slog.Logger, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		log.Warn("invalid path parameter", slog.String("name", name), slog.String("value", raw))
		response.WriteStatus(w, r, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// UserUID возвращает UID текущего пользователя или пишет 401.
func UserUID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		response.WriteStatus(w, r, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return uid, true
}

// Page читает limit и offset из строки запроса. Отсутствующие значения равны нулю.
func Page(w http.ResponseWriter, r *http.Request, log *slog.Logger) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			log.Warn("invalid query parameter", slog.String("name", p.name), slog.String("value", raw))
			response.WriteStatus(w, r, http.StatusBadRequest, "invalid "+p.name)
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}
