// Package response формирует унифицированные JSON-ответы HTTP-обработчиков
// и сопоставляет ошибки предметной области со статусами HTTP.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// Response стандартная структура JSON-ответа сервера.
// Status принимает значения "OK" или "Error".
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ErrorResponse с переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response на основе ошибок валидации.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "url":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid url", err.Field()))
		case "min", "gte", "gt":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max", "lte", "lt":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "len":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must have length %s", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

type statusRule struct {
	status int
	errs   []error
	// detail: клиенту отдаётся полный текст ошибки, а не только текст sentinel.
	detail bool
}

var statusRules = []statusRule{
	{status: http.StatusNotFound, errs: []error{
		models.ErrCourseNotFound, models.ErrGrantNotFound, models.ErrEnrollmentNotFound,
		models.ErrPlanDayNotFound, models.ErrPaymentNotFound, models.ErrNotFound,
	}},
	{status: http.StatusUnauthorized, errs: []error{models.ErrInvalidCredentials}},
	{status: http.StatusForbidden, errs: []error{models.ErrForbidden, models.ErrNoAccess}},
	{status: http.StatusConflict, errs: []error{
		models.ErrAlreadyExists, models.ErrAlreadyHasAccess, models.ErrActiveEnrollmentExists,
		models.ErrFreezeOverlap, models.ErrFreezeLimit, models.ErrFreezeUnlimited,
		models.ErrGrantRevoked, models.ErrCourseInUse, models.ErrCourseNotPublished,
		models.ErrConcurrentUpdate,
	}},
	{status: http.StatusBadRequest, detail: true, errs: []error{
		models.ErrInvalidInput, models.ErrInvalidDate, models.ErrInvalidWorkoutDays,
		models.ErrStartInPast, models.ErrInvalidFreezeLen, models.ErrFreezeInPast,
		models.ErrFreezeAfterEnd, models.ErrPlanDayInFuture, models.ErrInvalidCourse,
		models.ErrInvalidResetToken, models.ErrInvalidSignature,
	}},
}

// StatusFor возвращает HTTP-статус и сообщение для клиента по ошибке сервиса.
// Неизвестные ошибки дают 500 без подробностей.
func StatusFor(err error) (int, string) {
	for _, rule := range statusRules {
		for _, target := range rule.errs {
			if !errors.Is(err, target) {
				continue
			}
			if rule.detail {
				return rule.status, err.Error()
			}
			return rule.status, target.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// WriteError пишет ответ с ошибкой. 5xx логируются как ошибки, остальные как предупреждения.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), sl.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// WriteStatus пишет ответ с ошибкой и явным статусом.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}
