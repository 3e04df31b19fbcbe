package course

import (
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fitness-courses/internal/http/request"
	"github.com/magabrotheeeer/fitness-courses/internal/http/response"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
	coursesvc "github.com/magabrotheeeer/fitness-courses/internal/services/course"
)

const maxCoverBytes = 5 << 20

var coverTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// List godoc
// @Summary Все курсы
// @Description Курсы вместе с черновиками.
// @Tags Admin
// @Security BearerAuth
// @Produce  json
// @Param q query string false "Подстрока названия"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Router /admin/courses [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.List")

	filter, ok := h.filter(w, r, log)
	if !ok {
		return
	}
	courses, err := h.service.List(r.Context(), filter)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"courses": courses,
	}))
}

// Get godoc
// @Summary Курс с тренировками и планами питания
// @Tags Admin
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID курса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Router /admin/courses/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.Get")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	workouts, err := h.service.ListWorkouts(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	meals, err := h.service.ListMealPlans(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"course":     c,
		"workouts":   workouts,
		"meal_plans": meals,
	}))
}

// Create godoc
// @Summary Создать курс
// @Tags Admin
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param request body models.CourseInput true "Параметры курса"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 409 {object} response.ErrorResponse "Slug занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/courses [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.Create")

	var in models.CourseInput
	if !request.DecodeJSON(w, r, log, h.validate, &in) {
		return
	}
	c, err := h.service.Create(r.Context(), in)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("course created", "id", c.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"course": c,
	}))
}

// Update godoc
// @Summary Изменить курс
// @Tags Admin
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param id path int true "ID курса"
// @Param request body models.CourseInput true "Параметры курса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/courses/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.Update")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	var in models.CourseInput
	if !request.DecodeJSON(w, r, log, h.validate, &in) {
		return
	}
	c, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("course updated", "id", id)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"course": c,
	}))
}

// Remove godoc
// @Summary Удалить курс
// @Description Курс с оплатами удалить нельзя, его можно снять с публикации.
// @Tags Admin
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID курса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Failure 409 {object} response.ErrorResponse "У курса есть оплаты"
// @Router /admin/courses/{id} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.Remove")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("course removed", "id", id)
	render.JSON(w, r, response.OK())
}

// AddWorkout godoc
// @Summary Добавить тренировку
// @Tags Admin
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param id path int true "ID курса"
// @Param request body models.WorkoutInput true "Тренировка"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Failure 409 {object} response.ErrorResponse "Позиция занята"
// @Router /admin/courses/{id}/workouts [post]
func (h *Handler) AddWorkout(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.AddWorkout")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	var in models.WorkoutInput
	if !request.DecodeJSON(w, r, log, h.validate, &in) {
		return
	}
	workout, err := h.service.AddWorkout(r.Context(), id, in)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"workout": workout,
	}))
}

// AddMealPlan godoc
// @Summary Добавить план питания
// @Tags Admin
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param id path int true "ID курса"
// @Param request body models.MealPlanInput true "План питания"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Router /admin/courses/{id}/meals [post]
func (h *Handler) AddMealPlan(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.AddMealPlan")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}
	var in models.MealPlanInput
	if !request.DecodeJSON(w, r, log, h.validate, &in) {
		return
	}
	meal, err := h.service.AddMealPlan(r.Context(), id, in)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"meal_plan": meal,
	}))
}

// UploadCover godoc
// @Summary Загрузить обложку
// @Description multipart/form-data с полем cover: JPEG, PNG или WebP до 5 МБ.
// @Tags Admin
// @Security BearerAuth
// @Accept  multipart/form-data
// @Produce  json
// @Param id path int true "ID курса"
// @Param cover formData file true "Файл обложки"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Нет файла или неверный формат"
// @Failure 404 {object} response.ErrorResponse "Курс не найден"
// @Router /admin/courses/{id}/cover [put]
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.course.UploadCover")

	id, ok := request.IDParam(w, r, log, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverBytes+1<<10)
	file, header, err := r.FormFile("cover")
	if err != nil {
		log.Warn("cover file missing", "error", err)
		response.WriteStatus(w, r, http.StatusBadRequest, "cover file is required")
		return
	}
	defer file.Close()

	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	if !coverTypes[contentType] {
		response.WriteStatus(w, r, http.StatusBadRequest, "cover must be jpeg, png or webp")
		return
	}
	if header.Size > maxCoverBytes {
		response.WriteStatus(w, r, http.StatusBadRequest, "cover is larger than 5 MB")
		return
	}

	c, err := h.service.UploadCover(r.Context(), id, coursesvc.Cover{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("cover uploaded", "id", id)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"course": c,
	}))
}
