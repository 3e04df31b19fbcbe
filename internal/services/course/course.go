// Package services реализует каталог курсов и их администрирование.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/fitness-courses/internal/cache"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// CourseRepository хранилище курсов и их содержимого.
type CourseRepository interface {
	CreateCourse(ctx context.Context, c models.Course) (int64, error)
	UpdateCourse(ctx context.Context, c models.Course) error
	RemoveCourse(ctx context.Context, id int64) error
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	SetCourseCover(ctx context.Context, id int64, key string) error
	CreateWorkout(ctx context.Context, w models.Workout) (int64, error)
	ListWorkouts(ctx context.Context, courseID int64) ([]models.Workout, error)
	CreateMealPlan(ctx context.Context, m models.MealPlan) (int64, error)
	ListMealPlans(ctx context.Context, courseID int64) ([]models.MealPlan, error)
}

// Cache кэш карточек курсов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// FileStorage хранилище обложек курсов.
type FileStorage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Options параметры кэширования и ссылок на обложки.
type Options struct {
	CacheTTL   time.Duration
	PresignTTL time.Duration
}

// Cover загружаемый файл обложки.
type Cover struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// cachedCourse карточка в кэше. CoverKey не попадает в JSON ответа, поэтому хранится отдельно.
type cachedCourse struct {
	models.Course
	CoverKey string `json:"cover_key"`
}

// CourseService отвечает за каталог курсов, их содержимое и обложки.
type CourseService struct {
	log   *slog.Logger
	repo  CourseRepository
	cache Cache
	files FileStorage
	opts  Options
}

// NewCourseService создает новый экземпляр CourseService.
func NewCourseService(log *slog.Logger, repo CourseRepository, cache Cache, files FileStorage, opts Options) *CourseService {
	return &CourseService{
		log:   log,
		repo:  repo,
		cache: cache,
		files: files,
		opts:  opts,
	}
}

// ListPublished возвращает опубликованные курсы каталога.
func (s *CourseService) ListPublished(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	filter.OnlyPublished = true
	return s.List(ctx, filter)
}

// List возвращает курсы по фильтру, включая черновики, если фильтр это допускает.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	const op = "services.CourseService.List"

	courses, err := s.repo.ListCourses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range courses {
		s.withCoverURL(ctx, &courses[i])
	}
	return courses, nil
}

// Get возвращает курс по id. Чтение идёт через кэш course:<id>.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	const op = "services.CourseService.Get"

	var cached cachedCourse
	found, err := s.cache.Get(ctx, cache.CourseKey(id), &cached)
	if err != nil {
		s.log.Warn("course cache read failed", slog.Int64("course_id", id), sl.Err(err))
	}
	if found {
		c := cached.Course
		c.CoverKey = cached.CoverKey
		s.withCoverURL(ctx, &c)
		return &c, nil
	}

	c, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, courseErr(err))
	}
	if err := s.cache.Set(ctx, cache.CourseKey(id), cachedCourse{Course: *c, CoverKey: c.CoverKey}, s.opts.CacheTTL); err != nil {
		s.log.Warn("course cache write failed", slog.Int64("course_id", id), sl.Err(err))
	}
	s.withCoverURL(ctx, c)
	return c, nil
}

// GetPublished возвращает курс, только если он опубликован.
func (s *CourseService) GetPublished(ctx context.Context, id int64) (*models.Course, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsPublished {
		return nil, models.ErrCourseNotFound
	}
	return c, nil
}

// Create создает курс.
func (s *CourseService) Create(ctx context.Context, in models.CourseInput) (*models.Course, error) {
	const op = "services.CourseService.Create"

	c, err := courseFromInput(in)
	if err != nil {
		return nil, err
	}
	id, err := s.repo.CreateCourse(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// Update перезаписывает поля курса и сбрасывает кэш.
func (s *CourseService) Update(ctx context.Context, id int64, in models.CourseInput) (*models.Course, error) {
	const op = "services.CourseService.Update"

	c, err := courseFromInput(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	if err := s.repo.UpdateCourse(ctx, c); err != nil {
		return nil, fmt.Errorf("%s: %w", op, courseErr(err))
	}
	s.invalidate(ctx, id)
	return s.Get(ctx, id)
}

// Remove удаляет курс вместе с обложкой.
func (s *CourseService) Remove(ctx context.Context, id int64) error {
	const op = "services.CourseService.Remove"

	c, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, courseErr(err))
	}
	if err := s.repo.RemoveCourse(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, courseErr(err))
	}
	s.invalidate(ctx, id)
	s.deleteCover(ctx, c.CoverKey)
	return nil
}

// AddWorkout добавляет тренировку в программу курса.
func (s *CourseService) AddWorkout(ctx context.Context, courseID int64, in models.WorkoutInput) (*models.Workout, error) {
	const op = "services.CourseService.AddWorkout"

	w := models.Workout{
		CourseID:        courseID,
		Position:        in.Position,
		Title:           in.Title,
		Description:     in.Description,
		VideoURL:        in.VideoURL,
		DurationMinutes: in.DurationMinutes,
	}
	id, err := s.repo.CreateWorkout(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, courseErr(err))
	}
	w.ID = id
	return &w, nil
}

// AddMealPlan добавляет план питания в курс.
func (s *CourseService) AddMealPlan(ctx context.Context, courseID int64, in models.MealPlanInput) (*models.MealPlan, error) {
	const op = "services.CourseService.AddMealPlan"

	m := models.MealPlan{
		CourseID: courseID,
		Position: in.Position,
		Title:    in.Title,
		Content:  in.Content,
		Calories: in.Calories,
	}
	id, err := s.repo.CreateMealPlan(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, courseErr(err))
	}
	m.ID = id
	return &m, nil
}

// ListWorkouts тренировки курса по порядку.
func (s *CourseService) ListWorkouts(ctx context.Context, courseID int64) ([]models.Workout, error) {
	if _, err := s.repo.GetCourse(ctx, courseID); err != nil {
		return nil, fmt.Errorf("services.CourseService.ListWorkouts: %w", courseErr(err))
	}
	return s.repo.ListWorkouts(ctx, courseID)
}

// ListMealPlans планы питания курса по порядку.
func (s *CourseService) ListMealPlans(ctx context.Context, courseID int64) ([]models.MealPlan, error) {
	if _, err := s.repo.GetCourse(ctx, courseID); err != nil {
		return nil, fmt.Errorf("services.CourseService.ListMealPlans: %w", courseErr(err))
	}
	return s.repo.ListMealPlans(ctx, courseID)
}

// UploadCover сохраняет обложку в объектное хранилище и привязывает её к курсу.
// Прежний файл удаляется после успешной привязки нового.
func (s *CourseService) UploadCover(ctx context.Context, id int64, cover Cover) (*models.Course, error) {
	const op = "services.CourseService.UploadCover"

	c, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, courseErr(err))
	}

	key := fmt.Sprintf("courses/%d/cover-%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(cover.Filename)))
	if err := s.files.Put(ctx, key, cover.ContentType, cover.Body, cover.Size); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetCourseCover(ctx, id, key); err != nil {
		s.deleteCover(ctx, key)
		return nil, fmt.Errorf("%s: %w", op, courseErr(err))
	}
	s.invalidate(ctx, id)
	s.deleteCover(ctx, c.CoverKey)

	c.CoverKey = key
	s.withCoverURL(ctx, c)
	return c, nil
}

func (s *CourseService) withCoverURL(ctx context.Context, c *models.Course) {
	if c.CoverKey == "" {
		return
	}
	u, err := s.files.PresignGet(ctx, c.CoverKey, s.opts.PresignTTL)
	if err != nil {
		s.log.Warn("failed to presign cover", slog.Int64("course_id", c.ID), sl.Err(err))
		return
	}
	c.CoverURL = u
}

func (s *CourseService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, cache.CourseKey(id)); err != nil {
		s.log.Warn("failed to invalidate course cache", slog.Int64("course_id", id), sl.Err(err))
	}
}

func (s *CourseService) deleteCover(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete cover", slog.String("key", key), sl.Err(err))
	}
}

func courseFromInput(in models.CourseInput) (models.Course, error) {
	switch {
	case in.WorkoutsPerWeek < 1 || in.WorkoutsPerWeek > 7:
		return models.Course{}, fmt.Errorf("%w: workouts_per_week must be in 1..7", models.ErrInvalidCourse)
	case in.DurationWeeks < 1:
		return models.Course{}, fmt.Errorf("%w: duration_weeks must be positive", models.ErrInvalidCourse)
	case in.PriceCents < 0:
		return models.Course{}, fmt.Errorf("%w: price_cents must not be negative", models.ErrInvalidCourse)
	case in.AccessDays != nil && *in.AccessDays < 1:
		return models.Course{}, fmt.Errorf("%w: access_days must be positive", models.ErrInvalidCourse)
	}
	return models.Course{
		Slug:            in.Slug,
		Title:           in.Title,
		Description:     in.Description,
		PriceCents:      in.PriceCents,
		Currency:        strings.ToLower(in.Currency),
		DurationWeeks:   in.DurationWeeks,
		WorkoutsPerWeek: in.WorkoutsPerWeek,
		AccessDays:      in.AccessDays,
		IsPublished:     in.IsPublished,
	}, nil
}

func courseErr(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrCourseNotFound
	}
	return err
}
