package models

import "errors"

// Ошибки предметной области. Сервисы оборачивают их через %w,
// HTTP-слой сопоставляет их со статусами ответа через errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidDate        = errors.New("invalid date")
	ErrConcurrentUpdate   = errors.New("resource was modified concurrently")

	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotPublished = errors.New("course is not published")
	ErrInvalidCourse      = errors.New("invalid course parameters")

	ErrNoAccess         = errors.New("no active access to course")
	ErrAlreadyHasAccess = errors.New("access to course already granted")
	ErrGrantNotFound    = errors.New("access grant not found")
	ErrGrantRevoked     = errors.New("access grant revoked")

	ErrFreezeUnlimited  = errors.New("unlimited access cannot be frozen")
	ErrFreezeOverlap    = errors.New("freeze overlaps an existing freeze")
	ErrFreezeLimit      = errors.New("freeze limit exceeded")
	ErrFreezeInPast     = errors.New("freeze cannot start in the past")
	ErrFreezeAfterEnd   = errors.New("freeze cannot start after access expiry")
	ErrInvalidFreezeLen = errors.New("invalid freeze length")

	ErrActiveEnrollmentExists = errors.New("user already has an active enrollment")
	ErrEnrollmentNotFound     = errors.New("active enrollment not found")
	ErrInvalidWorkoutDays     = errors.New("invalid workout days selection")
	ErrStartInPast            = errors.New("start date cannot be in the past")

	ErrPlanDayNotFound = errors.New("plan day not found")
	ErrPlanDayInFuture = errors.New("plan day is in the future")

	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCourseInUse      = errors.New("course has payments and cannot be removed")
)
