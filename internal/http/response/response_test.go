package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

func TestStatusOKWithData(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := StatusOKWithData(data)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestValidationError(t *testing.T) {
	type request struct {
		Email string `validate:"required,email"`
		Days  int    `validate:"gte=1"`
		Role  string `validate:"oneof=user admin"`
	}

	err := validator.New().Struct(request{Email: "nope", Role: "root"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Email must be a valid email")
	assert.Contains(t, resp.Error, "field Days must be at least 1")
	assert.Contains(t, resp.Error, "field Role must be one of [user admin]")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"course not found", models.ErrCourseNotFound, http.StatusNotFound, "course not found"},
		{"wrapped not found", fmt.Errorf("services.AdminService.GetUser: %w", models.ErrNotFound), http.StatusNotFound, "not found"},
		{"credentials", models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"no access", models.ErrNoAccess, http.StatusForbidden, "no active access to course"},
		{"overlap", models.ErrFreezeOverlap, http.StatusConflict, "freeze overlaps an existing freeze"},
		{"concurrent freeze", fmt.Errorf("services.AccessService.Freeze: %w", models.ErrConcurrentUpdate), http.StatusConflict, "resource was modified concurrently"},
		{
			"workout days detail",
			fmt.Errorf("%w: course requires 3 days, got 2", models.ErrInvalidWorkoutDays),
			http.StatusBadRequest,
			"invalid workout days selection: course requires 3 days, got 2",
		},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := StatusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	WriteError(w, req, sl.Discard(), models.ErrEnrollmentNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusError, body.Status)
	assert.Equal(t, "active enrollment not found", body.Error)
}
