package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWeekdays(t *testing.T) {
	tests := []struct {
		name    string
		days    []int
		want    []int
		wantErr bool
	}{
		{name: "mon wed fri", days: []int{5, 1, 3}, want: []int{1, 3, 5}},
		{name: "sunday is seven", days: []int{7}, want: []int{7}},
		{name: "duplicate", days: []int{1, 1}, wantErr: true},
		{name: "zero", days: []int{0}, wantErr: true},
		{name: "eight", days: []int{8}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWeekdays(tt.days)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWorkoutDays)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.List())
			assert.Equal(t, len(tt.want), w.Count())
		})
	}
}

func TestWeekdays_Has(t *testing.T) {
	w, err := NewWeekdays([]int{1, 7})
	require.NoError(t, err)

	assert.True(t, w.Has(time.Monday))
	assert.True(t, w.Has(time.Sunday))
	assert.False(t, w.Has(time.Saturday))
}

func TestWeekdays_JSON(t *testing.T) {
	w, err := NewWeekdays([]int{2, 4})
	require.NoError(t, err)

	data, err := json.Marshal(Enrollment{WorkoutDays: w})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"workout_days":[2,4]`)

	var e Enrollment
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, w, e.WorkoutDays)

	assert.Error(t, json.Unmarshal([]byte(`{"workout_days":[9]}`), &e))
}
