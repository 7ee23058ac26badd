package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	due := time.Date(2030, 1, 2, 3, 4, 5, 123456789, time.FixedZone("X", 3600))
	task, err := NewTask(42, "write report", "", &due)
	require.NoError(t, err)

	assert.Zero(t, task.ID, "id is assigned on the write path")
	assert.Equal(t, TaskStatusTodo, task.Status)
	require.NotNil(t, task.DueAt)
	assert.Equal(t, time.UTC, task.DueAt.Location())
	assert.True(t, task.DueAt.Equal(due.Truncate(time.Microsecond)))
	assert.Empty(t, task.NotifyJobID)
}

func TestTask_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Task {
		return &Task{UserID: 1, Title: "t", Status: TaskStatusTodo}
	}

	tests := []struct {
		name   string
		mutate func(*Task)
		field  string
	}{
		{"valid", func(*Task) {}, ""},
		{"missing user", func(t *Task) { t.UserID = 0 }, "user_id"},
		{"blank title", func(t *Task) { t.Title = "   " }, "title"},
		{"long title", func(t *Task) { t.Title = strings.Repeat("a", 201) }, "title"},
		{"title at limit", func(t *Task) { t.Title = strings.Repeat("я", 200) }, ""},
		{"bad status", func(t *Task) { t.Status = "archived" }, "status"},
		{"long handle", func(t *Task) { t.NotifyJobID = strings.Repeat("x", 65) }, "notify_job_id"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			task := valid()
			tt.mutate(task)
			err := task.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidationError_WrapsSpecificError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("status", "is bad", ErrInvalidTaskStatus)
	assert.ErrorIs(t, err, ErrInvalidTaskStatus)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "status is bad", err.Error())
}

func TestSameDueAt(t *testing.T) {
	t.Parallel()

	a := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	b := a.In(time.FixedZone("Y", -7200))
	c := a.Add(time.Second)

	assert.True(t, SameDueAt(nil, nil))
	assert.True(t, SameDueAt(&a, &b))
	assert.False(t, SameDueAt(&a, &c))
	assert.False(t, SameDueAt(&a, nil))
	assert.False(t, SameDueAt(nil, &a))
}

func TestCategoryAndUserValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCategory("  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewCategory(strings.Repeat("c", 65))
	assert.ErrorIs(t, err, ErrValidation)

	c, err := NewCategory(" work ")
	require.NoError(t, err)
	assert.Equal(t, "work", c.Name)

	_, err = NewUser("", "", "")
	assert.ErrorIs(t, err, ErrEmptyUsername)

	_, err = NewUser("alice", "not-an-email", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewUser("alice", "", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	u, err := NewUser(BotUsername(777), "", "")
	require.NoError(t, err)
	assert.Equal(t, "tg_777", u.Username)
	assert.False(t, u.HasPassword())
}
