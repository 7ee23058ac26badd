package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
)

func TestOptionalTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantSet bool
		wantNil bool
	}{
		{"absent", `{}`, false, true},
		{"null", `{"due_at":null}`, true, true},
		{"value", `{"due_at":"2026-06-01T09:00:00Z"}`, true, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var req TaskPatchRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.wantSet, req.DueAt.Set)
			assert.Equal(t, tc.wantNil, req.DueAt.Time == nil)
		})
	}

	var req TaskPatchRequest
	assert.Error(t, json.Unmarshal([]byte(`{"due_at":"tomorrow"}`), &req))
}

func TestTaskToResponse(t *testing.T) {
	t.Parallel()

	local := time.Date(2026, 6, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	resp := taskToResponse(&domain.Task{
		ID:          9,
		Title:       "t",
		Status:      domain.TaskStatusDone,
		DueAt:       &local,
		NotifyJobID: "job-3",
	})

	assert.Equal(t, []idgen.ID{}, resp.CategoryIDs)
	require.NotNil(t, resp.DueAt)
	assert.Equal(t, time.UTC, resp.DueAt.Location())

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"category_ids":[]`)
	assert.Contains(t, string(raw), `"due_at":"2026-06-01T09:00:00Z"`)
	assert.NotContains(t, string(raw), "job-3")
}
