package api

import (
	"log/slog"
	"net/http"

	"github.com/ibras0696/m-django-work/internal/api/shared"
	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/service"
)

// TaskHandler serves the authenticated user's tasks.
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// List handles GET /tasks. It accepts the status, category, due_before and
// due_after filters and ?page=N.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	in := service.ListTasksInput{
		Status:    domain.TaskStatus(r.URL.Query().Get("status")),
		DueBefore: parseTimeQuery(r, "due_before"),
		DueAfter:  parseTimeQuery(r, "due_after"),
		Page:      page,
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		in.CategoryID, err = idgen.ParseID(raw)
		if err != nil {
			HandleAPIError(w, r, domain.NewValidationError("category", "has invalid format", domain.ErrInvalidID), "")
			return
		}
	}

	res, err := h.tasks.ListTasks(r.Context(), userID, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	results := make([]TaskResponse, 0, len(res.Tasks))
	for _, t := range res.Tasks {
		results = append(results, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newPage(r, res.Total, res.Page, res.HasNext(), results))
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req TaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), userID, req.toCreateInput())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.tasks.GetTask(r.Context(), userID, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// Replace handles PUT /tasks/{id}.
func (h *TaskHandler) Replace(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req TaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.update(w, r, userID, taskID, req.toReplaceInput())
}

// Patch handles PATCH /tasks/{id}.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req TaskPatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.update(w, r, userID, taskID, req.toUpdateInput())
}

func (h *TaskHandler) update(w http.ResponseWriter, r *http.Request, userID, taskID idgen.ID, in service.UpdateTaskInput) {
	task, err := h.tasks.UpdateTask(r.Context(), userID, taskID, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// Delete handles DELETE /tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := handleUserIDAndPathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), userID, taskID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Debug("task deleted",
		slog.String("task_id", taskID.String()))
	shared.RespondNoContent(w)
}
