package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/schedule"
	"github.com/ibras0696/m-django-work/internal/store"
)

// DefaultPageSize is the number of entries in one page of a listing.
const DefaultPageSize = 5

// CreateTaskInput holds the fields of a new task. An empty Status means todo.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	DueAt       *time.Time
	CategoryIDs []idgen.ID
}

// UpdateTaskInput is a partial update. Nil fields are left unchanged.
// DueAtSet distinguishes an explicit null deadline from an absent one.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	DueAt       *time.Time
	DueAtSet    bool
	CategoryIDs *[]idgen.ID
}

// ListTasksInput selects one page of a user's tasks. Page numbers start at 1.
type ListTasksInput struct {
	Status     domain.TaskStatus
	CategoryID idgen.ID
	DueBefore  *time.Time
	DueAfter   *time.Time
	Page       int
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks    []*domain.Task
	Total    int
	Page     int
	PageSize int
}

// HasNext reports whether another page follows.
func (p *TaskPage) HasNext() bool {
	return p.Page*p.PageSize < p.Total
}

// TaskService manages the tasks of one user at a time.
type TaskService interface {
	CreateTask(ctx context.Context, userID idgen.ID, in CreateTaskInput) (*domain.Task, error)
	GetTask(ctx context.Context, userID, taskID idgen.ID) (*domain.Task, error)
	ListTasks(ctx context.Context, userID idgen.ID, in ListTasksInput) (*TaskPage, error)
	UpdateTask(ctx context.Context, userID, taskID idgen.ID, in UpdateTaskInput) (*domain.Task, error)
	DeleteTask(ctx context.Context, userID, taskID idgen.ID) error
}

type taskServiceImpl struct {
	db         store.Beginner
	tasks      store.TaskStore
	categories store.CategoryStore
	gate       *schedule.Gate
	logger     *slog.Logger
}

// NewTaskService creates a TaskService. Every write goes through gate so the
// task's notification stays in step with its deadline.
func NewTaskService(
	db store.Beginner,
	tasks store.TaskStore,
	categories store.CategoryStore,
	gate *schedule.Gate,
	logger *slog.Logger,
) (TaskService, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if categories == nil {
		return nil, domain.NewValidationError("categories", "cannot be nil", domain.ErrValidation)
	}
	if gate == nil {
		return nil, domain.NewValidationError("gate", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		db:         db,
		tasks:      tasks,
		categories: categories,
		gate:       gate,
		logger:     logger.With(slog.String("component", "task_service")),
	}, nil
}

func taskError(operation, message string, err error) *ServiceError {
	return NewServiceError("task", operation, message, err)
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(ctx context.Context, userID idgen.ID, in CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(userID, in.Title, in.Description, in.DueAt)
	if err != nil {
		return nil, err
	}
	if in.Status != "" {
		task.Status = in.Status
		if err := task.Validate(); err != nil {
			return nil, err
		}
	}

	var prev schedule.PreviousState
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)

		var err error
		prev, err = s.gate.BeginMutation(ctx, txTasks, task.ID)
		if err != nil {
			return err
		}
		s.gate.AssignID(task)

		task.CategoryIDs, err = s.categories.WithTx(tx).ExistingIDs(ctx, in.CategoryIDs)
		if err != nil {
			return taskError("create_task", "failed to resolve categories", err)
		}
		if err := txTasks.Create(ctx, task); err != nil {
			return taskError("create_task", "failed to save task", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}

	s.afterWrite(ctx, prev, task)
	log.Info("created task",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", userID.String()))
	return task, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, userID, taskID idgen.ID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, taskError("get_task", "failed to load task", err)
	}
	return task, nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(ctx context.Context, userID idgen.ID, in ListTasksInput) (*TaskPage, error) {
	page := in.Page
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return nil, taskError("list_tasks", "page must be positive", ErrInvalidPage)
	}

	tasks, total, err := s.tasks.List(ctx, store.TaskFilter{
		UserID:     userID,
		Status:     in.Status,
		CategoryID: in.CategoryID,
		DueBefore:  in.DueBefore,
		DueAfter:   in.DueAfter,
		Page:       store.Page{Limit: DefaultPageSize, Offset: (page - 1) * DefaultPageSize},
	})
	if err != nil {
		return nil, taskError("list_tasks", "failed to list tasks", err)
	}
	if page > 1 && len(tasks) == 0 {
		return nil, taskError("list_tasks", "page out of range", ErrInvalidPage)
	}

	return &TaskPage{Tasks: tasks, Total: total, Page: page, PageSize: DefaultPageSize}, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	userID, taskID idgen.ID,
	in UpdateTaskInput,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		prev schedule.PreviousState
		task *domain.Task
	)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)

		var err error
		prev, err = s.gate.BeginMutation(ctx, txTasks, taskID)
		if err != nil {
			return err
		}
		task, err = txTasks.GetByID(ctx, userID, taskID)
		if err != nil {
			return taskError("update_task", "failed to load task", err)
		}

		applyUpdate(task, in)
		if in.CategoryIDs != nil {
			task.CategoryIDs, err = s.categories.WithTx(tx).ExistingIDs(ctx, *in.CategoryIDs)
			if err != nil {
				return taskError("update_task", "failed to resolve categories", err)
			}
		}
		if err := task.Validate(); err != nil {
			return err
		}
		if err := txTasks.Update(ctx, task); err != nil {
			return taskError("update_task", "failed to save task", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, store.ErrNotFound) {
			log.Error("failed to update task",
				slog.String("error", err.Error()),
				slog.String("task_id", taskID.String()))
		}
		return nil, err
	}

	s.afterWrite(ctx, prev, task)
	log.Debug("updated task", slog.String("task_id", taskID.String()))
	return task, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, userID, taskID idgen.ID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var prev schedule.PreviousState
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)

		var err error
		prev, err = s.gate.BeginMutation(ctx, txTasks, taskID)
		if err != nil {
			return err
		}
		if err := txTasks.Delete(ctx, userID, taskID); err != nil {
			return taskError("delete_task", "failed to delete task", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.gate.CompleteDeletion(ctx, taskID, prev); err != nil {
		log.Warn("notification of deleted task left for the executor to discard",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
	}
	log.Info("deleted task", slog.String("task_id", taskID.String()))
	return nil
}

// afterWrite reconciles the committed task. Failures are already logged and
// counted by the gate; the sweeper retries them.
func (s *taskServiceImpl) afterWrite(ctx context.Context, prev schedule.PreviousState, task *domain.Task) {
	res := s.gate.CompleteMutation(ctx, s.tasks, prev, task)
	if err := res.Err(); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("notification reconcile incomplete",
			slog.String("task_id", task.ID.String()),
			slog.String("action", string(res.Action)))
	}
}

func applyUpdate(task *domain.Task, in UpdateTaskInput) {
	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if in.DueAtSet || in.DueAt != nil {
		task.SetDueAt(in.DueAt)
	}
}
