package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/idgen"
	"github.com/ibras0696/m-django-work/internal/platform/logger"
	"github.com/ibras0696/m-django-work/internal/store"
)

// PostgresTaskStore implements store.TaskStore on the tasks and
// task_categories tables.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a task store on db.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

const taskColumns = `t.id, t.user_id, t.title, t.description, t.status, t.created_at, t.due_at, t.notify_job_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t   domain.Task
		due sql.NullTime
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.CreatedAt,
		&due,
		&t.NotifyJobID,
	); err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time.UTC()
		t.DueAt = &d
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task.ID == 0 {
		return domain.NewValidationError("id", "must be assigned before insert", domain.ErrInvalidID)
	}
	if err := task.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, status, created_at, due_at, notify_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		task.ID.Int64(),
		task.UserID.Int64(),
		task.Title,
		task.Description,
		string(task.Status),
		task.CreatedAt,
		nullTime(task.DueAt),
		task.NotifyJobID,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	if err := s.insertCategoryLinks(ctx, task.ID, task.CategoryIDs); err != nil {
		return err
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	return nil
}

func (s *PostgresTaskStore) insertCategoryLinks(ctx context.Context, taskID idgen.ID, categoryIDs []idgen.ID) error {
	for _, cid := range categoryIDs {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO task_categories (task_id, category_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, taskID.Int64(), cid.Int64())
		if err != nil {
			return MapError(err)
		}
	}
	return nil
}

// loadCategories fills CategoryIDs for every task in one query.
func (s *PostgresTaskStore) loadCategories(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[idgen.ID]*domain.Task, len(tasks))
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		t.CategoryIDs = []idgen.ID{}
		byID[t.ID] = t
		ids = append(ids, t.ID.Int64())
	}

	query, args, err := sqlx.In(`
		SELECT task_id, category_id
		FROM task_categories
		WHERE task_id IN (?)
		ORDER BY task_id, category_id
	`, ids)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var taskID, categoryID idgen.ID
		if err := rows.Scan(&taskID, &categoryID); err != nil {
			return MapError(err)
		}
		if t, ok := byID[taskID]; ok {
			t.CategoryIDs = append(t.CategoryIDs, categoryID)
		}
	}
	return MapError(rows.Err())
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, userID, id idgen.ID) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1 AND t.user_id = $2`,
		id.Int64(), userID.Int64()))
	if err != nil {
		return nil, s.notFoundOr(err)
	}
	if err := s.loadCategories(ctx, []*domain.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

// List implements store.TaskStore.List
func (s *PostgresTaskStore) List(ctx context.Context, f store.TaskFilter) ([]*domain.Task, int, error) {
	where := []string{"t.user_id = $1"}
	args := []any{f.UserID.Int64()}
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("t.status = $%d", string(f.Status))
	}
	if f.CategoryID != 0 {
		add("EXISTS (SELECT 1 FROM task_categories tc WHERE tc.task_id = t.id AND tc.category_id = $%d)",
			f.CategoryID.Int64())
	}
	if f.DueBefore != nil {
		add("t.due_at <= $%d", *f.DueBefore)
	}
	if f.DueAfter != nil {
		add("t.due_at >= $%d", *f.DueAfter)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, MapError(err)
	}

	limit, offset := f.Page.Limit, f.Page.Offset
	if limit <= 0 {
		limit = total
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks t WHERE %s ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d`,
		taskColumns, clause, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, MapError(err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}

	if err := s.loadCategories(ctx, tasks); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, due_at = $4
		WHERE id = $5 AND user_id = $6
	`,
		task.Title,
		task.Description,
		string(task.Status),
		nullTime(task.DueAt),
		task.ID.Int64(),
		task.UserID.Int64(),
	)
	if err != nil {
		return MapError(err)
	}
	if err := checkRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_categories WHERE task_id = $1`, task.ID.Int64()); err != nil {
		return MapError(err)
	}
	return s.insertCategoryLinks(ctx, task.ID, task.CategoryIDs)
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, userID, id idgen.ID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id.Int64(), userID.Int64())
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrTaskNotFound)
}

// GetTaskForUpdate implements store.TaskStore.GetTaskForUpdate. Category
// ids are not loaded.
func (s *PostgresTaskStore) GetTaskForUpdate(ctx context.Context, id idgen.ID) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1 FOR UPDATE`,
		id.Int64()))
	if err != nil {
		return nil, s.notFoundOr(err)
	}
	return task, nil
}

// GetTask implements store.TaskStore.GetTask. Category ids are not loaded.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id idgen.ID) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`,
		id.Int64()))
	if err != nil {
		return nil, s.notFoundOr(err)
	}
	return task, nil
}

// SwapNotifyJobID implements store.TaskStore.SwapNotifyJobID. Under READ
// COMMITTED a swap blocked on a row lock re-checks its conditions against the
// committed row, so it cannot land on a state it was not scheduled for.
func (s *PostgresTaskStore) SwapNotifyJobID(ctx context.Context, swap store.HandleSwap) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET notify_job_id = $1
		WHERE id = $2
		  AND notify_job_id = $3
		  AND (status = 'done') = $4
		  AND due_at IS NOT DISTINCT FROM $5::timestamptz
	`, swap.New, swap.TaskID.Int64(), swap.Old, swap.Done, nullTime(swap.DueAt))
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListUnscheduledTasks implements store.TaskStore.ListUnscheduledTasks
func (s *PostgresTaskStore) ListUnscheduledTasks(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	return s.listAll(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.due_at > $1 AND t.status <> 'done' AND t.notify_job_id = ''
		ORDER BY t.due_at
		LIMIT $2
	`, now, limit)
}

// ListTasksWithStaleHandles implements store.TaskStore.ListTasksWithStaleHandles
func (s *PostgresTaskStore) ListTasksWithStaleHandles(ctx context.Context, limit int) ([]*domain.Task, error) {
	return s.listAll(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.notify_job_id <> '' AND (t.status = 'done' OR t.due_at IS NULL)
		ORDER BY t.id
		LIMIT $1
	`, limit)
}

func (s *PostgresTaskStore) listAll(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, t)
	}
	return tasks, MapError(rows.Err())
}

func (s *PostgresTaskStore) notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrTaskNotFound
	}
	return MapError(err)
}
