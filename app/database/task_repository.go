package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lysyi3m/listing-comb/app/model"
)

// SQLTaskRepository handles database operations for collection tasks
type SQLTaskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) *SQLTaskRepository {
	return &SQLTaskRepository{db: db}
}

const taskColumns = `id, source_id, method, status, urls, total_products, collected_products,
	failed_products, progress, settings, activity, created_at, started_at, completed_at, updated_at`

func (r *SQLTaskRepository) CreateTask(task model.CollectionTask) error {
	args, err := taskArgs(task)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: task %s already exists", model.ErrStateConflict, task.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *SQLTaskRepository) GetTask(id string) (*model.CollectionTask, error) {
	row := r.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *SQLTaskRepository) UpdateTask(task model.CollectionTask) error {
	args, err := taskArgs(task)
	if err != nil {
		return err
	}

	// Move id to the WHERE position.
	args = append(args[1:], args[0])
	result, err := r.db.Exec(`
		UPDATE tasks
		SET source_id = ?, method = ?, status = ?, urls = ?, total_products = ?, collected_products = ?,
			failed_products = ?, progress = ?, settings = ?, activity = ?, created_at = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return expectOneRow(result, "task", task.ID)
}

func (r *SQLTaskRepository) ListTasks(limit int) ([]model.CollectionTask, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.CollectionTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func taskArgs(task model.CollectionTask) ([]any, error) {
	urls, err := encodeJSON(task.URLs)
	if err != nil {
		return nil, err
	}
	settings, err := encodeJSON(task.Settings)
	if err != nil {
		return nil, err
	}
	activity, err := encodeJSON(task.Activity)
	if err != nil {
		return nil, err
	}

	return []any{
		task.ID, task.SourceID, string(task.Method), string(task.Status), urls,
		task.TotalProducts, task.CollectedProducts, task.FailedProducts, task.Progress,
		settings, activity, formatTime(task.CreatedAt),
		formatNullTime(task.StartedAt), formatNullTime(task.CompletedAt), formatTime(task.UpdatedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.CollectionTask, error) {
	var (
		task                     model.CollectionTask
		method, status           string
		urls, settings, activity string
		createdAt, updatedAt     string
		startedAt, completedAt   sql.NullString
	)

	err := row.Scan(&task.ID, &task.SourceID, &method, &status, &urls,
		&task.TotalProducts, &task.CollectedProducts, &task.FailedProducts, &task.Progress,
		&settings, &activity, &createdAt, &startedAt, &completedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	task.Method = model.TaskMethod(method)
	task.Status = model.TaskStatus(status)

	if err := decodeJSON(urls, &task.URLs); err != nil {
		return nil, err
	}
	if err := decodeJSON(settings, &task.Settings); err != nil {
		return nil, err
	}
	if err := decodeJSON(activity, &task.Activity); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if task.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}

	return &task, nil
}

func expectOneRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, kind, id)
	}
	return nil
}
