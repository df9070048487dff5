package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 8
	DefaultRetryBase   = 5 * time.Second
	MaxRetryDelay      = time.Hour
)

// результат постановки удаления на запись, которую сервер не видел
const opDropped OpType = "dropped"

type QueueConfig struct {
	MaxAttempts int
	RetryBase   time.Duration
}

// Queue - отложенные операции, по одной на запись
type Queue struct {
	db  *sql.DB
	cfg QueueConfig
}

func NewQueue(db *sql.DB, cfg QueueConfig) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	return &Queue{db: db, cfg: cfg}
}

// Backoff - задержка после attempts неудачных попыток: base*2^(attempts-1), не больше часа
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	return min(delay, MaxRetryDelay)
}

// coalesce сворачивает новую операцию с уже стоящей в очереди
func coalesce(existing, next OpType) OpType {
	switch existing {
	case OpCreate:
		if next == OpDelete {
			return opDropped
		}
		return OpCreate
	case OpUpdate:
		if next == OpDelete {
			return OpDelete
		}
		return OpUpdate
	case OpDelete:
		return OpDelete
	}
	return next
}

// enqueue ставит операцию в рамках транзакции записи и возвращает итоговую операцию
func (q *Queue) enqueue(ctx context.Context, tx *sql.Tx, recordID string, op OpType, now time.Time) (OpType, error) {
	var existing string
	err := tx.QueryRowContext(ctx, `SELECT op FROM pending_operations WHERE record_id = ?`, recordID).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pending_operations (record_id, op, attempts, next_attempt_at, last_error, created_at)
			VALUES (?, ?, 0, ?, '', ?)`, recordID, string(op), formatTime(now), formatTime(now))
		if err != nil {
			return "", fmt.Errorf("ошибка постановки операции в очередь: %w", err)
		}
		return op, nil
	case err != nil:
		return "", fmt.Errorf("ошибка чтения очереди: %w", err)
	}

	result := coalesce(OpType(existing), op)
	if result == opDropped {
		return opDropped, q.remove(ctx, tx, recordID)
	}

	// новое содержимое отправляется без ожидания backoff
	_, err = tx.ExecContext(ctx, `
		UPDATE pending_operations
		SET op = ?, attempts = 0, next_attempt_at = ?, last_error = ''
		WHERE record_id = ?`, string(result), formatTime(now), recordID)
	if err != nil {
		return "", fmt.Errorf("ошибка обновления очереди: %w", err)
	}
	return result, nil
}

// replace ставит операцию без сворачивания
func (q *Queue) replace(ctx context.Context, tx *sql.Tx, recordID string, op OpType, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pending_operations (record_id, op, attempts, next_attempt_at, last_error, created_at)
		VALUES (?, ?, 0, ?, '', ?)
		ON CONFLICT(record_id) DO UPDATE SET
			op = excluded.op, attempts = 0, next_attempt_at = excluded.next_attempt_at, last_error = ''`,
		recordID, string(op), formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("ошибка постановки операции в очередь: %w", err)
	}
	return nil
}

// rebase отмечает, что create уже дошел до сервера
func (q *Queue) rebase(ctx context.Context, tx *sql.Tx, recordID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE pending_operations SET op = ?, attempts = 0, last_error = ''
		WHERE record_id = ? AND op = ?`, string(OpUpdate), recordID, string(OpCreate))
	if err != nil {
		return fmt.Errorf("ошибка обновления очереди: %w", err)
	}
	return nil
}

func (q *Queue) remove(ctx context.Context, tx *sql.Tx, recordID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_operations WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("ошибка удаления операции: %w", err)
	}
	return nil
}

// Due возвращает операции, готовые к отправке, старые первыми. Записи в конфликте пропускаются.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int) ([]PendingOp, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT p.record_id, p.op, p.attempts, p.next_attempt_at, p.last_error, p.created_at
		FROM pending_operations p
		JOIN records r ON r.id = p.record_id
		WHERE p.next_attempt_at <= ? AND p.attempts < ? AND r.sync_status <> ?
		ORDER BY p.created_at, p.record_id
		LIMIT ?`, formatTime(now), q.cfg.MaxAttempts, string(StatusConflict), limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	return scanOps(rows)
}

// MarkFailed увеличивает счетчик попыток и откладывает следующую
func (q *Queue) MarkFailed(ctx context.Context, recordID string, cause error, now time.Time) error {
	var attempts int
	err := q.db.QueryRowContext(ctx, `SELECT attempts FROM pending_operations WHERE record_id = ?`, recordID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка чтения очереди: %w", err)
	}

	attempts++
	next := now.Add(Backoff(q.cfg.RetryBase, attempts))
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE pending_operations SET attempts = ?, next_attempt_at = ?, last_error = ?
		WHERE record_id = ?`, attempts, formatTime(next), msg, recordID)
	if err != nil {
		return fmt.Errorf("ошибка обновления очереди: %w", err)
	}
	return nil
}

func (q *Queue) Remove(ctx context.Context, recordID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("ошибка удаления операции: %w", err)
	}
	return nil
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчета очереди: %w", err)
	}
	return n, nil
}

// Failed - операции, исчерпавшие попытки
func (q *Queue) Failed(ctx context.Context) ([]PendingOp, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT record_id, op, attempts, next_attempt_at, last_error, created_at
		FROM pending_operations
		WHERE attempts >= ?
		ORDER BY created_at`, q.cfg.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	return scanOps(rows)
}

// Retry возвращает в работу операции, исчерпавшие попытки
func (q *Queue) Retry(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE pending_operations SET attempts = 0, next_attempt_at = ?
		WHERE attempts >= ?`, formatTime(now), q.cfg.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления очереди: %w", err)
	}
	return res.RowsAffected()
}

func scanOps(rows *sql.Rows) ([]PendingOp, error) {
	defer rows.Close()

	var ops []PendingOp
	for rows.Next() {
		var (
			op                   PendingOp
			kind                 string
			nextAttempt, created string
		)
		if err := rows.Scan(&op.RecordID, &kind, &op.Attempts, &nextAttempt, &op.LastError, &created); err != nil {
			return nil, fmt.Errorf("ошибка сканирования операции: %w", err)
		}
		op.Op = OpType(kind)
		op.NextAttemptAt = parseTime(nextAttempt)
		op.CreatedAt = parseTime(created)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
