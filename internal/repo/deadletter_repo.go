package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Relay/internal/domain"
)

// DefaultListLimit — размер страницы List по умолчанию.
const DefaultListLimit = 50

// MaxListLimit — верхняя граница размера страницы.
const MaxListLimit = 500

// DeadLetterRepo — архив заданий из failed.queue.
type DeadLetterRepo struct {
	pool *pgxpool.Pool
}

// NewDeadLetterRepo создаёт новый DeadLetterRepo.
func NewDeadLetterRepo(pool *pgxpool.Pool) *DeadLetterRepo {
	return &DeadLetterRepo{pool: pool}
}

// Create сохраняет dead letter.
func (r *DeadLetterRepo) Create(ctx context.Context, dl *domain.DeadLetter) error {
	query := `
		INSERT INTO dead_letters (id, channel, request_id, payload, reason, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		dl.ID,
		dl.Channel,
		dl.RequestID,
		[]byte(dl.Payload),
		dl.Reason,
		dl.FailedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// GetByID возвращает dead letter по ID.
func (r *DeadLetterRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetter, error) {
	query := `
		SELECT id, channel, request_id, payload, reason, failed_at, replayed_at
		FROM dead_letters
		WHERE id = $1
	`
	dl, err := scanDeadLetter(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return dl, err
}

// DeadLetterFilter — параметры фильтрации List.
type DeadLetterFilter struct {
	Channel domain.Channel // пустой — все каналы
	Limit   int
}

// List возвращает последние dead letters, новые первыми.
func (r *DeadLetterRepo) List(ctx context.Context, filter DeadLetterFilter) ([]domain.DeadLetter, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	query := `
		SELECT id, channel, request_id, payload, reason, failed_at, replayed_at
		FROM dead_letters
		WHERE ($1::text IS NULL OR channel = $1)
		ORDER BY failed_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, nullString(string(filter.Channel)), limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []domain.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, *dl)
	}
	return letters, rows.Err()
}

// MarkReplayed отмечает время переотправки.
func (r *DeadLetterRepo) MarkReplayed(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `UPDATE dead_letters SET replayed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark dead letter replayed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan удаляет записи с failed_at раньше cutoff.
// Возвращает количество удалённых строк.
func (r *DeadLetterRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM dead_letters WHERE failed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge dead letters: %w", err)
	}
	return result.RowsAffected(), nil
}

// scanDeadLetter сканирует одну строку. pgx.Rows тоже реализует pgx.Row.
func scanDeadLetter(row pgx.Row) (*domain.DeadLetter, error) {
	var (
		dl      domain.DeadLetter
		payload []byte
	)

	err := row.Scan(
		&dl.ID,
		&dl.Channel,
		&dl.RequestID,
		&payload,
		&dl.Reason,
		&dl.FailedAt,
		&dl.ReplayedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan dead letter: %w", err)
	}

	dl.Payload = payload
	return &dl, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
