package repo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Relay/internal/domain"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = fmt.Errorf("record %w", domain.ErrNotFound)

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = fmt.Errorf("record already exists: %w", domain.ErrConflict)
)

// uniqueViolation — SQLSTATE нарушения уникальности.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
