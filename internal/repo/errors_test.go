package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/shaiso/Relay/internal/domain"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestErrorsMapToDomain(t *testing.T) {
	assert.ErrorIs(t, ErrNotFound, domain.ErrNotFound)
	assert.ErrorIs(t, ErrAlreadyExists, domain.ErrConflict)
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	if s := nullString("email"); assert.NotNil(t, s) {
		assert.Equal(t, "email", *s)
	}
}
