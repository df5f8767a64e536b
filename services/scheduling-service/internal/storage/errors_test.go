package storage

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", pgx.ErrNoRows), ErrNotFound)

	err := classify("save schedule", errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "save schedule")
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23P01"}))
	assert.False(t, IsConflict(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, IsConflict(errors.New("boom")))
}
