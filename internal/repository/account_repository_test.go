package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/blog-service/internal/domain"
)

func TestMapWriteError(t *testing.T) {
	emailIndex := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_lower_idx"}
	assert.ErrorIs(t, mapWriteError(fmt.Errorf("insert: %w", emailIndex)), domain.ErrAccountExists)

	other := &pgconn.PgError{Code: "23514", ConstraintName: "accounts_role_check"}
	assert.Same(t, other, mapWriteError(other))

	plain := errors.New("conn closed")
	assert.Equal(t, plain, mapWriteError(plain))
}
