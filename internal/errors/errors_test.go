package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("underlying")
	err := Internal("something broke", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "something broke")
	assert.Equal(t, ErrCodeInternal, CodeOf(err))
}

func TestCodeHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(NotFound("missing")))
	assert.True(t, IsConflict(Conflict("duplicate")))
	assert.True(t, IsValidation(ValidationField("address", "bad format")))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestMapDBErrorNoRows(t *testing.T) {
	t.Parallel()

	mapped := MapDBError(fmt.Errorf("get job: %w", pgx.ErrNoRows))
	require.Error(t, mapped)
	assert.True(t, IsNotFound(mapped))
}

func TestMapDBErrorContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrCodeTimeout, CodeOf(MapDBError(context.DeadlineExceeded)))
	assert.Equal(t, ErrCodeCanceled, CodeOf(MapDBError(context.Canceled)))
}

func TestMapDBErrorUniqueViolation(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{
		Code:   "23505",
		Detail: `Key (id)=(wh_123) already exists.`,
	}
	mapped := MapDBError(pgErr)

	var appErr *AppError
	require.ErrorAs(t, mapped, &appErr)
	assert.Equal(t, ErrCodeConflict, appErr.Code)
	assert.Equal(t, "id", appErr.Field)
}

func TestMapDBErrorPassthrough(t *testing.T) {
	t.Parallel()

	plain := fmt.Errorf("not a db error")
	assert.Equal(t, plain, MapDBError(plain))
	assert.NoError(t, MapDBError(nil))
}
