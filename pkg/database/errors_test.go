package database

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/curamed/curamed-backend/pkg/errors"
)

func TestMapPQError_NonPQError(t *testing.T) {
	assert.Nil(t, MapPQError(errors.New("plain error")))
	assert.Nil(t, MapPQError(nil))
}

func TestMapPQError_WrappedPQError(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Constraint: "items_code_key"}
	wrapped := fmt.Errorf("insert failed: %w", pqErr)

	appErr := MapPQError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Contains(t, appErr.Message, "code already exists")
}

func TestMapPQError_QuantityCheckConstraint(t *testing.T) {
	appErr := MapPQError(&pq.Error{Code: "23514", Constraint: "batches_quantity_non_negative"})
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)
	assert.Contains(t, appErr.Message, "below zero")
}

func TestMapPQError_DuplicateBatchKey(t *testing.T) {
	appErr := MapPQError(&pq.Error{Code: "23505", Constraint: "batches_item_store_number"})
	require.NotNil(t, appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Contains(t, appErr.Message, "batch number already exists")
}

func TestMapPQError_ForeignKey(t *testing.T) {
	appErr := MapPQError(&pq.Error{Code: "23503"})
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestMapPQError_NotNull(t *testing.T) {
	appErr := MapPQError(&pq.Error{Code: "23502", Column: "performed_by"})
	require.NotNil(t, appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "must not be empty", appErr.Details["performed_by"])
}

func TestMapPQError_LockContention(t *testing.T) {
	for _, code := range []pq.ErrorCode{"55P03", "40001", "40P01"} {
		appErr := MapPQError(&pq.Error{Code: code})
		require.NotNil(t, appErr, "code %s", code)
		assert.Equal(t, "CONTENTION_TIMEOUT", appErr.Code)
		assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode)
		assert.True(t, errors.Is(appErr, apperrors.ErrContention))
	}
}

func TestMapPQError_StatusCheckConstraint(t *testing.T) {
	appErr := MapPQError(&pq.Error{Code: "23514", Constraint: "requisitions_status_valid"})
	require.NotNil(t, appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "must be one of: pending, issued", appErr.Details["status"])
}

func TestMapPQError_UnknownCode(t *testing.T) {
	assert.Nil(t, MapPQError(&pq.Error{Code: "42P01"}))
}
