package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/internal/pharmacy/service"
	"github.com/curamed/curamed-backend/pkg/errors"
)

func day(offset int) *time.Time {
	t := time.Now().AddDate(0, 0, offset).Truncate(24 * time.Hour)
	return &t
}

func batch(id string, qty int, expiry *time.Time) *repository.Batch {
	return &repository.Batch{
		ID:             id,
		ItemID:         "item-1",
		StoreID:        "store-1",
		BatchNumber:    "LOT-" + id,
		Quantity:       qty,
		ExpiryDate:     expiry,
		SalePriceCents: 400,
	}
}

func TestAllocateFEFO_SingleBatchCoversRequest(t *testing.T) {
	batches := []*repository.Batch{
		batch("a", 50, day(30)),
		batch("b", 50, day(60)),
	}

	plan, err := service.AllocateFEFO("item-1", batches, 20)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, "a", plan[0].Batch.ID)
	assert.Equal(t, 20, plan[0].Quantity)
}

func TestAllocateFEFO_SpansBatchesInOrder(t *testing.T) {
	// Input order is the repository's allocation order: earliest expiry first.
	batches := []*repository.Batch{
		batch("a", 10, day(10)),
		batch("b", 30, day(20)),
		batch("c", 100, day(90)),
	}

	plan, err := service.AllocateFEFO("item-1", batches, 45)
	require.NoError(t, err)

	require.Len(t, plan, 3)
	assert.Equal(t, "a", plan[0].Batch.ID)
	assert.Equal(t, 10, plan[0].Quantity)
	assert.Equal(t, "b", plan[1].Batch.ID)
	assert.Equal(t, 30, plan[1].Quantity)
	assert.Equal(t, "c", plan[2].Batch.ID)
	assert.Equal(t, 5, plan[2].Quantity)
}

func TestAllocateFEFO_ExactFitDrainsBatch(t *testing.T) {
	batches := []*repository.Batch{
		batch("a", 25, day(10)),
	}

	plan, err := service.AllocateFEFO("item-1", batches, 25)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, 25, plan[0].Quantity)
}

func TestAllocateFEFO_SkipsEmptyBatches(t *testing.T) {
	batches := []*repository.Batch{
		batch("a", 0, day(5)),
		batch("b", 40, day(10)),
	}

	plan, err := service.AllocateFEFO("item-1", batches, 10)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, "b", plan[0].Batch.ID)
}

func TestAllocateFEFO_InsufficientStockReportsAvailable(t *testing.T) {
	batches := []*repository.Batch{
		batch("a", 10, day(10)),
		batch("b", 5, day(20)),
	}

	plan, err := service.AllocateFEFO("item-1", batches, 40)
	assert.Nil(t, plan)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "item-1", appErr.Details["item_id"])
	assert.Equal(t, "40", appErr.Details["requested"])
	assert.Equal(t, "15", appErr.Details["available"])
}

func TestAllocateFEFO_NoBatches(t *testing.T) {
	plan, err := service.AllocateFEFO("item-1", nil, 1)
	assert.Nil(t, plan)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "0", appErr.Details["available"])
}

func TestAllocatePartial_ShortfallIsNotAnError(t *testing.T) {
	batches := []*repository.Batch{
		batch("a", 10, day(10)),
		batch("b", 5, day(20)),
	}

	plan, issued := service.AllocatePartial(batches, 40)
	assert.Equal(t, 15, issued)

	require.Len(t, plan, 2)
	assert.Equal(t, 10, plan[0].Quantity)
	assert.Equal(t, 5, plan[1].Quantity)
}

func TestAllocatePartial_NothingAvailable(t *testing.T) {
	plan, issued := service.AllocatePartial(nil, 10)
	assert.Empty(t, plan)
	assert.Equal(t, 0, issued)
}

func TestAllocatePartial_FullCoverage(t *testing.T) {
	batches := []*repository.Batch{
		batch("a", 100, nil),
	}

	plan, issued := service.AllocatePartial(batches, 30)
	assert.Equal(t, 30, issued)
	require.Len(t, plan, 1)
	assert.Equal(t, 30, plan[0].Quantity)
}
