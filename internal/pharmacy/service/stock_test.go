package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/internal/pharmacy/service"
	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/errors"
	"github.com/curamed/curamed-backend/pkg/testutil"
)

func newStockService(mockDB *testutil.MockDB) *service.StockService {
	db := database.NewFromConn(mockDB.DB, testLog)
	return service.NewStockService(
		db,
		repository.NewStoreRepository(db),
		repository.NewItemRepository(db),
		repository.NewBatchRepository(db),
		repository.NewTransactionRepository(db),
		nil,
		testLog,
	)
}

func TestReceiveStock_TopsUpExistingBatch(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	storeID := "11111111-1111-1111-1111-111111111111"
	itemID := "22222222-2222-2222-2222-222222222222"
	batchID := "33333333-3333-3333-3333-333333333333"
	actorID := "44444444-4444-4444-4444-444444444444"
	expiry := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectQuery("SELECT * FROM stores WHERE id = $1").
		WithArgs(storeID).
		WillReturnRows(storeRows(storeID, true, true))
	mockDB.ExpectQuery("SELECT * FROM items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, "Amoxicillin 500mg"))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM batches WHERE item_id = $1 AND store_id = $2 AND batch_number = $3").
		WithArgs(itemID, storeID, "LOT-001").
		WillReturnRows(batchRow(testutil.MockRows(batchColumns...), batchID, itemID, storeID, "LOT-001", 40, &expiry, 400))
	mockDB.ExpectExec("UPDATE batches SET quantity = quantity + $2").
		WithArgs(batchID, 60).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO stock_transactions").
		WithArgs(testutil.AnyUUID{}, batchID, repository.DirectionIn, 60, repository.RefReceipt, nil, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectCommit()

	svc := newStockService(mockDB)

	batch, err := svc.ReceiveStock(context.Background(), service.ReceiveStockInput{
		StoreID:     storeID,
		ItemID:      itemID,
		BatchNumber: "LOT-001",
		Quantity:    60,
		ActorID:     actorID,
	})
	require.NoError(t, err)

	assert.Equal(t, batchID, batch.ID)
	assert.Equal(t, 100, batch.Quantity)

	mockDB.ExpectationsWereMet(t)
}

func TestReceiveStock_CreatesBatchOnFirstReceipt(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	storeID := "11111111-1111-1111-1111-111111111111"
	itemID := "22222222-2222-2222-2222-222222222222"
	actorID := "44444444-4444-4444-4444-444444444444"
	expiry := time.Now().AddDate(0, 6, 0)

	mockDB.ExpectQuery("SELECT * FROM stores WHERE id = $1").
		WithArgs(storeID).
		WillReturnRows(storeRows(storeID, true, true))
	mockDB.ExpectQuery("SELECT * FROM items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, "Amoxicillin 500mg"))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM batches WHERE item_id = $1 AND store_id = $2 AND batch_number = $3").
		WithArgs(itemID, storeID, "LOT-NEW").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("INSERT INTO batches").
		WithArgs(testutil.AnyUUID{}, itemID, storeID, "LOT-NEW", 0, testutil.AnyTime{}, 250, 400).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(time.Now(), time.Now()))
	mockDB.ExpectExec("UPDATE batches SET quantity = quantity + $2").
		WithArgs(testutil.AnyUUID{}, 25).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO stock_transactions").
		WithArgs(testutil.AnyUUID{}, testutil.AnyUUID{}, repository.DirectionIn, 25, repository.RefReceipt, nil, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectCommit()

	svc := newStockService(mockDB)

	batch, err := svc.ReceiveStock(context.Background(), service.ReceiveStockInput{
		StoreID:            storeID,
		ItemID:             itemID,
		BatchNumber:        "LOT-NEW",
		Quantity:           25,
		ExpiryDate:         &expiry,
		PurchasePriceCents: 250,
		SalePriceCents:     400,
		ActorID:            actorID,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, 25, batch.Quantity)

	mockDB.ExpectationsWereMet(t)
}

func TestReceiveStock_RejectsNonPositiveQuantity(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	svc := newStockService(mockDB)

	_, err := svc.ReceiveStock(context.Background(), service.ReceiveStockInput{
		StoreID:     "11111111-1111-1111-1111-111111111111",
		ItemID:      "22222222-2222-2222-2222-222222222222",
		BatchNumber: "LOT-001",
		Quantity:    0,
		ActorID:     "44444444-4444-4444-4444-444444444444",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	mockDB.ExpectationsWereMet(t)
}

func TestReceiveStock_RejectsInactiveStore(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	storeID := "11111111-1111-1111-1111-111111111111"

	mockDB.ExpectQuery("SELECT * FROM stores WHERE id = $1").
		WithArgs(storeID).
		WillReturnRows(storeRows(storeID, false, false))

	svc := newStockService(mockDB)

	_, err := svc.ReceiveStock(context.Background(), service.ReceiveStockInput{
		StoreID:     storeID,
		ItemID:      "22222222-2222-2222-2222-222222222222",
		BatchNumber: "LOT-001",
		Quantity:    10,
		ActorID:     "44444444-4444-4444-4444-444444444444",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	mockDB.ExpectationsWereMet(t)
}

func TestListExpiring_RejectsNonPositiveWindow(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	svc := newStockService(mockDB)

	_, err := svc.ListExpiring(context.Background(), 0, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}
