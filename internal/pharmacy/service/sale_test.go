package service_test

import (
	"context"
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

func newSaleService(mockDB *testutil.MockDB) *service.SaleService {
	db := database.NewFromConn(mockDB.DB, testLog)
	return service.NewSaleService(
		db,
		repository.NewStoreRepository(db),
		repository.NewItemRepository(db),
		repository.NewBatchRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewSaleRepository(db),
		repository.NewChargeRepository(db),
		nil,
		testLog,
	)
}

func TestSell_SpansBatchesAndSnapshotsPrices(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	storeID := "11111111-1111-1111-1111-111111111111"
	itemID := "22222222-2222-2222-2222-222222222222"
	actorID := "44444444-4444-4444-4444-444444444444"
	earlyBatch := "55555555-5555-5555-5555-555555555555"
	lateBatch := "66666666-6666-6666-6666-666666666666"
	early := time.Now().AddDate(0, 1, 0)
	late := time.Now().AddDate(1, 0, 0)

	mockDB.ExpectQuery("SELECT * FROM stores WHERE id = $1").
		WithArgs(storeID).
		WillReturnRows(storeRows(storeID, true, true))
	mockDB.ExpectQuery("SELECT * FROM items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, "Amoxicillin 500mg"))

	mockDB.ExpectBegin()

	rows := testutil.MockRows(batchColumns...)
	rows = batchRow(rows, earlyBatch, itemID, storeID, "LOT-A", 10, &early, 400)
	rows = batchRow(rows, lateBatch, itemID, storeID, "LOT-B", 50, &late, 500)
	mockDB.ExpectQuery("SELECT * FROM batches WHERE item_id = $1 AND store_id = $2 AND quantity > 0").
		WithArgs(itemID, storeID).
		WillReturnRows(rows)

	// 10 from the early batch at 400, 5 from the late batch at 500
	mockDB.ExpectQuery("INSERT INTO sales").
		WithArgs(testutil.AnyUUID{}, storeID, nil, 10*400+5*500, actorID).
		WillReturnRows(createdAtRow())

	mockDB.ExpectExec("UPDATE batches SET quantity = quantity - $2").
		WithArgs(earlyBatch, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO stock_transactions").
		WithArgs(testutil.AnyUUID{}, earlyBatch, repository.DirectionOut, 10, repository.RefSale, testutil.AnyUUID{}, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectExec("INSERT INTO sale_items").
		WithArgs(testutil.AnyUUID{}, testutil.AnyUUID{}, earlyBatch, itemID, 10, 400, 4000).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mockDB.ExpectExec("UPDATE batches SET quantity = quantity - $2").
		WithArgs(lateBatch, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO stock_transactions").
		WithArgs(testutil.AnyUUID{}, lateBatch, repository.DirectionOut, 5, repository.RefSale, testutil.AnyUUID{}, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectExec("INSERT INTO sale_items").
		WithArgs(testutil.AnyUUID{}, testutil.AnyUUID{}, lateBatch, itemID, 5, 500, 2500).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mockDB.ExpectCommit()

	svc := newSaleService(mockDB)

	sale, err := svc.Sell(context.Background(), service.SellInput{
		StoreID: storeID,
		Lines:   []service.SaleLine{{ItemID: itemID, Quantity: 15}},
		ActorID: actorID,
	})
	require.NoError(t, err)

	assert.Equal(t, 6500, sale.TotalCents)
	require.Len(t, sale.Items, 2)
	assert.Equal(t, earlyBatch, sale.Items[0].BatchID)
	assert.Equal(t, 10, sale.Items[0].Quantity)
	assert.Equal(t, lateBatch, sale.Items[1].BatchID)
	assert.Equal(t, 5, sale.Items[1].Quantity)

	mockDB.ExpectationsWereMet(t)
}

func TestSell_InsufficientStockRollsBack(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	storeID := "11111111-1111-1111-1111-111111111111"
	itemID := "22222222-2222-2222-2222-222222222222"
	batchID := "55555555-5555-5555-5555-555555555555"
	expiry := time.Now().AddDate(0, 1, 0)

	mockDB.ExpectQuery("SELECT * FROM stores WHERE id = $1").
		WithArgs(storeID).
		WillReturnRows(storeRows(storeID, true, true))
	mockDB.ExpectQuery("SELECT * FROM items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, "Amoxicillin 500mg"))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM batches WHERE item_id = $1 AND store_id = $2 AND quantity > 0").
		WithArgs(itemID, storeID).
		WillReturnRows(batchRow(testutil.MockRows(batchColumns...), batchID, itemID, storeID, "LOT-A", 8, &expiry, 400))
	mockDB.ExpectRollback()

	svc := newSaleService(mockDB)

	_, err := svc.Sell(context.Background(), service.SellInput{
		StoreID: storeID,
		Lines:   []service.SaleLine{{ItemID: itemID, Quantity: 20}},
		ActorID: "44444444-4444-4444-4444-444444444444",
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "8", appErr.Details["available"])

	mockDB.ExpectationsWereMet(t)
}

func TestSell_MergesDuplicateLines(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	storeID := "11111111-1111-1111-1111-111111111111"
	itemID := "22222222-2222-2222-2222-222222222222"
	batchID := "55555555-5555-5555-5555-555555555555"
	actorID := "44444444-4444-4444-4444-444444444444"
	expiry := time.Now().AddDate(0, 1, 0)

	mockDB.ExpectQuery("SELECT * FROM stores WHERE id = $1").
		WithArgs(storeID).
		WillReturnRows(storeRows(storeID, true, true))
	// One catalog lookup even though the item appears twice in the request
	mockDB.ExpectQuery("SELECT * FROM items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, "Amoxicillin 500mg"))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM batches WHERE item_id = $1 AND store_id = $2 AND quantity > 0").
		WithArgs(itemID, storeID).
		WillReturnRows(batchRow(testutil.MockRows(batchColumns...), batchID, itemID, storeID, "LOT-A", 100, &expiry, 400))
	mockDB.ExpectQuery("INSERT INTO sales").
		WithArgs(testutil.AnyUUID{}, storeID, nil, 12*400, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectExec("UPDATE batches SET quantity = quantity - $2").
		WithArgs(batchID, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO stock_transactions").
		WithArgs(testutil.AnyUUID{}, batchID, repository.DirectionOut, 12, repository.RefSale, testutil.AnyUUID{}, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectExec("INSERT INTO sale_items").
		WithArgs(testutil.AnyUUID{}, testutil.AnyUUID{}, batchID, itemID, 12, 400, 4800).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	svc := newSaleService(mockDB)

	sale, err := svc.Sell(context.Background(), service.SellInput{
		StoreID: storeID,
		Lines: []service.SaleLine{
			{ItemID: itemID, Quantity: 5},
			{ItemID: itemID, Quantity: 7},
		},
		ActorID: actorID,
	})
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, 12, sale.Items[0].Quantity)

	mockDB.ExpectationsWereMet(t)
}

func TestIssueToAdmission_RaisesChargePerLine(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	storeID := "11111111-1111-1111-1111-111111111111"
	itemID := "22222222-2222-2222-2222-222222222222"
	batchID := "55555555-5555-5555-5555-555555555555"
	actorID := "44444444-4444-4444-4444-444444444444"
	admissionID := "77777777-7777-7777-7777-777777777777"
	expiry := time.Now().AddDate(0, 1, 0)

	mockDB.ExpectQuery("SELECT * FROM stores WHERE id = $1").
		WithArgs(storeID).
		WillReturnRows(storeRows(storeID, false, true))
	mockDB.ExpectQuery("SELECT * FROM items WHERE id = $1").
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, "Ibuprofen 400mg"))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM batches WHERE item_id = $1 AND store_id = $2 AND quantity > 0").
		WithArgs(itemID, storeID).
		WillReturnRows(batchRow(testutil.MockRows(batchColumns...), batchID, itemID, storeID, "LOT-A", 100, &expiry, 300))
	mockDB.ExpectQuery("INSERT INTO sales").
		WithArgs(testutil.AnyUUID{}, storeID, admissionID, 4*300, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectExec("UPDATE batches SET quantity = quantity - $2").
		WithArgs(batchID, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO stock_transactions").
		WithArgs(testutil.AnyUUID{}, batchID, repository.DirectionOut, 4, repository.RefIPDIssue, testutil.AnyUUID{}, actorID).
		WillReturnRows(createdAtRow())
	mockDB.ExpectExec("INSERT INTO sale_items").
		WithArgs(testutil.AnyUUID{}, testutil.AnyUUID{}, batchID, itemID, 4, 300, 1200).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO charges").
		WithArgs(testutil.AnyUUID{}, admissionID, testutil.AnyUUID{}, 1200, "Ibuprofen 400mg x4").
		WillReturnRows(createdAtRow())
	mockDB.ExpectCommit()

	svc := newSaleService(mockDB)

	sale, charges, err := svc.IssueToAdmission(context.Background(), service.IssueInput{
		AdmissionID: admissionID,
		StoreID:     storeID,
		Lines:       []service.SaleLine{{ItemID: itemID, Quantity: 4}},
		ActorID:     actorID,
	})
	require.NoError(t, err)

	require.Len(t, charges, 1)
	assert.Equal(t, admissionID, charges[0].AdmissionID)
	assert.Equal(t, 1200, charges[0].AmountCents)
	assert.Equal(t, "Ibuprofen 400mg x4", charges[0].Description)
	assert.Equal(t, sale.Items[0].ID, charges[0].SaleItemID)

	mockDB.ExpectationsWereMet(t)
}

func TestIssueToAdmission_RequiresAdmissionAndStore(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	svc := newSaleService(mockDB)

	_, _, err := svc.IssueToAdmission(context.Background(), service.IssueInput{
		StoreID: "11111111-1111-1111-1111-111111111111",
		Lines:   []service.SaleLine{{ItemID: "22222222-2222-2222-2222-222222222222", Quantity: 1}},
		ActorID: "44444444-4444-4444-4444-444444444444",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))

	_, _, err = svc.IssueToAdmission(context.Background(), service.IssueInput{
		AdmissionID: "77777777-7777-7777-7777-777777777777",
		Lines:       []service.SaleLine{{ItemID: "22222222-2222-2222-2222-222222222222", Quantity: 1}},
		ActorID:     "44444444-4444-4444-4444-444444444444",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestSell_RejectsEmptyLines(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	svc := newSaleService(mockDB)

	_, err := svc.Sell(context.Background(), service.SellInput{
		StoreID: "11111111-1111-1111-1111-111111111111",
		ActorID: "44444444-4444-4444-4444-444444444444",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}
