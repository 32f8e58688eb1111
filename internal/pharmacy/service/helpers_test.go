package service_test

import (
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/curamed/curamed-backend/pkg/logger"
	"github.com/curamed/curamed-backend/pkg/testutil"
)

var testLog = logger.New("test", "test")

var batchColumns = []string{
	"id", "item_id", "store_id", "batch_number", "quantity", "expiry_date",
	"purchase_price_cents", "sale_price_cents", "created_at", "updated_at",
}

func storeRows(id string, isMain, isActive bool) *sqlmock.Rows {
	return testutil.MockRows("id", "name", "code", "is_main", "is_active", "created_at").
		AddRow(id, "Main Pharmacy", "MAIN", isMain, isActive, time.Now())
}

func itemRows(id, name string) *sqlmock.Rows {
	return testutil.MockRows("id", "name", "code", "unit", "category", "is_active", "created_at").
		AddRow(id, name, "MED-0001", "tablet", "Antibiotics", true, time.Now())
}

func batchRow(rows *sqlmock.Rows, id, itemID, storeID, number string, qty int, expiry *time.Time, saleCents int) *sqlmock.Rows {
	return rows.AddRow(id, itemID, storeID, number, qty, expiry, 250, saleCents, time.Now(), time.Now())
}

func createdAtRow() *sqlmock.Rows {
	return testutil.MockRows("created_at").AddRow(time.Now())
}
