package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:triggers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func TestExecuteTriggersRecordsStockChanges(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, ExecuteTriggers(db))
	// reinstalling replaces the triggers instead of failing
	require.NoError(t, ExecuteTriggers(db))

	stock := models.Stock{PharmacyID: 1, MedicineID: 1, StockQuantity: 10}
	require.NoError(t, db.Create(&stock).Error)
	require.NoError(t, db.Model(&stock).Update("stock_quantity", 7).Error)

	ws := models.WholesalerStock{WholesalerID: 3, MedicineID: 1, Quantity: 50}
	require.NoError(t, db.Create(&ws).Error)

	var changes []models.DBChange
	require.NoError(t, db.Order("id").Find(&changes).Error)
	require.Len(t, changes, 3)

	assert.Equal(t, "stocks", changes[0].Table)
	assert.Equal(t, models.ChangeInsert, changes[0].ActionType)
	assert.Equal(t, stock.ID, changes[0].RecordID)
	assert.Equal(t, models.ChangeUpdate, changes[1].ActionType)
	assert.Equal(t, "wholesaler_stocks", changes[2].Table)
	assert.Equal(t, ws.ID, changes[2].RecordID)
	for _, c := range changes {
		assert.False(t, c.Processed)
		assert.False(t, c.ChangedAt.IsZero())
	}
}
