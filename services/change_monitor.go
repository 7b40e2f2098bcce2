package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/realtime"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

const changeBatchSize = 100

// StockUpdate is pushed live to the users holding a stock row that changed.
type StockUpdate struct {
	Table        string `json:"table"`
	StockID      uint   `json:"stock_id"`
	MedicineID   uint   `json:"medicine_id"`
	MedicineName string `json:"medicine_name,omitempty"`
	Quantity     int    `json:"quantity"`
	Action       string `json:"action"`
}

// ChangeMonitor polls the trigger fed db_changes table and turns stock
// movements into realtime events. Nothing is persisted as a notification.
type ChangeMonitor struct {
	db       *gorm.DB
	notifier Notifier
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewChangeMonitor(db *gorm.DB, notifier Notifier, interval time.Duration) *ChangeMonitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ChangeMonitor{
		db:       db,
		notifier: notifier,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *ChangeMonitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := m.ProcessPending(ctx); err != nil {
					utils.ErrorLogger.Errorf("processing stock changes: %v", err)
				}
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop waits for the polling goroutine to exit. Only call it after Start.
func (m *ChangeMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

type changeKey struct {
	table string
	id    uint
}

// ProcessPending consumes one batch of changes and returns how many rows it
// marked processed. Several changes to the same row produce one event.
func (m *ChangeMonitor) ProcessPending(ctx context.Context) (int, error) {
	var changes []models.DBChange
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("processed = ?", false).
			Order("id ASC").
			Limit(changeBatchSize).
			Find(&changes).Error; err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		ids := make([]uint, len(changes))
		for i, c := range changes {
			ids[i] = c.ID
		}
		return tx.Model(&models.DBChange{}).Where("id IN ?", ids).Update("processed", true).Error
	})
	if err != nil {
		return 0, fmt.Errorf("consume db changes: %w", err)
	}
	if len(changes) == 0 || m.notifier == nil {
		return len(changes), nil
	}

	latest := make(map[changeKey]models.DBChange, len(changes))
	var order []changeKey
	for _, c := range changes {
		key := changeKey{c.Table, c.RecordID}
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = c
	}

	for _, key := range order {
		c := latest[key]
		switch c.Table {
		case "stocks":
			m.pushPharmacyStock(ctx, c)
		case "wholesaler_stocks":
			m.pushWholesalerStock(ctx, c)
		}
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"changes": len(changes),
		"events":  len(order),
	}).Debug("processed stock changes")
	return len(changes), nil
}

func (m *ChangeMonitor) pushPharmacyStock(ctx context.Context, c models.DBChange) {
	var stock models.Stock
	if err := m.db.WithContext(ctx).Preload("Medicine").First(&stock, c.RecordID).Error; err != nil {
		utils.ErrorLogger.WithField("stock_id", c.RecordID).Warnf("stock change for missing row: %v", err)
		return
	}

	var recipients []uint
	err := m.db.WithContext(ctx).Model(&models.User{}).
		Where("pharmacy_id = ?", stock.PharmacyID).
		Or("id = (?)", m.db.Model(&models.Pharmacy{}).Select("owner_id").Where("id = ?", stock.PharmacyID)).
		Pluck("id", &recipients).Error
	if err != nil {
		utils.ErrorLogger.WithField("stock_id", stock.ID).Errorf("load stock recipients: %v", err)
		return
	}

	update := StockUpdate{
		Table:      c.Table,
		StockID:    stock.ID,
		MedicineID: stock.MedicineID,
		Quantity:   stock.StockQuantity,
		Action:     c.ActionType,
	}
	if stock.Medicine != nil {
		update.MedicineName = stock.Medicine.Name
	}
	for _, id := range recipients {
		m.notifier.SendToUser(id, realtime.EventStockUpdated, update)
	}
}

func (m *ChangeMonitor) pushWholesalerStock(ctx context.Context, c models.DBChange) {
	var stock models.WholesalerStock
	if err := m.db.WithContext(ctx).Preload("Medicine").First(&stock, c.RecordID).Error; err != nil {
		utils.ErrorLogger.WithField("wholesaler_stock_id", c.RecordID).Warnf("stock change for missing row: %v", err)
		return
	}
	update := StockUpdate{
		Table:      c.Table,
		StockID:    stock.ID,
		MedicineID: stock.MedicineID,
		Quantity:   stock.Quantity,
		Action:     c.ActionType,
	}
	if stock.Medicine != nil {
		update.MedicineName = stock.Medicine.Name
	}
	m.notifier.SendToUser(stock.WholesalerID, realtime.EventStockUpdated, update)
}
