package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/models"
)

func daysFrom(now time.Time, days float64) *time.Time {
	t := now.Add(time.Duration(days * float64(24*time.Hour)))
	return &t
}

func TestDaysLeftRoundsUp(t *testing.T) {
	now := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, DaysLeft(now.Add(4*24*time.Hour+time.Hour), now))
	assert.Equal(t, 5, DaysLeft(now.Add(5*24*time.Hour), now))
	assert.Equal(t, 0, DaysLeft(now, now))
	assert.Equal(t, -1, DaysLeft(now.Add(-25*time.Hour), now))
}

func TestExpirationSweepCreatesCriticalAlertOnce(t *testing.T) {
	db := setupTestDB(t)
	f := seedMarket(t, db)
	notifier := newFakeNotifier(f.Owner.ID)
	notifications := NewNotificationService(db, notifier)
	sweep := NewExpirationSweep(db, notifications, NewAuditService(db), 2, 0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.Model(&f.StockA).Update("expiration_date", daysFrom(now, 5)).Error)
	require.NoError(t, db.Model(&f.StockB).Update("expiration_date", daysFrom(now, 90)).Error)

	report, err := sweep.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Notified)

	var alerts []models.ExpirationAlert
	require.NoError(t, db.Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.StockKindPharmacy, alerts[0].StockKind)
	assert.Equal(t, 5, alerts[0].DaysLeft)
	assert.True(t, alerts[0].Notified)
	require.NotNil(t, alerts[0].UserID)
	assert.Equal(t, f.Owner.ID, *alerts[0].UserID)

	var notes []models.Notification
	require.NoError(t, db.Where("user_id = ?", f.Owner.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Critical Expiration Alert", notes[0].Title)
	assert.Equal(t, "Stock item is expiring in 5 days!", notes[0].Message)
	assert.Len(t, notifier.messages(), 1)

	// running again the same day changes nothing
	report, err = sweep.Run(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Zero(t, report.Notified)

	var alertCount, noteCount int64
	db.Model(&models.ExpirationAlert{}).Count(&alertCount)
	db.Model(&models.Notification{}).Count(&noteCount)
	assert.Equal(t, int64(1), alertCount)
	assert.Equal(t, int64(1), noteCount)
}

func TestExpirationSweepSeverityEscalation(t *testing.T) {
	db := setupTestDB(t)
	f := seedMarket(t, db)
	sweep := NewExpirationSweep(db, NewNotificationService(db, nil), nil, 2, 0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.Model(&f.StockA).Update("expiration_date", daysFrom(now, 20)).Error)

	report, err := sweep.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.Notified)

	// two weeks later the same row becomes critical: a separate alert
	report, err = sweep.Run(ctx, now.Add(15*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Notified)

	var severities []string
	db.Model(&models.ExpirationAlert{}).Order("id").Pluck("severity", &severities)
	assert.Equal(t, []string{"warning", "critical"}, severities)
}

func TestExpirationSweepWholesalerStock(t *testing.T) {
	db := setupTestDB(t)
	wholesaler := createUser(t, db, "Wholesaler", models.RoleWholesaler)
	med := models.Medicine{Name: "Augmentin"}
	require.NoError(t, db.Create(&med).Error)
	now := time.Now()

	owned := models.WholesalerStock{WholesalerID: wholesaler.ID, MedicineID: med.ID, Quantity: 40, ExpirationDate: daysFrom(now, 3)}
	orphan := models.WholesalerStock{WholesalerID: 4242, MedicineID: med.ID, Quantity: 40, ExpirationDate: daysFrom(now, 2)}
	noDate := models.WholesalerStock{WholesalerID: wholesaler.ID, MedicineID: med.ID, Quantity: 40}
	require.NoError(t, db.Create(&owned).Error)
	require.NoError(t, db.Create(&orphan).Error)
	require.NoError(t, db.Create(&noDate).Error)

	// a pharmacy stock row with the same id must not be confused with it
	pharmacyStock := models.Stock{PharmacyID: 77, MedicineID: med.ID, StockQuantity: 1, ExpirationDate: daysFrom(now, 3)}
	require.NoError(t, db.Create(&pharmacyStock).Error)

	sweep := NewExpirationSweep(db, NewNotificationService(db, nil), nil, 2, 0)
	report, err := sweep.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Notified)

	var orphanAlert models.ExpirationAlert
	require.NoError(t, db.Where("stock_kind = ? AND stock_id = ?", models.StockKindWholesaler, orphan.ID).First(&orphanAlert).Error)
	assert.Nil(t, orphanAlert.UserID)
	assert.False(t, orphanAlert.Notified)

	var notes int64
	db.Model(&models.Notification{}).Where("user_id = ?", wholesaler.ID).Count(&notes)
	assert.Equal(t, int64(1), notes)
}

func TestExpirationSweepNextRun(t *testing.T) {
	sweep := NewExpirationSweep(nil, nil, nil, 2, 0)
	loc := time.UTC

	before := time.Date(2025, 5, 10, 1, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 5, 10, 2, 0, 0, 0, loc), sweep.NextRun(before))

	exactly := time.Date(2025, 5, 10, 2, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 5, 11, 2, 0, 0, 0, loc), sweep.NextRun(exactly))

	after := time.Date(2025, 12, 31, 23, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 1, 1, 2, 0, 0, 0, loc), sweep.NextRun(after))
}

func TestExpirationSweepStartStop(t *testing.T) {
	db := setupTestDB(t)
	sweep := NewExpirationSweep(db, nil, nil, 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweep.Start(ctx)

	stopped := make(chan struct{})
	go func() {
		sweep.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
