package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	expirationHorizonDays = 60
	sweepBatchSize        = 200
)

type SweepReport struct {
	Scanned  int           `json:"scanned"`
	Skipped  int           `json:"skipped"`
	Created  int           `json:"created"`
	Notified int           `json:"notified"`
	Duration time.Duration `json:"duration"`
}

// ExpirationSweep raises one alert per stock row and severity for medicine
// expiring within sixty days.
type ExpirationSweep struct {
	db            *gorm.DB
	notifications *NotificationService
	audit         *AuditService

	hour   int
	minute int

	runMu    sync.Mutex
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewExpirationSweep(db *gorm.DB, notifications *NotificationService, audit *AuditService, hour, minute int) *ExpirationSweep {
	return &ExpirationSweep{
		db:            db,
		notifications: notifications,
		audit:         audit,
		hour:          hour,
		minute:        minute,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// DaysLeft rounds the remaining time up to whole days.
func DaysLeft(expiresAt, now time.Time) int {
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}

type stockCandidate struct {
	Kind      models.StockKind
	ID        uint
	OwnerKey  uint
	ExpiresAt *time.Time
}

// Run checks pharmacy stock then wholesaler stock. Concurrent calls wait for
// each other.
func (e *ExpirationSweep) Run(ctx context.Context, now time.Time) (SweepReport, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := time.Now()
	var report SweepReport
	pharmacyOwners := make(map[uint]*uint)

	var stocks []models.Stock
	err := e.db.WithContext(ctx).Where("expiration_date IS NOT NULL").
		FindInBatches(&stocks, sweepBatchSize, func(_ *gorm.DB, _ int) error {
			for _, st := range stocks {
				c := stockCandidate{Kind: models.StockKindPharmacy, ID: st.ID, OwnerKey: st.PharmacyID, ExpiresAt: st.ExpirationDate}
				if err := e.check(ctx, now, c, pharmacyOwners, &report); err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return report, fmt.Errorf("sweep pharmacy stock: %w", err)
	}

	wholesalers := make(map[uint]*uint)
	var wstocks []models.WholesalerStock
	err = e.db.WithContext(ctx).Where("expiration_date IS NOT NULL").
		FindInBatches(&wstocks, sweepBatchSize, func(_ *gorm.DB, _ int) error {
			for _, st := range wstocks {
				c := stockCandidate{Kind: models.StockKindWholesaler, ID: st.ID, OwnerKey: st.WholesalerID, ExpiresAt: st.ExpirationDate}
				if err := e.check(ctx, now, c, wholesalers, &report); err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return report, fmt.Errorf("sweep wholesaler stock: %w", err)
	}

	report.Duration = time.Since(start)
	utils.InfoLogger.WithFields(logrus.Fields{
		"scanned":  report.Scanned,
		"skipped":  report.Skipped,
		"created":  report.Created,
		"notified": report.Notified,
		"duration": report.Duration.String(),
	}).Info("expiration sweep finished")
	return report, nil
}

func (e *ExpirationSweep) check(ctx context.Context, now time.Time, c stockCandidate, owners map[uint]*uint, report *SweepReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	report.Scanned++
	if c.ExpiresAt == nil {
		report.Skipped++
		return nil
	}
	daysLeft := DaysLeft(*c.ExpiresAt, now)
	if daysLeft > expirationHorizonDays {
		report.Skipped++
		return nil
	}
	severity := models.SeverityForDaysLeft(daysLeft)

	ownerID, cached := owners[c.OwnerKey]
	if !cached {
		var err error
		ownerID, err = e.resolveOwner(ctx, c.Kind, c.OwnerKey)
		if err != nil {
			return err
		}
		owners[c.OwnerKey] = ownerID
	}

	alert := models.ExpirationAlert{
		StockKind: c.Kind,
		StockID:   c.ID,
		Severity:  severity,
		DaysLeft:  daysLeft,
		AlertDate: now,
		UserID:    ownerID,
	}
	res := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_kind"}, {Name: "stock_id"}, {Name: "severity"}},
		DoNothing: true,
	}).Create(&alert)
	if res.Error != nil {
		return fmt.Errorf("upsert alert for %s stock %d: %w", c.Kind, c.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	report.Created++

	if severity != models.SeverityCritical || ownerID == nil || e.notifications == nil {
		return nil
	}
	if n := e.notifications.NotifyCriticalExpiration(ctx, *ownerID, c.ID, daysLeft); n == nil {
		return nil
	}
	report.Notified++
	return e.db.WithContext(ctx).Model(&models.ExpirationAlert{}).
		Where("stock_kind = ? AND stock_id = ? AND severity = ?", c.Kind, c.ID, severity).
		Update("notified", true).Error
}

// resolveOwner returns the user responsible for the stock, or nil.
func (e *ExpirationSweep) resolveOwner(ctx context.Context, kind models.StockKind, key uint) (*uint, error) {
	var user models.User
	var q *gorm.DB
	switch kind {
	case models.StockKindPharmacy:
		q = e.db.WithContext(ctx).
			Joins("JOIN pharmacies ON pharmacies.owner_id = users.id").
			Where("pharmacies.id = ? AND users.role = ?", key, models.RolePharmacyOwner)
	default:
		q = e.db.WithContext(ctx).Where("id = ? AND role = ?", key, models.RoleWholesaler)
	}
	res := q.Limit(1).Find(&user)
	if res.Error != nil {
		return nil, fmt.Errorf("resolve %s stock owner %d: %w", kind, key, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	id := user.ID
	return &id, nil
}

// RunManually is the admin and CLI entry point; it also writes an audit row.
func (e *ExpirationSweep) RunManually(ctx context.Context, actor Actor) (SweepReport, error) {
	report, err := e.Run(ctx, time.Now())
	if err != nil {
		return report, utils.NewInternalError(err)
	}
	if e.audit != nil {
		e.audit.Record(ctx, AuditEntry{
			Actor:      actor,
			EntityType: AuditEntityStock,
			EntityID:   "expiration_sweep",
			Action:     AuditExpirationSweep,
			Description: "Expiration sweep: scanned " + strconv.Itoa(report.Scanned) +
				", created " + strconv.Itoa(report.Created) + ", notified " + strconv.Itoa(report.Notified),
		})
	}
	return report, nil
}

// NextRun returns the first configured wall clock time strictly after now.
func (e *ExpirationSweep) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), e.hour, e.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start runs the sweep once a day until ctx is done or Stop is called.
func (e *ExpirationSweep) Start(ctx context.Context) {
	go func() {
		defer close(e.done)
		for {
			next := e.NextRun(time.Now())
			utils.InfoLogger.WithField("next_run", next.Format(time.RFC3339)).Info("expiration sweep scheduled")

			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
				if _, err := e.Run(ctx, time.Now()); err != nil {
					utils.ErrorLogger.Errorf("scheduled expiration sweep failed: %v", err)
				}
			case <-ctx.Done():
				timer.Stop()
				return
			case <-e.stop:
				timer.Stop()
				return
			}
		}
	}()
}

// Stop ends the scheduler and waits for it. Only valid after Start.
func (e *ExpirationSweep) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	<-e.done
}
