package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

type HistoryFilter struct {
	Status      string `form:"status"`
	PaymentType string `form:"payment_type"`
	Page        int    `form:"page"`
	Limit       int    `form:"limit"`
}

type AdminTransactionFilter struct {
	HistoryFilter
	PayerID uint `form:"payer_id"`
}

type StatisticsFilter struct {
	Start *time.Time
	End   *time.Time
}

type StatusBreakdown struct {
	Status        models.PaymentStatus `json:"status"`
	Count         int64                `json:"count"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	AverageAmount decimal.Decimal      `json:"average_amount"`
}

type TypeBreakdown struct {
	PaymentType       models.PaymentType `json:"payment_type"`
	Statuses          []StatusBreakdown  `json:"statuses"`
	TotalTransactions int64              `json:"total_transactions"`
	TotalValue        decimal.Decimal    `json:"total_value"`
}

type DateRange struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type PaymentStatistics struct {
	PaymentBreakdown        []TypeBreakdown `json:"payment_breakdown"`
	TotalTransactions       int64           `json:"total_transactions"`
	AverageTransactionValue decimal.Decimal `json:"average_transaction_value"`
	TotalValue              decimal.Decimal `json:"total_value"`
	DateRange               DateRange       `json:"date_range"`
}

type AdminOverview struct {
	Statistics         *PaymentStatistics          `json:"statistics"`
	Metrics            PaymentMetrics              `json:"metrics"`
	RecentTransactions []models.PaymentTransaction `json:"recent_transactions"`
}

// History lists the transactions userID paid or received as a user payee.
func (s *PaymentService) History(ctx context.Context, userID uint, f HistoryFilter) ([]models.PaymentTransaction, utils.Pagination, error) {
	return s.listTransactions(visibleTo(s.db.WithContext(ctx), userID), f)
}

// visibleTo scopes payment_transactions to rows userID paid or received.
func visibleTo(db *gorm.DB, userID uint) *gorm.DB {
	return db.Model(&models.PaymentTransaction{}).
		Where(db.Session(&gorm.Session{NewDB: true}).Where("payer_id = ?", userID).
			Or("payee_id = ? AND payee_kind = ?", userID, models.PayeeKindUser))
}

// AdminTransactions lists across all users.
func (s *PaymentService) AdminTransactions(ctx context.Context, f AdminTransactionFilter) ([]models.PaymentTransaction, utils.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.PaymentTransaction{})
	if f.PayerID != 0 {
		q = q.Where("payer_id = ?", f.PayerID)
	}
	return s.listTransactions(q, f.HistoryFilter)
}

func (s *PaymentService) listTransactions(q *gorm.DB, f HistoryFilter) ([]models.PaymentTransaction, utils.Pagination, error) {
	if f.Status != "" {
		status, err := models.ParsePaymentStatus(f.Status)
		if err != nil {
			return nil, utils.Pagination{}, utils.NewValidationError("status", "is not a known payment status")
		}
		q = q.Where("payment_status = ?", status)
	}
	if f.PaymentType != "" {
		pt, err := models.ParsePaymentType(f.PaymentType)
		if err != nil {
			return nil, utils.Pagination{}, utils.NewValidationError("payment_type", "is not a known payment type")
		}
		q = q.Where("payment_type = ?", pt)
	}

	page, limit := utils.NormalizePage(f.Page, f.Limit)
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, utils.Pagination{}, utils.NewInternalError(fmt.Errorf("count payments: %w", err))
	}

	var rows []models.PaymentTransaction
	err := q.Order("created_at DESC, id DESC").
		Offset(utils.Offset(page, limit)).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, utils.Pagination{}, utils.NewInternalError(fmt.Errorf("list payments: %w", err))
	}
	return rows, utils.NewPagination(page, limit, total), nil
}

type statisticsRow struct {
	PaymentType   string
	PaymentStatus string
	Count         int64
	Total         decimal.Decimal
}

// Statistics groups transactions by type and status. An empty range yields
// zero totals, never an error.
func (s *PaymentService) Statistics(ctx context.Context, f StatisticsFilter) (*PaymentStatistics, error) {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return nil, utils.NewValidationError("end_date", "must not be before start_date")
	}

	q := s.db.WithContext(ctx).Model(&models.PaymentTransaction{})
	if f.Start != nil {
		q = q.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("created_at <= ?", *f.End)
	}

	var rows []statisticsRow
	err := q.Select("payment_type, payment_status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Group("payment_type, payment_status").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("payment statistics: %w", err))
	}

	stats := &PaymentStatistics{
		PaymentBreakdown:        []TypeBreakdown{},
		AverageTransactionValue: decimal.Zero,
		TotalValue:              decimal.Zero,
		DateRange:               DateRange{StartDate: f.Start, EndDate: f.End},
	}

	byType := make(map[models.PaymentType]*TypeBreakdown)
	for _, r := range rows {
		pt := models.PaymentType(r.PaymentType)
		tb, ok := byType[pt]
		if !ok {
			tb = &TypeBreakdown{PaymentType: pt, TotalValue: decimal.Zero}
			byType[pt] = tb
		}
		tb.Statuses = append(tb.Statuses, StatusBreakdown{
			Status:        models.PaymentStatus(r.PaymentStatus),
			Count:         r.Count,
			TotalAmount:   r.Total,
			AverageAmount: average(r.Total, r.Count),
		})
		tb.TotalTransactions += r.Count
		tb.TotalValue = tb.TotalValue.Add(r.Total)

		stats.TotalTransactions += r.Count
		stats.TotalValue = stats.TotalValue.Add(r.Total)
	}

	for _, tb := range byType {
		sort.Slice(tb.Statuses, func(i, j int) bool { return tb.Statuses[i].Status < tb.Statuses[j].Status })
		stats.PaymentBreakdown = append(stats.PaymentBreakdown, *tb)
	}
	sort.Slice(stats.PaymentBreakdown, func(i, j int) bool {
		return stats.PaymentBreakdown[i].PaymentType < stats.PaymentBreakdown[j].PaymentType
	})
	stats.AverageTransactionValue = average(stats.TotalValue, stats.TotalTransactions)
	return stats, nil
}

func (s *PaymentService) AdminOverview(ctx context.Context) (*AdminOverview, error) {
	stats, err := s.Statistics(ctx, StatisticsFilter{})
	if err != nil {
		return nil, err
	}

	var recent []models.PaymentTransaction
	err = s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(10).Find(&recent).Error
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("recent payments: %w", err))
	}

	return &AdminOverview{
		Statistics:         stats,
		Metrics:            s.monitor.GetMetrics(),
		RecentTransactions: recent,
	}, nil
}

func average(total decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(count)).Round(2)
}

// ParseDateParam accepts YYYY-MM-DD or RFC3339. An empty value is nil.
func ParseDateParam(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, utils.NewValidationError(field, "must be a date (YYYY-MM-DD)")
}
