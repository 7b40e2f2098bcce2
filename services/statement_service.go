package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

const statementRowLimit = 1000

type StatementFilter struct {
	Start *time.Time
	End   *time.Time
}

// StatementService renders a user's payment history as a PDF.
type StatementService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStatementService(db *gorm.DB) *StatementService {
	return &StatementService{db: db, now: time.Now}
}

type statementColumn struct {
	title string
	width float64
	align string
}

var statementColumns = []statementColumn{
	{"Date", 28, "L"},
	{"Reference", 42, "L"},
	{"Type", 42, "L"},
	{"Direction", 18, "C"},
	{"Status", 22, "C"},
	{"Amount", 38, "R"},
}

// Export returns the PDF and the number of transactions in it.
func (s *StatementService) Export(ctx context.Context, user models.User, f StatementFilter) ([]byte, int, error) {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return nil, 0, utils.NewValidationError("end_date", "must not be before start_date")
	}

	q := visibleTo(s.db.WithContext(ctx), user.ID)
	if f.Start != nil {
		q = q.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("created_at <= ?", *f.End)
	}
	var rows []models.PaymentTransaction
	if err := q.Order("created_at DESC, id DESC").Limit(statementRowLimit).Find(&rows).Error; err != nil {
		return nil, 0, utils.NewInternalError(fmt.Errorf("load statement rows: %w", err))
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Payment statement", false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Payment statement", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s <%s>", user.Name, user.Email)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated "+s.now().Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 236, 240)
	for _, col := range statementColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	paid, received := decimal.Zero, decimal.Zero
	pdf.SetFont("Helvetica", "", 8)
	for _, row := range rows {
		direction := "out"
		if row.PayerID != user.ID {
			direction = "in"
		}
		if row.PaymentStatus.IsSuccessful() {
			if direction == "in" {
				received = received.Add(row.Amount)
			} else {
				paid = paid.Add(row.Amount)
			}
		}
		cells := []string{
			row.CreatedAt.Format("2006-01-02"),
			row.PaymentReference,
			string(row.PaymentType),
			direction,
			string(row.PaymentStatus),
			utils.FormatCurrencyDZD(row.Amount),
		}
		for i, col := range statementColumns {
			pdf.CellFormat(col.width, 6, tr(cells[i]), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Transactions: %d", len(rows)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Completed payments sent: "+utils.FormatCurrencyDZD(paid), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Completed payments received: "+utils.FormatCurrencyDZD(received), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, utils.NewInternalError(fmt.Errorf("render statement: %w", err))
	}
	return buf.Bytes(), len(rows), nil
}
