package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/middlewares"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

type PaymentController struct {
	Payments   *services.PaymentService
	Statements *services.StatementService
}

func NewPaymentController(payments *services.PaymentService, statements *services.StatementService) *PaymentController {
	return &PaymentController{Payments: payments, Statements: statements}
}

func (pc *PaymentController) InitiateClientPurchase(c *gin.Context) {
	var input services.ClientPurchaseInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := pc.Payments.InitiateClientPurchase(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment initiated successfully", result)
}

func (pc *PaymentController) InitiatePharmacyToWholesaler(c *gin.Context) {
	var input services.WholesalerPaymentInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := pc.Payments.InitiatePharmacyToWholesaler(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment to wholesaler initiated successfully", result)
}

func (pc *PaymentController) InitiateLogistics(c *gin.Context) {
	var input services.LogisticsPaymentInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := pc.Payments.InitiateLogistics(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment to logistics initiated successfully", result)
}

// verify returns a handler bound to one payment type; the route decides the
// type, never the body.
func (pc *PaymentController) verify(paymentType models.PaymentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.VerifyInput
		if !bindJSON(c, &input) {
			return
		}
		input.PaymentType = paymentType
		result, err := pc.Payments.Verify(c.Request.Context(), actorFrom(c), input)
		if err != nil {
			utils.RespondAppError(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Payment verification completed", result)
	}
}

func (pc *PaymentController) VerifyClientPurchase() gin.HandlerFunc {
	return pc.verify(models.PaymentTypeClientPurchase)
}

func (pc *PaymentController) VerifyPharmacyToWholesaler() gin.HandlerFunc {
	return pc.verify(models.PaymentTypePharmacyToWholesaler)
}

func (pc *PaymentController) VerifyLogistics() gin.HandlerFunc {
	return pc.verify(models.PaymentTypeWholesalerToLogistics)
}

func (pc *PaymentController) GetReceipt(c *gin.Context) {
	result, err := pc.Payments.GetReceipt(c.Request.Context(), actorFrom(c), c.Param("order_number"))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Receipt retrieved successfully", result)
}

func (pc *PaymentController) EmailReceipt(c *gin.Context) {
	var input services.EmailReceiptInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := pc.Payments.EmailReceipt(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Receipt sent successfully", result)
}

func (pc *PaymentController) History(c *gin.Context) {
	var filter services.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.RespondAppError(c, utils.NewValidationError("query", err.Error()))
		return
	}
	rows, page, err := pc.Payments.History(c.Request.Context(), actorFrom(c).ID, filter)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment history retrieved successfully", gin.H{
		"transactions": rows,
		"pagination":   page,
	})
}

// ExportHistory streams the caller's history as a PDF statement.
func (pc *PaymentController) ExportHistory(c *gin.Context) {
	start, end, ok := dateRange(c)
	if !ok {
		return
	}
	user, found := middlewares.CurrentUser(c)
	if !found {
		utils.RespondAppError(c, utils.NewUnauthorizedError("Not authenticated"))
		return
	}
	pdf, count, err := pc.Statements.Export(c.Request.Context(), user, services.StatementFilter{Start: start, End: end})
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	filename := fmt.Sprintf("payment-statement-%s.pdf", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Transaction-Count", fmt.Sprint(count))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (pc *PaymentController) Statistics(c *gin.Context) {
	start, end, ok := dateRange(c)
	if !ok {
		return
	}
	stats, err := pc.Payments.Statistics(c.Request.Context(), services.StatisticsFilter{Start: start, End: end})
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment statistics retrieved successfully", stats)
}

func (pc *PaymentController) AdminOverview(c *gin.Context) {
	overview, err := pc.Payments.AdminOverview(c.Request.Context())
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment overview retrieved successfully", overview)
}

func (pc *PaymentController) AdminTransactions(c *gin.Context) {
	var filter services.AdminTransactionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.RespondAppError(c, utils.NewValidationError("query", err.Error()))
		return
	}
	rows, page, err := pc.Payments.AdminTransactions(c.Request.Context(), filter)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Transactions retrieved successfully", gin.H{
		"transactions": rows,
		"pagination":   page,
	})
}

func dateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	start, err := services.ParseDateParam("start_date", c.Query("start_date"))
	if err != nil {
		utils.RespondAppError(c, err)
		return nil, nil, false
	}
	end, err := services.ParseDateParam("end_date", c.Query("end_date"))
	if err != nil {
		utils.RespondAppError(c, err)
		return nil, nil, false
	}
	return start, end, true
}
