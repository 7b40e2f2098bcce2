package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

// CashierController records point of sale transactions.
type CashierController struct {
	Sales *services.SaleService
}

func NewCashierController(sales *services.SaleService) *CashierController {
	return &CashierController{Sales: sales}
}

func (cc *CashierController) RecordSale(c *gin.Context) {
	var input services.RecordSaleInput
	if !bindJSON(c, &input) {
		return
	}
	sale, err := cc.Sales.RecordSale(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Sale recorded successfully", gin.H{
		"sale":         sale,
		"final_amount": sale.FinalAmount(),
	})
}

// SupplyController serves pharmacy owners, wholesalers and logistics
// managers; the router decides which role reaches which handler.
type SupplyController struct {
	Supply *services.SupplyService
}

func NewSupplyController(supply *services.SupplyService) *SupplyController {
	return &SupplyController{Supply: supply}
}

func (sc *SupplyController) CreatePurchaseOrder(c *gin.Context) {
	var input services.PurchaseOrderInput
	if !bindJSON(c, &input) {
		return
	}
	po, err := sc.Supply.CreatePurchaseOrder(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Purchase order created successfully", po)
}

func (sc *SupplyController) ListPurchaseOrders(c *gin.Context) {
	orders, err := sc.Supply.ListPurchaseOrders(c.Request.Context(), actorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Purchase orders retrieved", orders)
}

func (sc *SupplyController) UpdatePurchaseOrderStatus(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var input services.PurchaseOrderStatusInput
	if !bindJSON(c, &input) {
		return
	}
	po, err := sc.Supply.UpdatePurchaseOrderStatus(c.Request.Context(), actorFrom(c), id, input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Purchase order status updated successfully", po)
}

func (sc *SupplyController) CreateTransportRequest(c *gin.Context) {
	var input services.TransportRequestInput
	if !bindJSON(c, &input) {
		return
	}
	tr, err := sc.Supply.CreateTransportRequest(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Transport request created successfully", tr)
}

func (sc *SupplyController) UpdateStock(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var input services.WholesalerStockUpdate
	if !bindJSON(c, &input) {
		return
	}
	stock, err := sc.Supply.UpdateWholesalerStock(c.Request.Context(), actorFrom(c), id, input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock updated successfully", stock)
}

func (sc *SupplyController) ListTransportRequests(c *gin.Context) {
	requests, err := sc.Supply.ListTransportRequests(c.Request.Context(), actorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Transport requests retrieved", requests)
}

func (sc *SupplyController) ConfirmDelivery(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var input services.DeliveryConfirmation
	if c.Request.ContentLength > 0 && !bindJSON(c, &input) {
		return
	}
	tr, err := sc.Supply.ConfirmDelivery(c.Request.Context(), actorFrom(c), id, input)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Delivery confirmed successfully", tr)
}
