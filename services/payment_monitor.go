package services

import (
	"sync"
	"time"

	"github.com/yeremiapane/pharmacy-marketplace/models"
)

// PaymentMetrics are process local counters shown on the admin overview.
type PaymentMetrics struct {
	Initiated          int64            `json:"initiated"`
	Verifications      int64            `json:"verifications"`
	SuccessfulPayments int64            `json:"successful_payments"`
	FailedPayments     int64            `json:"failed_payments"`
	GatewayErrors      int64            `json:"gateway_errors"`
	GatewayTimeouts    int64            `json:"gateway_timeouts"`
	SkippedStockItems  int64            `json:"skipped_stock_items"`
	AvgGatewayMillis   int64            `json:"avg_gateway_ms"`
	ByType             map[string]int64 `json:"initiated_by_type"`
	Since              time.Time        `json:"since"`
}

// PaymentMonitor collects metrics about ledger activity.
type PaymentMonitor struct {
	mutex        sync.Mutex
	metrics      PaymentMetrics
	gatewayCalls int64
	gatewayTotal time.Duration
}

func NewPaymentMonitor() *PaymentMonitor {
	return &PaymentMonitor{
		metrics: PaymentMetrics{
			ByType: make(map[string]int64),
			Since:  time.Now(),
		},
	}
}

func (pm *PaymentMonitor) RecordInitiated(paymentType models.PaymentType) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.metrics.Initiated++
	pm.metrics.ByType[string(paymentType)]++
}

// RecordVerification counts a verify call and the status it moved to.
func (pm *PaymentMonitor) RecordVerification(change models.StatusChange, skippedItems int) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.metrics.Verifications++
	pm.metrics.SkippedStockItems += int64(skippedItems)
	if !change.Changed {
		return
	}
	switch {
	case change.EnteredSuccess:
		pm.metrics.SuccessfulPayments++
	case change.To.IsFailure():
		pm.metrics.FailedPayments++
	}
}

func (pm *PaymentMonitor) RecordGatewayCall(d time.Duration, err error) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.gatewayCalls++
	pm.gatewayTotal += d
	pm.metrics.AvgGatewayMillis = (pm.gatewayTotal / time.Duration(pm.gatewayCalls)).Milliseconds()

	if err == nil {
		return
	}
	if isGatewayTimeout(err) {
		pm.metrics.GatewayTimeouts++
	} else {
		pm.metrics.GatewayErrors++
	}
}

// GetMetrics returns a copy of the current metrics.
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	out := pm.metrics
	out.ByType = make(map[string]int64, len(pm.metrics.ByType))
	for k, v := range pm.metrics.ByType {
		out.ByType[k] = v
	}
	return out
}
