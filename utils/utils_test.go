package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.GenerateToken(42, "cashier")
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "cashier", claims.Role)

	other := NewJWTManager("another-secret", time.Hour)
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestJWTManagerExpiredAndBlacklisted(t *testing.T) {
	expired := NewJWTManager("secret", -time.Minute)
	token, err := expired.GenerateToken(1, "admin")
	require.NoError(t, err)
	_, err = expired.ParseToken(token)
	assert.Error(t, err)

	m := NewJWTManager("secret", time.Hour)
	token, err = m.GenerateToken(1, "admin")
	require.NoError(t, err)

	m.Blacklist(token)
	assert.True(t, m.IsBlacklisted(token))
	_, err = m.ParseToken(token)
	assert.Error(t, err)
}

func TestJWTBlacklistPrunesOnLogout(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	m.blacklist["stale-1"] = time.Now().Add(-time.Minute)
	m.blacklist["stale-2"] = time.Now().Add(-time.Second)

	// lookups leave unrelated entries alone
	assert.False(t, m.IsBlacklisted("unknown"))
	assert.Len(t, m.blacklist, 2)

	assert.False(t, m.IsBlacklisted("stale-1"))
	assert.Len(t, m.blacklist, 1)

	token, err := m.GenerateToken(7, "client")
	require.NoError(t, err)
	m.Blacklist(token)
	assert.Len(t, m.blacklist, 1)
	assert.True(t, m.IsBlacklisted(token))
	assert.True(t, m.blacklist[token].After(time.Now()))
}

func TestAppErrorMatching(t *testing.T) {
	err := fmt.Errorf("initiate: %w", NewGatewayTimeout("Payment gateway timed out", errors.New("deadline")))

	assert.True(t, errors.Is(err, ErrGatewayTimeout))
	assert.False(t, errors.Is(err, ErrGatewayFailure))

	appErr := AsAppError(err)
	assert.Equal(t, CodeGatewayTimeout, appErr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.Code.HTTPStatus())

	internal := AsAppError(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Nil(t, AsAppError(nil))
}

func TestRespondAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"validation", NewValidationError("amount", "must be greater than zero"), http.StatusBadRequest, CodeValidation},
		{"conflict", NewConflictError("Payment already exists for this sale", map[string]int{"id": 1}), http.StatusConflict, CodeConflict},
		{"gateway", NewGatewayFailure("Failed to initiate payment", nil), http.StatusBadGateway, CodeGatewayFailure},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			RespondAppError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body JSONResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestGatewayAmountAndCurrency(t *testing.T) {
	total := decimal.NewFromInt(100)
	discount := decimal.NewFromInt(10)
	assert.Equal(t, "90", GatewayAmount(total.Sub(discount)))
	assert.Equal(t, "90.5", GatewayAmount(decimal.RequireFromString("90.50")))

	assert.Equal(t, "12 500,50 DZD", FormatCurrencyDZD(decimal.RequireFromString("12500.5")))
	assert.Equal(t, "0,00 DZD", FormatCurrencyDZD(decimal.Zero))
	assert.Equal(t, "-1 000,00 DZD", FormatCurrencyDZD(decimal.NewFromInt(-1000)))
}

func TestPagination(t *testing.T) {
	page, limit := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, limit)

	_, limit = NormalizePage(2, 1000)
	assert.Equal(t, MaxPageSize, limit)

	p := NewPagination(2, 10, 21)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 10, Offset(2, 10))
	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("sale:1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, km.Len())
}
