package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

func newTestGuiddini(url string, timeout time.Duration) *GuiddiniService {
	return NewGuiddiniService(GuiddiniConfig{
		BaseURL:   url + "/",
		AppKey:    "test-key",
		AppSecret: "test-secret",
		Timeout:   timeout,
	})
}

func TestGuiddiniInitiateSendsAmountAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/payment/initiate", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-app-key"))
		assert.Equal(t, "test-secret", r.Header.Get("x-app-secret"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "90", body["amount"])

		w.Write([]byte(`{"data":{"id":"PAY-123","type":"transaction","attributes":{"form_url":"https://pay/form"}}}`))
	}))
	defer server.Close()

	svc := newTestGuiddini(server.URL, time.Second)
	resp, err := svc.Initiate(context.Background(), "90")
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", resp.Resource.ID)
	assert.Equal(t, "https://pay/form", resp.Resource.Attributes["form_url"])
	assert.Contains(t, resp.Envelope, "data")
}

func TestGuiddiniShowEncodesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/payment/show", r.URL.Path)
		assert.Equal(t, "ORD 1/2", r.URL.Query().Get("order_number"))
		w.Write([]byte(`{"data":{"id":42,"attributes":{"status":"approved","amount":"90"}}}`))
	}))
	defer server.Close()

	svc := newTestGuiddini(server.URL, time.Second)
	resp, err := svc.Show(context.Background(), "ORD 1/2")
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status())
	assert.Equal(t, "42", resp.Resource.ID)
	assert.JSONEq(t, `{"status":"approved","amount":"90"}`, string(resp.AttributesJSON()))
}

func TestGuiddiniFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode utils.ErrorCode
	}{
		{name: "missing data", status: http.StatusOK, body: `{"message":"invalid key"}`, wantCode: utils.CodeGatewayFailure},
		{name: "null data", status: http.StatusUnauthorized, body: `{"data":null,"errors":["unauthorized"]}`, wantCode: utils.CodeGatewayFailure},
		{name: "not json", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantCode: utils.CodeGatewayFailure},
		{name: "initiate without id", status: http.StatusOK, body: `{"data":{"attributes":{}}}`, wantCode: utils.CodeGatewayFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := newTestGuiddini(server.URL, time.Second)
			_, err := svc.Initiate(context.Background(), "10")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, utils.AsAppError(err).Code)
		})
	}
}

func TestGuiddiniTimeoutIsDistinct(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	svc := newTestGuiddini(server.URL, 50*time.Millisecond)
	_, err := svc.Show(context.Background(), "ORD-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrGatewayTimeout))
	assert.False(t, errors.Is(err, utils.ErrGatewayFailure))
}

func TestGuiddiniUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc := newTestGuiddini(url, time.Second)
	_, err := svc.EmailReceipt(context.Background(), "ORD-1", "a@b.dz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrGatewayFailure))
}

func TestGuiddiniEmailAndReceipt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/payment/email":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ORD-9", body["order_number"])
			assert.Equal(t, "client@example.dz", body["email"])
			w.Write([]byte(`{"data":{"sent":true}}`))
		case "/api/payment/receipt":
			assert.Equal(t, "ORD-9", r.URL.Query().Get("order_number"))
			w.Write([]byte(`{"data":"https://epay.guiddini.dz/receipt/ORD-9.pdf"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := newTestGuiddini(server.URL, time.Second)

	resp, err := svc.EmailReceipt(context.Background(), "ORD-9", "client@example.dz")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sent":true}`, string(resp.Data))

	resp, err = svc.Receipt(context.Background(), "ORD-9")
	require.NoError(t, err)
	assert.Nil(t, resp.Resource)
	assert.Equal(t, "https://epay.guiddini.dz/receipt/ORD-9.pdf", resp.Envelope["data"])
}
