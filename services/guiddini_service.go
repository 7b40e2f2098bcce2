package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

const (
	guiddiniInitiatePath = "/api/payment/initiate"
	guiddiniShowPath     = "/api/payment/show"
	guiddiniReceiptPath  = "/api/payment/receipt"
	guiddiniEmailPath    = "/api/payment/email"

	defaultGatewayTimeout = 15 * time.Second
)

// PaymentGateway is the subset of the Guiddini API the ledger needs.
type PaymentGateway interface {
	Initiate(ctx context.Context, amount string) (*GatewayResponse, error)
	Show(ctx context.Context, orderNumber string) (*GatewayResponse, error)
	Receipt(ctx context.Context, orderNumber string) (*GatewayResponse, error)
	EmailReceipt(ctx context.Context, orderNumber, email string) (*GatewayResponse, error)
}

type GuiddiniConfig struct {
	BaseURL   string
	AppKey    string
	AppSecret string
	Timeout   time.Duration
}

// GuiddiniService talks to the Guiddini e-pay API.
type GuiddiniService struct {
	config     GuiddiniConfig
	httpClient *http.Client
}

func NewGuiddiniService(cfg GuiddiniConfig) *GuiddiniService {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	return &GuiddiniService{
		config: cfg,
		// the per call context carries the deadline
		httpClient: &http.Client{},
	}
}

// GatewayResource is the "data" member of a gateway response.
type GatewayResource struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
}

func (r *GatewayResource) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID         json.RawMessage        `json:"id"`
		Type       string                 `json:"type"`
		Attributes map[string]interface{} `json:"attributes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Type = raw.Type
	r.Attributes = raw.Attributes
	r.ID = ""
	if len(raw.ID) > 0 && string(raw.ID) != "null" {
		var s string
		if err := json.Unmarshal(raw.ID, &s); err == nil {
			r.ID = s
		} else {
			// numeric ids are kept as their literal text
			r.ID = strings.TrimSpace(string(raw.ID))
		}
	}
	return nil
}

// GatewayResponse keeps the parsed body verbatim next to the decoded data.
type GatewayResponse struct {
	StatusCode int
	Envelope   map[string]interface{}
	Data       json.RawMessage
	Resource   *GatewayResource
}

// Status returns data.attributes.status, or "" when absent.
func (r *GatewayResponse) Status() string {
	if r == nil || r.Resource == nil || r.Resource.Attributes == nil {
		return ""
	}
	s, _ := r.Resource.Attributes["status"].(string)
	return s
}

// AttributesJSON re-encodes data.attributes for storage.
func (r *GatewayResponse) AttributesJSON() []byte {
	if r == nil || r.Resource == nil || r.Resource.Attributes == nil {
		return nil
	}
	b, err := json.Marshal(r.Resource.Attributes)
	if err != nil {
		return nil
	}
	return b
}

func (s *GuiddiniService) Initiate(ctx context.Context, amount string) (*GatewayResponse, error) {
	resp, err := s.do(ctx, http.MethodPost, guiddiniInitiatePath, map[string]string{"amount": amount})
	if err != nil {
		return nil, err
	}
	if resp.Resource == nil || resp.Resource.ID == "" {
		return nil, utils.NewGatewayFailure("Failed to initiate payment", errors.New("gateway response has no payment id"))
	}
	return resp, nil
}

func (s *GuiddiniService) Show(ctx context.Context, orderNumber string) (*GatewayResponse, error) {
	return s.do(ctx, http.MethodGet, guiddiniShowPath, map[string]string{"order_number": orderNumber})
}

func (s *GuiddiniService) Receipt(ctx context.Context, orderNumber string) (*GatewayResponse, error) {
	return s.do(ctx, http.MethodGet, guiddiniReceiptPath, map[string]string{"order_number": orderNumber})
}

func (s *GuiddiniService) EmailReceipt(ctx context.Context, orderNumber, email string) (*GatewayResponse, error) {
	return s.do(ctx, http.MethodPost, guiddiniEmailPath, map[string]string{
		"order_number": orderNumber,
		"email":        email,
	})
}

// do performs one call. GET bodies travel as a query string.
func (s *GuiddiniService) do(ctx context.Context, method, endpoint string, body map[string]string) (*GatewayResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	target := s.config.BaseURL + endpoint
	var reader io.Reader
	if method == http.MethodGet {
		if len(body) > 0 {
			q := url.Values{}
			for k, v := range body {
				q.Set(k, v)
			}
			target += "?" + q.Encode()
		}
	} else if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, utils.NewInternalError(fmt.Errorf("encode gateway request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-app-key", s.config.AppKey)
	req.Header.Set("x-app-secret", s.config.AppSecret)

	start := time.Now()
	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, endpoint, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, endpoint, err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"method":   method,
		"status":   res.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("guiddini call finished")

	return parseGatewayBody(res.StatusCode, raw)
}

func parseGatewayBody(statusCode int, raw []byte) (*GatewayResponse, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, utils.NewGatewayFailure("Payment gateway returned an unreadable response",
			fmt.Errorf("status %d: %w", statusCode, err))
	}

	var shape struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(raw, &shape)
	if len(shape.Data) == 0 || string(shape.Data) == "null" {
		return nil, &utils.AppError{
			Code:    utils.CodeGatewayFailure,
			Message: "Payment gateway request failed",
			Details: envelope,
			Err:     fmt.Errorf("status %d: response has no data", statusCode),
		}
	}

	resp := &GatewayResponse{StatusCode: statusCode, Envelope: envelope, Data: shape.Data}
	var resource GatewayResource
	if err := json.Unmarshal(shape.Data, &resource); err == nil {
		resp.Resource = &resource
	}
	return resp, nil
}

func classifyTransportError(ctx context.Context, endpoint string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return utils.NewGatewayTimeout("Payment gateway did not respond in time", fmt.Errorf("%s: %w", endpoint, err))
	}
	return utils.NewGatewayFailure("Payment gateway is unreachable", fmt.Errorf("%s: %w", endpoint, err))
}
