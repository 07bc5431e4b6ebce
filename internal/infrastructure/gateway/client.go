package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hyeonwoo-dev/subpay/internal/application"
	"github.com/hyeonwoo-dev/subpay/internal/config"
)

// HTTPGatewayClient talks to the payment provider's REST API. Authentication
// is HTTP Basic with the merchant secret key as username and empty password.
type HTTPGatewayClient struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig) application.PaymentGateway {
	return &HTTPGatewayClient{
		baseURL:    cfg.BaseURL,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey+":")),
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *HTTPGatewayClient) ConfirmPayment(ctx context.Context, req application.ConfirmPaymentRequest) (*application.ConfirmPaymentResponse, error) {
	wireReq := confirmRequest{
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
	}
	endpoint := fmt.Sprintf("%s/v1/payments/confirm", c.baseURL)
	wireResp, err := sendRequest[confirmRequest, confirmResponse](c, ctx, endpoint, &wireReq)
	if err != nil {
		return nil, err
	}
	return &application.ConfirmPaymentResponse{
		PaymentKey: wireResp.PaymentKey,
		OrderID:    wireResp.OrderID,
		Status:     wireResp.Status,
		Method:     wireResp.Method,
		ApprovedAt: wireResp.ApprovedAt,
	}, nil
}

func (c *HTTPGatewayClient) CancelPayment(ctx context.Context, req application.CancelPaymentRequest) (*application.CancelPaymentResponse, error) {
	wireReq := cancelRequest{
		CancelReason: req.CancelReason,
		CancelAmount: req.CancelAmount,
	}
	endpoint := fmt.Sprintf("%s/v1/payments/%s/cancel", c.baseURL, url.PathEscape(req.PaymentKey))
	wireResp, err := sendRequest[cancelRequest, cancelResponse](c, ctx, endpoint, &wireReq)
	if err != nil {
		return nil, err
	}
	return &application.CancelPaymentResponse{
		PaymentKey:  wireResp.PaymentKey,
		Status:      wireResp.Status,
		CancelledAt: wireResp.CancelledAt,
	}, nil
}

func (c *HTTPGatewayClient) IssueBillingKey(ctx context.Context, req application.IssueBillingKeyRequest) (*application.IssueBillingKeyResponse, error) {
	wireReq := issueBillingKeyRequest{
		AuthKey:     req.AuthKey,
		CustomerKey: req.CustomerKey,
	}
	endpoint := fmt.Sprintf("%s/v1/billing/authorizations/issue", c.baseURL)
	wireResp, err := sendRequest[issueBillingKeyRequest, issueBillingKeyResponse](c, ctx, endpoint, &wireReq)
	if err != nil {
		return nil, err
	}
	return &application.IssueBillingKeyResponse{
		BillingKey:  wireResp.BillingKey,
		CustomerKey: wireResp.CustomerKey,
	}, nil
}

func (c *HTTPGatewayClient) ChargeBillingKey(ctx context.Context, req application.ChargeBillingKeyRequest) (*application.ChargeBillingKeyResponse, error) {
	wireReq := chargeRequest{
		CustomerKey:        req.CustomerKey,
		Amount:             req.Amount,
		OrderID:            req.OrderID,
		OrderName:          req.OrderName,
		CustomerEmail:      req.CustomerEmail,
		CustomerName:       req.CustomerName,
		TaxFreeAmount:      req.TaxFreeAmount,
		TaxExemptionAmount: req.TaxExemptionAmount,
	}
	endpoint := fmt.Sprintf("%s/v1/billing/%s", c.baseURL, url.PathEscape(req.BillingKey))
	wireResp, err := sendRequest[chargeRequest, chargeResponse](c, ctx, endpoint, &wireReq)
	if err != nil {
		return nil, err
	}
	return &application.ChargeBillingKeyResponse{
		PaymentKey: wireResp.PaymentKey,
		OrderID:    wireResp.OrderID,
		Status:     wireResp.Status,
		ApprovedAt: wireResp.ApprovedAt,
	}, nil
}

func sendRequest[Req any, Resp any](c *HTTPGatewayClient, ctx context.Context, endpoint string, reqBody *Req) (*Resp, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var gwErrResp gatewayErrorResponse
		if err := json.Unmarshal(body, &gwErrResp); err != nil {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &GatewayError{
			Code:       gwErrResp.Code,
			Message:    gwErrResp.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var gwResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &gwResp, nil
}
