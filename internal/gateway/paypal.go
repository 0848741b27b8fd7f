package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	// Refresh the cached token slightly before the gateway expires it.
	tokenExpirySkew = 30 * time.Second
)

// PayPal implements Client against the PayPal REST API
// (v2 checkout orders, v1 payouts).
type PayPal struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPal builds a client for the given environment ("sandbox" or "live").
func NewPayPal(env, clientID, clientSecret string) *PayPal {
	base := sandboxBaseURL
	if env == "live" {
		base = liveBaseURL
	}
	return &PayPal{
		baseURL:      strings.TrimRight(base, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

type createOrderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []purchaseUnit      `json:"purchase_units"`
	ApplicationContext *applicationContext `json:"application_context,omitempty"`
}

type purchaseUnit struct {
	Amount amount `json:"amount"`
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (p *PayPal) CreateIntent(ctx context.Context, currency string, amt int64, returnURL, cancelURL string) (*Intent, error) {
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{
			{Amount: amount{CurrencyCode: currency, Value: formatAmount(amt)}},
		},
		ApplicationContext: &applicationContext{ReturnURL: returnURL, CancelURL: cancelURL},
	}

	var resp orderResponse
	if err := p.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, err
	}

	intent := &Intent{OrderID: resp.ID}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			intent.ApproveLink = link.Href
			break
		}
	}
	if intent.OrderID == "" {
		return nil, fmt.Errorf("gateway returned no order id")
	}
	return intent, nil
}

func (p *PayPal) Capture(ctx context.Context, gatewayOrderID string) (*CaptureResult, error) {
	path := "/v2/checkout/orders/" + url.PathEscape(gatewayOrderID) + "/capture"

	var resp orderResponse
	if err := p.doJSON(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	result := &CaptureResult{Status: resp.Status}
	for _, pu := range resp.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			result.CaptureID = pu.Payments.Captures[0].ID
			break
		}
	}
	return result, nil
}

type payoutRequest struct {
	SenderBatchHeader payoutBatchHeader `json:"sender_batch_header"`
	Items             []payoutItem      `json:"items"`
}

type payoutBatchHeader struct {
	SenderBatchID string `json:"sender_batch_id"`
	EmailSubject  string `json:"email_subject,omitempty"`
}

type payoutItem struct {
	RecipientType string `json:"recipient_type"`
	Amount        amount `json:"amount"`
	Receiver      string `json:"receiver"`
	Note          string `json:"note,omitempty"`
	SenderItemID  string `json:"sender_item_id"`
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
	} `json:"batch_header"`
	Items []struct {
		PayoutItemID string `json:"payout_item_id"`
	} `json:"items"`
}

func (p *PayPal) Payout(ctx context.Context, receiver, currency string, amt int64, note string) (*PayoutResult, error) {
	body := payoutRequest{
		SenderBatchHeader: payoutBatchHeader{
			SenderBatchID: uuid.NewString(),
			EmailSubject:  "You have a payout",
		},
		Items: []payoutItem{{
			RecipientType: "EMAIL",
			Amount:        amount{CurrencyCode: currency, Value: formatAmount(amt)},
			Receiver:      receiver,
			Note:          note,
			SenderItemID:  uuid.NewString(),
		}},
	}

	var resp payoutResponse
	if err := p.doJSON(ctx, http.MethodPost, "/v1/payments/payouts", body, &resp); err != nil {
		return nil, err
	}

	result := &PayoutResult{BatchID: resp.BatchHeader.PayoutBatchID}
	if len(resp.Items) > 0 {
		result.ItemID = resp.Items[0].PayoutItemID
	}
	return result, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *PayPal) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		token := p.accessToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	// Token fetch happens outside the lock so a slow gateway never blocks
	// callers holding it; a duplicate fetch under contention is harmless.
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: http status %d", ErrAuthFailed, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}

	p.mu.Lock()
	p.accessToken = tok.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySkew)
	p.mu.Unlock()
	return tok.AccessToken, nil
}

func (p *PayPal) doJSON(ctx context.Context, method, path string, in, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
