package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// BankAPIProvider initiates transfers through an HTTP banking rail. The rail
// confirms or bounces each transfer asynchronously on the settlement webhook.
type BankAPIProvider struct {
	BaseURL     string
	APIKey      string
	WebhookBase string // e.g. https://yourdomain.com - callback is WebhookBase + /api/v1/webhooks/settlement
	client      *http.Client
}

func NewBankAPIProvider(baseURL, apiKey, webhookBase string) *BankAPIProvider {
	return &BankAPIProvider{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		WebhookBase: webhookBase,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type transferAPIResponse struct {
	UUID                string `json:"uuid"`
	Reference           string `json:"reference"`
	Status              string `json:"status"`
	ResponseCode        string `json:"response_code"`
	ResponseDescription string `json:"response_description"`
	CreatedAt           string `json:"created_at"`
}

func (p *BankAPIProvider) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	callbackURL := req.CallbackURL
	if callbackURL == "" && p.WebhookBase != "" {
		base := p.WebhookBase
		if len(base) > 0 && base[0] != 'h' {
			base = "https://" + base
		}
		callbackURL = base + "/api/v1/webhooks/settlement"
	}
	body := map[string]string{
		"amount":       req.Amount,
		"currency":     req.Currency,
		"bank_name":    req.BankName,
		"account":      req.BankAccount,
		"ifsc":         req.BankIFSC,
		"narration":    req.Narration,
		"reference":    req.Reference,
		"callback_url": callbackURL,
	}
	if body["narration"] == "" {
		body["narration"] = "Partner commission payout"
	}
	bodyBytes, _ := json.Marshal(body)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v1/transfers", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	log.Printf("[settlement] POST %s/api/v1/transfers reference=%s amount=%s", p.BaseURL, req.Reference, req.Amount)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("transfer api: %d %s", resp.StatusCode, string(respBody))
	}
	var out transferAPIResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("transfer api decode: %w", err)
	}
	return &TransferResponse{ProviderRef: out.UUID, Status: out.Status}, nil
}
