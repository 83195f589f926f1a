package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"payment-matcher/internal/domain"
	"payment-matcher/internal/usecase"
)

const DefaultStripeBaseURL = "https://api.stripe.com"

// StripeConfig configures the Stripe Charges API client.
type StripeConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	SecretKey string `mapstructure:"secret_key"`
}

// StripeProvider lists charges from the Stripe API.
type StripeProvider struct {
	cfg    StripeConfig
	client *http.Client
	log    *zap.Logger
}

// NewStripeProvider creates a provider. A nil client means http.DefaultClient.
func NewStripeProvider(cfg StripeConfig, client *http.Client, log *zap.Logger) *StripeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultStripeBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeProvider{cfg: cfg, client: client, log: log}
}

// Name returns the provider name.
func (p *StripeProvider) Name() domain.ProviderName {
	return domain.ProviderStripe
}

type stripeCharge struct {
	ID             string  `json:"id"`
	Amount         *int64  `json:"amount"`
	Currency       string  `json:"currency"`
	Created        *int64  `json:"created"`
	Status         string  `json:"status"`
	ReceiptEmail   string  `json:"receipt_email"`
	PaymentIntent  *string `json:"payment_intent"`
	BillingDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"billing_details"`
	Metadata map[string]string `json:"metadata"`
}

type stripeListResponse struct {
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
}

// ListPayments fetches one page of charges created in the query window. The
// cursor is the ID of the last charge on the previous page.
func (p *StripeProvider) ListPayments(ctx context.Context, q usecase.PaymentQuery) (usecase.PaymentPage, error) {
	params := url.Values{}
	params.Set("created[gte]", strconv.FormatInt(q.BeginTime.Unix(), 10))
	params.Set("created[lte]", strconv.FormatInt(q.EndTime.Unix(), 10))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(min(q.Limit, 100)))
	}
	if q.Cursor != "" {
		params.Set("starting_after", q.Cursor)
	}

	var resp stripeListResponse
	err := getJSON(ctx, p.client, string(domain.ProviderStripe), strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/charges", params,
		map[string]string{"Authorization": "Bearer " + p.cfg.SecretKey}, &resp)
	if err != nil {
		return usecase.PaymentPage{}, err
	}

	page := usecase.PaymentPage{Payments: make([]domain.PaymentCandidate, 0, len(resp.Data))}
	lastID := ""
	for _, raw := range resp.Data {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err == nil && head.ID != "" {
			lastID = head.ID
		}

		cand, err := normalizeStripeCharge(raw)
		if err != nil {
			p.log.Warn("skipping malformed stripe charge", zap.Error(err))
			continue
		}
		if q.LocationID != "" && cand.LocationID != q.LocationID {
			continue
		}
		page.Payments = append(page.Payments, cand)
	}
	if resp.HasMore {
		page.Cursor = lastID
	}
	return page, nil
}

func normalizeStripeCharge(raw json.RawMessage) (domain.PaymentCandidate, error) {
	var ch stripeCharge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return domain.PaymentCandidate{}, fmt.Errorf("could not decode charge: %w", err)
	}
	if ch.ID == "" {
		return domain.PaymentCandidate{}, errors.New("charge has no id")
	}
	if ch.Created == nil {
		return domain.PaymentCandidate{}, fmt.Errorf("charge %s: no created timestamp", ch.ID)
	}
	if ch.Amount == nil {
		return domain.PaymentCandidate{}, fmt.Errorf("charge %s: no amount", ch.ID)
	}

	email := ch.BillingDetails.Email
	if email == "" {
		email = ch.ReceiptEmail
	}
	cand := domain.PaymentCandidate{
		ID:            ch.ID,
		Provider:      domain.ProviderStripe,
		Amount:        minorToMajor(*ch.Amount, ch.Currency),
		Currency:      strings.ToUpper(ch.Currency),
		CreatedAt:     time.Unix(*ch.Created, 0).UTC(),
		CustomerEmail: email,
		CustomerName:  strings.TrimSpace(ch.BillingDetails.Name),
		Status:        ch.Status,
		LocationID:    ch.Metadata["location_id"],
		Raw:           raw,
	}
	if ch.PaymentIntent != nil {
		cand.OrderID = *ch.PaymentIntent
	}
	return cand, nil
}
