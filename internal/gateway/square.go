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

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-matcher/internal/domain"
	"payment-matcher/internal/usecase"
)

const (
	DefaultSquareBaseURL = "https://connect.squareup.com"
	DefaultSquareVersion = "2024-01-18"
)

// SquareConfig configures the Square Payments API client.
type SquareConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
	Version     string `mapstructure:"version"`
}

// SquareProvider lists payments from the Square Payments API.
type SquareProvider struct {
	cfg    SquareConfig
	client *http.Client
	log    *zap.Logger
}

// NewSquareProvider creates a provider. A nil client means http.DefaultClient.
func NewSquareProvider(cfg SquareConfig, client *http.Client, log *zap.Logger) *SquareProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSquareBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultSquareVersion
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SquareProvider{cfg: cfg, client: client, log: log}
}

// Name returns the provider name.
func (p *SquareProvider) Name() domain.ProviderName {
	return domain.ProviderSquare
}

type squareMoney struct {
	Amount   *int64 `json:"amount"`
	Currency string `json:"currency"`
}

type squarePayment struct {
	ID                string       `json:"id"`
	CreatedAt         string       `json:"created_at"`
	AmountMoney       *squareMoney `json:"amount_money"`
	TotalMoney        *squareMoney `json:"total_money"`
	Status            string       `json:"status"`
	LocationID        string       `json:"location_id"`
	OrderID           string       `json:"order_id"`
	BuyerEmailAddress string       `json:"buyer_email_address"`
	BillingAddress    *struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"billing_address"`
	CardDetails *struct {
		Card *struct {
			CardholderName string `json:"cardholder_name"`
		} `json:"card"`
	} `json:"card_details"`
}

type squareListResponse struct {
	Payments []json.RawMessage `json:"payments"`
	Cursor   string            `json:"cursor"`
	Errors   []struct {
		Category string `json:"category"`
		Code     string `json:"code"`
		Detail   string `json:"detail"`
	} `json:"errors"`
}

// ListPayments fetches one page of payments created in the query window.
func (p *SquareProvider) ListPayments(ctx context.Context, q usecase.PaymentQuery) (usecase.PaymentPage, error) {
	params := url.Values{}
	params.Set("begin_time", q.BeginTime.UTC().Format(time.RFC3339Nano))
	params.Set("end_time", q.EndTime.UTC().Format(time.RFC3339Nano))
	params.Set("sort_order", "ASC")
	if q.LocationID != "" {
		params.Set("location_id", q.LocationID)
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.Limit > 0 {
		// Square rejects list requests above 100.
		params.Set("limit", strconv.Itoa(min(q.Limit, 100)))
	}

	var resp squareListResponse
	err := getJSON(ctx, p.client, string(domain.ProviderSquare), strings.TrimRight(p.cfg.BaseURL, "/")+"/v2/payments", params,
		map[string]string{
			"Authorization":  "Bearer " + p.cfg.AccessToken,
			"Square-Version": p.cfg.Version,
		}, &resp)
	if err != nil {
		return usecase.PaymentPage{}, err
	}
	if len(resp.Errors) > 0 {
		e := resp.Errors[0]
		return usecase.PaymentPage{}, fmt.Errorf("square API error %s/%s: %s", e.Category, e.Code, e.Detail)
	}

	page := usecase.PaymentPage{
		Payments: make([]domain.PaymentCandidate, 0, len(resp.Payments)),
		Cursor:   resp.Cursor,
	}
	for _, raw := range resp.Payments {
		cand, err := normalizeSquarePayment(raw)
		if err != nil {
			p.log.Warn("skipping malformed square payment", zap.Error(err))
			continue
		}
		page.Payments = append(page.Payments, cand)
	}
	return page, nil
}

func normalizeSquarePayment(raw json.RawMessage) (domain.PaymentCandidate, error) {
	var sp squarePayment
	if err := json.Unmarshal(raw, &sp); err != nil {
		return domain.PaymentCandidate{}, fmt.Errorf("could not decode payment: %w", err)
	}
	if sp.ID == "" {
		return domain.PaymentCandidate{}, errors.New("payment has no id")
	}
	createdAt, err := time.Parse(time.RFC3339, sp.CreatedAt)
	if err != nil {
		return domain.PaymentCandidate{}, fmt.Errorf("payment %s: could not parse created_at '%s': %w", sp.ID, sp.CreatedAt, err)
	}

	money := sp.AmountMoney
	if money == nil || money.Amount == nil {
		money = sp.TotalMoney
	}
	if money == nil || money.Amount == nil {
		return domain.PaymentCandidate{}, fmt.Errorf("payment %s: no amount", sp.ID)
	}

	return domain.PaymentCandidate{
		ID:            sp.ID,
		Provider:      domain.ProviderSquare,
		Amount:        minorToMajor(*money.Amount, money.Currency),
		Currency:      strings.ToUpper(money.Currency),
		CreatedAt:     createdAt,
		CustomerEmail: sp.BuyerEmailAddress,
		CustomerName:  squareCustomerName(sp),
		Status:        sp.Status,
		LocationID:    sp.LocationID,
		OrderID:       sp.OrderID,
		Raw:           raw,
	}, nil
}

func squareCustomerName(sp squarePayment) string {
	if a := sp.BillingAddress; a != nil {
		if name := strings.TrimSpace(a.FirstName + " " + a.LastName); name != "" {
			return name
		}
	}
	if sp.CardDetails != nil && sp.CardDetails.Card != nil {
		return strings.TrimSpace(sp.CardDetails.Card.CardholderName)
	}
	return ""
}

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// minorToMajor converts an amount in the currency's smallest unit to major units.
func minorToMajor(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
