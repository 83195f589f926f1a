package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderName identifies the payment provider a candidate came from.
type ProviderName string

const (
	ProviderSquare ProviderName = "square"
	ProviderStripe ProviderName = "stripe"
)

// RegistrationRecord represents a purchase intent from the registration store.
type RegistrationRecord struct {
	ID                 string           `json:"id"`
	CreatedAt          time.Time        `json:"createdAt"`
	AmountPaid         *decimal.Decimal `json:"amountPaid,omitempty"`
	ConfirmationNumber string           `json:"confirmationNumber,omitempty"`
	Data               map[string]any   `json:"nestedData,omitempty"`
	ExternalPaymentRef *string          `json:"externalPaymentRef"`
}

// IsMatched reports whether the registration already references a provider payment.
func (r RegistrationRecord) IsMatched() bool {
	return r.ExternalPaymentRef != nil && *r.ExternalPaymentRef != ""
}

// PaymentCandidate is the normalized view of a provider payment.
type PaymentCandidate struct {
	ID            string          `json:"id"`
	Provider      ProviderName    `json:"provider"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"createdAt"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
	Status        string          `json:"status"`
	LocationID    string          `json:"locationId,omitempty"`
	OrderID       string          `json:"orderId,omitempty"`

	// Raw is the provider payload, kept for audit only.
	Raw json.RawMessage `json:"-"`
}

// SearchParams controls candidate retrieval around a registration timestamp.
type SearchParams struct {
	WindowMinutes  float64       `json:"windowMinutes"`
	LocationIDs    []string      `json:"locationIds,omitempty"`
	RateLimitDelay time.Duration `json:"rateLimitDelayMs"`
	MaxPages       int           `json:"maxPages"`
	PageSize       int           `json:"pageSize"`
}

// SearchResult is the outcome of one candidate search. Provider failures are
// carried in Error so a batch can keep going.
type SearchResult struct {
	Candidates     []PaymentCandidate `json:"candidates"`
	PagesFetched   int                `json:"pagesFetched"`
	HasMoreResults bool               `json:"hasMoreResults"`
	WindowStart    time.Time          `json:"windowStart"`
	WindowEnd      time.Time          `json:"windowEnd"`
	Error          string             `json:"error,omitempty"`
}
