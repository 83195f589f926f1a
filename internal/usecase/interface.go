package usecase

import (
	"context"
	"errors"
	"time"

	"payment-matcher/internal/domain"
)

// ErrRegistrationNotFound is returned by a RegistrationRepository when no
// registration has the requested ID.
var ErrRegistrationNotFound = errors.New("registration not found")

// PaymentQuery selects one page of provider payments.
type PaymentQuery struct {
	BeginTime  time.Time
	EndTime    time.Time
	LocationID string
	Cursor     string
	Limit      int
}

// PaymentPage is one page of provider payments. An empty Cursor means there
// are no further pages.
type PaymentPage struct {
	Payments []domain.PaymentCandidate
	Cursor   string
}

// PaymentProvider defines the interface for listing payments from an external provider.
// Implementations handle a single page; pagination, pacing and filtering live in CandidateSearcher.
//
//go:generate mockgen -destination=mocks/mock_repository.go -source=interface.go
type PaymentProvider interface {
	Name() domain.ProviderName
	ListPayments(ctx context.Context, query PaymentQuery) (PaymentPage, error)
}

// RegistrationRepository defines the interface for fetching registrations.
type RegistrationRepository interface {
	GetRegistration(ctx context.Context, id string) (domain.RegistrationRecord, error)
	ListUnmatched(ctx context.Context, limit int) ([]domain.RegistrationRecord, error)
}

// ResultStore persists the results of a batch run.
type ResultStore interface {
	SaveResults(ctx context.Context, runID string, results []domain.MatchingResult) error
}
