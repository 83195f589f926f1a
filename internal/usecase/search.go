package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"payment-matcher/internal/domain"
)

const (
	DefaultWindowMinutes  = 5
	DefaultRateLimitDelay = 100 * time.Millisecond
	DefaultMaxPages       = 10
	DefaultPageSize       = 100
)

// DefaultSearchParams returns the default retrieval parameters.
func DefaultSearchParams() domain.SearchParams {
	return domain.SearchParams{
		WindowMinutes:  DefaultWindowMinutes,
		RateLimitDelay: DefaultRateLimitDelay,
		MaxPages:       DefaultMaxPages,
		PageSize:       DefaultPageSize,
	}
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CandidateSearcher retrieves provider payments created near a registration.
type CandidateSearcher struct {
	provider PaymentProvider
	log      *zap.Logger
	sleep    sleepFunc
}

// NewCandidateSearcher creates a searcher over the given provider.
func NewCandidateSearcher(provider PaymentProvider, log *zap.Logger) *CandidateSearcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &CandidateSearcher{provider: provider, log: log, sleep: sleepContext}
}

// Search returns every payment created within params.WindowMinutes of
// createdAt. It follows provider cursors for at most params.MaxPages pages,
// waiting params.RateLimitDelay before each page after the first. Provider
// failures are reported in SearchResult.Error.
func (s *CandidateSearcher) Search(ctx context.Context, createdAt time.Time, params domain.SearchParams) domain.SearchResult {
	params = withSearchDefaults(params)

	window := time.Duration(params.WindowMinutes * float64(time.Minute))
	result := domain.SearchResult{
		Candidates:  make([]domain.PaymentCandidate, 0),
		WindowStart: createdAt.Add(-window),
		WindowEnd:   createdAt.Add(window),
	}

	allowed := make(map[string]bool, len(params.LocationIDs))
	for _, id := range params.LocationIDs {
		allowed[id] = true
	}
	// A single location can be pushed down to the provider.
	locationID := ""
	if len(params.LocationIDs) == 1 {
		locationID = params.LocationIDs[0]
	}

	cursor := ""
	for page := 0; page < params.MaxPages; page++ {
		if page > 0 {
			if err := s.sleep(ctx, params.RateLimitDelay); err != nil {
				result.Error = fmt.Sprintf("search interrupted: %v", err)
				return result
			}
		}

		resp, err := s.provider.ListPayments(ctx, PaymentQuery{
			BeginTime:  result.WindowStart,
			EndTime:    result.WindowEnd,
			LocationID: locationID,
			Cursor:     cursor,
			Limit:      params.PageSize,
		})
		if err != nil {
			result.Error = fmt.Sprintf("%s: %v", s.provider.Name(), err)
			s.log.Warn("payment search failed",
				zap.String("provider", string(s.provider.Name())),
				zap.Int("page", page+1),
				zap.Error(err))
			return result
		}
		result.PagesFetched++

		for _, p := range resp.Payments {
			if len(allowed) > 0 && !allowed[p.LocationID] {
				continue
			}
			if p.CreatedAt.Before(result.WindowStart) || p.CreatedAt.After(result.WindowEnd) {
				continue
			}
			result.Candidates = append(result.Candidates, p)
		}

		s.log.Debug("fetched payment page",
			zap.String("provider", string(s.provider.Name())),
			zap.Int("page", page+1),
			zap.Int("payments", len(resp.Payments)))

		cursor = resp.Cursor
		if cursor == "" {
			return result
		}
	}

	result.HasMoreResults = true
	s.log.Warn("payment search hit page cap",
		zap.Int("max_pages", params.MaxPages),
		zap.Time("window_start", result.WindowStart),
		zap.Time("window_end", result.WindowEnd))
	return result
}

func withSearchDefaults(p domain.SearchParams) domain.SearchParams {
	if p.WindowMinutes <= 0 {
		p.WindowMinutes = DefaultWindowMinutes
	}
	if p.MaxPages <= 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.RateLimitDelay < 0 {
		p.RateLimitDelay = 0
	}
	return p
}
