package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"payment-matcher/internal/domain"
)

// pagedProvider serves fixed pages keyed by cursor and records queries.
type pagedProvider struct {
	pages   map[string]PaymentPage
	err     error
	queries []PaymentQuery
}

func (p *pagedProvider) Name() domain.ProviderName { return domain.ProviderSquare }

func (p *pagedProvider) ListPayments(_ context.Context, q PaymentQuery) (PaymentPage, error) {
	p.queries = append(p.queries, q)
	if p.err != nil {
		return PaymentPage{}, p.err
	}
	return p.pages[q.Cursor], nil
}

func payment(id string, at time.Time, location string) domain.PaymentCandidate {
	return domain.PaymentCandidate{
		ID:         id,
		Provider:   domain.ProviderSquare,
		Amount:     decimal.NewFromInt(10),
		CreatedAt:  at,
		LocationID: location,
	}
}

func newTestSearcher(t *testing.T, p PaymentProvider) (*CandidateSearcher, *[]time.Duration) {
	s := NewCandidateSearcher(p, zaptest.NewLogger(t))
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return s, &slept
}

func TestCandidateSearcher_FollowsCursors(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &pagedProvider{pages: map[string]PaymentPage{
		"":   {Payments: []domain.PaymentCandidate{payment("P1", at, "L1")}, Cursor: "c1"},
		"c1": {Payments: []domain.PaymentCandidate{payment("P2", at.Add(time.Minute), "L1")}, Cursor: "c2"},
		"c2": {Payments: []domain.PaymentCandidate{payment("P3", at.Add(-time.Minute), "L2")}},
	}}
	s, slept := newTestSearcher(t, p)

	params := DefaultSearchParams()
	got := s.Search(context.Background(), at, params)

	require.Empty(t, got.Error)
	assert.Equal(t, 3, got.PagesFetched)
	assert.False(t, got.HasMoreResults)
	assert.Len(t, got.Candidates, 3)
	assert.Equal(t, []time.Duration{params.RateLimitDelay, params.RateLimitDelay}, *slept)

	require.Len(t, p.queries, 3)
	assert.Equal(t, at.Add(-5*time.Minute), p.queries[0].BeginTime)
	assert.Equal(t, at.Add(5*time.Minute), p.queries[0].EndTime)
	assert.Equal(t, "c2", p.queries[2].Cursor)
	assert.Equal(t, DefaultPageSize, p.queries[0].Limit)
}

func TestCandidateSearcher_PageCap(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &pagedProvider{pages: map[string]PaymentPage{
		"":   {Payments: []domain.PaymentCandidate{payment("P1", at, "")}, Cursor: "c1"},
		"c1": {Payments: []domain.PaymentCandidate{payment("P2", at, "")}, Cursor: "c1"},
	}}
	s, _ := newTestSearcher(t, p)

	params := DefaultSearchParams()
	params.MaxPages = 3
	got := s.Search(context.Background(), at, params)

	assert.True(t, got.HasMoreResults)
	assert.Equal(t, 3, got.PagesFetched)
	assert.Len(t, got.Candidates, 3)
	assert.Len(t, p.queries, 3)
}

func TestCandidateSearcher_Filters(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &pagedProvider{pages: map[string]PaymentPage{
		"": {Payments: []domain.PaymentCandidate{
			payment("IN_L1", at, "L1"),
			payment("IN_L2", at.Add(2*time.Minute), "L2"),
			payment("OTHER_LOCATION", at, "L3"),
			payment("TOO_EARLY", at.Add(-6*time.Minute), "L1"),
		}},
	}}
	s, _ := newTestSearcher(t, p)

	params := DefaultSearchParams()
	params.LocationIDs = []string{"L1", "L2"}
	got := s.Search(context.Background(), at, params)

	ids := make([]string, 0, len(got.Candidates))
	for _, c := range got.Candidates {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"IN_L1", "IN_L2"}, ids)
	assert.Empty(t, p.queries[0].LocationID)
}

func TestCandidateSearcher_SingleLocationPushedDown(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &pagedProvider{pages: map[string]PaymentPage{}}
	s, _ := newTestSearcher(t, p)

	params := DefaultSearchParams()
	params.LocationIDs = []string{"L1"}
	params.WindowMinutes = 10
	got := s.Search(context.Background(), at, params)

	assert.Empty(t, got.Candidates)
	assert.Equal(t, "L1", p.queries[0].LocationID)
	assert.Equal(t, at.Add(-10*time.Minute), got.WindowStart)
}

func TestCandidateSearcher_ProviderError(t *testing.T) {
	p := &pagedProvider{err: errors.New("connection refused")}
	s, _ := newTestSearcher(t, p)

	got := s.Search(context.Background(), time.Now(), DefaultSearchParams())

	assert.Equal(t, "square: connection refused", got.Error)
	assert.Empty(t, got.Candidates)
	assert.Equal(t, 0, got.PagesFetched)
}

func TestCandidateSearcher_CancelledBetweenPages(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &pagedProvider{pages: map[string]PaymentPage{
		"": {Payments: []domain.PaymentCandidate{payment("P1", at, "")}, Cursor: "c1"},
	}}
	s := NewCandidateSearcher(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	params := DefaultSearchParams()
	params.RateLimitDelay = time.Hour
	got := s.Search(ctx, at, params)

	assert.Contains(t, got.Error, "search interrupted")
	assert.Len(t, p.queries, 1)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
