package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-matcher/internal/domain"
	"payment-matcher/internal/usecase"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSQLiteStore_RegistrationRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRegistrations(ctx, []domain.RegistrationRecord{
		{
			ID:                 "REG001",
			CreatedAt:          created,
			AmountPaid:         decPtr("100.50"),
			ConfirmationNumber: "IND-001",
			Data: map[string]any{
				"email":     "john@example.com",
				"attendees": []any{map[string]any{"firstName": "John"}},
			},
		},
		{ID: "REG002", CreatedAt: created.Add(time.Hour)},
	}))

	got, err := store.GetRegistration(ctx, "REG001")
	require.NoError(t, err)
	assert.Equal(t, "REG001", got.ID)
	assert.True(t, created.Equal(got.CreatedAt))
	require.NotNil(t, got.AmountPaid)
	assert.True(t, decimal.RequireFromString("100.50").Equal(*got.AmountPaid))
	assert.Equal(t, "IND-001", got.ConfirmationNumber)
	assert.Equal(t, "john@example.com", got.Data["email"])
	assert.Nil(t, got.ExternalPaymentRef)

	bare, err := store.GetRegistration(ctx, "REG002")
	require.NoError(t, err)
	assert.Nil(t, bare.AmountPaid)
	assert.Nil(t, bare.Data)

	_, err = store.GetRegistration(ctx, "MISSING")
	assert.ErrorIs(t, err, usecase.ErrRegistrationNotFound)
}

func TestSQLiteStore_ListUnmatched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRegistrations(ctx, []domain.RegistrationRecord{
		{ID: "REG003", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "REG001", CreatedAt: base},
		{ID: "REG002", CreatedAt: base.Add(time.Hour), ExternalPaymentRef: strPtr("sq_pay_2")},
		{ID: "REG004", CreatedAt: base.Add(3 * time.Hour), ExternalPaymentRef: strPtr("")},
	}))

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "no limit", limit: 0, want: []string{"REG001", "REG003", "REG004"}},
		{name: "limited", limit: 2, want: []string{"REG001", "REG003"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListUnmatched(ctx, tt.limit)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSQLiteStore_SaveAndListResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	results := []domain.MatchingResult{
		{
			RegistrationID:   "REG001",
			MatchedPaymentID: strPtr("sq_pay_1"),
			MatchScore:       92.5,
			Confidence:       domain.ConfidenceHigh,
			Reasons:          []string{"Exact amount match: 100.00 (+30.0 points)"},
			CandidatesFound:  3,
			ProcessingTimeMs: 12,
			State:            domain.StateClassified,
		},
		{
			RegistrationID: "REG002",
			Confidence:     domain.ConfidenceNone,
			Reasons:        []string{},
			Error:          "square: HTTP 500",
			State:          domain.StateError,
		},
	}
	require.NoError(t, store.SaveResults(ctx, "run-1", results))

	got, err := store.ListResults(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, results, got)

	other, err := store.ListResults(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "matcher.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveRegistrations(ctx, []domain.RegistrationRecord{
		{ID: "REG001", CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	reg, err := reopened.GetRegistration(ctx, "REG001")
	require.NoError(t, err)
	assert.Equal(t, "REG001", reg.ID)
}
