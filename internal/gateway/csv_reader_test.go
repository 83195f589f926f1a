package gateway

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-matcher/internal/usecase"
)

var registrationHeader = []string{"id", "created_at", "amount_paid", "confirmation_number", "registration_data", "external_payment_ref"}

func TestCSVRegistrationRepository_ReadRegistrations(t *testing.T) {
	tests := []struct {
		name    string
		csvData [][]string
		check   func(t *testing.T, repo *CSVRegistrationRepository)
		wantErr bool
	}{
		{
			name: "valid registrations",
			csvData: [][]string{
				registrationHeader,
				{"REG001", "2024-01-01T12:00:00Z", "100.00", "IND-001", `{"email":"john@example.com","attendees":[{"firstName":"John"}]}`, ""},
				{"REG002", "2024-01-01T13:30:00Z", "", "", "", "sq_pay_1"},
			},
			check: func(t *testing.T, repo *CSVRegistrationRepository) {
				got, err := repo.ReadRegistrations(context.Background())
				require.NoError(t, err)
				require.Len(t, got, 2)

				assert.Equal(t, "REG001", got[0].ID)
				assert.True(t, mustParseTime("2024-01-01T12:00:00Z").Equal(got[0].CreatedAt))
				require.NotNil(t, got[0].AmountPaid)
				assert.Equal(t, "100", got[0].AmountPaid.String())
				assert.Equal(t, "IND-001", got[0].ConfirmationNumber)
				assert.Equal(t, "john@example.com", got[0].Data["email"])
				assert.Nil(t, got[0].ExternalPaymentRef)
				assert.False(t, got[0].IsMatched())

				assert.Nil(t, got[1].AmountPaid)
				assert.Nil(t, got[1].Data)
				require.NotNil(t, got[1].ExternalPaymentRef)
				assert.Equal(t, "sq_pay_1", *got[1].ExternalPaymentRef)
				assert.True(t, got[1].IsMatched())
			},
		},
		{
			name: "short rows tolerated",
			csvData: [][]string{
				registrationHeader,
				{"REG001", "2024-01-01T12:00:00Z"},
			},
			check: func(t *testing.T, repo *CSVRegistrationRepository) {
				got, err := repo.ReadRegistrations(context.Background())
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Nil(t, got[0].AmountPaid)
			},
		},
		{
			name:    "empty file with header only",
			csvData: [][]string{registrationHeader},
			check: func(t *testing.T, repo *CSVRegistrationRepository) {
				got, err := repo.ReadRegistrations(context.Background())
				require.NoError(t, err)
				assert.Empty(t, got)
			},
		},
		{
			name: "invalid amount format",
			csvData: [][]string{
				registrationHeader,
				{"REG001", "2024-01-01T12:00:00Z", "invalid_amount", "", "", ""},
			},
			wantErr: true,
		},
		{
			name: "invalid time format",
			csvData: [][]string{
				registrationHeader,
				{"REG001", "invalid_time", "100.00", "", "", ""},
			},
			wantErr: true,
		},
		{
			name: "invalid registration data",
			csvData: [][]string{
				registrationHeader,
				{"REG001", "2024-01-01T12:00:00Z", "100.00", "", "{not json", ""},
			},
			wantErr: true,
		},
		{
			name: "unexpected header",
			csvData: [][]string{
				{"trxID", "amount", "type", "transactionTime"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewCSVRegistrationRepository(createTempCSV(t, tt.csvData))

			if tt.wantErr {
				got, err := repo.ReadRegistrations(context.Background())
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			tt.check(t, repo)
		})
	}
}

func TestCSVRegistrationRepository_FileErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("file not found", func(t *testing.T) {
		repo := NewCSVRegistrationRepository(filepath.Join(t.TempDir(), "nonexistent_file.csv"))
		_, err := repo.ReadRegistrations(ctx)
		assert.Error(t, err)
	})

	t.Run("file with no header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := NewCSVRegistrationRepository(path).ReadRegistrations(ctx)
		assert.Error(t, err)
	})
}

func TestCSVRegistrationRepository_GetRegistration(t *testing.T) {
	repo := NewCSVRegistrationRepository(createTempCSV(t, [][]string{
		registrationHeader,
		{"REG001", "2024-01-01T12:00:00Z", "100.00", "", "", ""},
		{"REG002", "2024-01-01T13:00:00Z", "50.00", "", "", ""},
	}))
	ctx := context.Background()

	reg, err := repo.GetRegistration(ctx, "REG002")
	require.NoError(t, err)
	assert.Equal(t, "REG002", reg.ID)

	_, err = repo.GetRegistration(ctx, "MISSING")
	assert.ErrorIs(t, err, usecase.ErrRegistrationNotFound)
}

func TestCSVRegistrationRepository_ListUnmatched(t *testing.T) {
	repo := NewCSVRegistrationRepository(createTempCSV(t, [][]string{
		registrationHeader,
		{"REG003", "2024-01-01T14:00:00Z", "30.00", "", "", ""},
		{"REG001", "2024-01-01T12:00:00Z", "10.00", "", "", ""},
		{"REG002", "2024-01-01T13:00:00Z", "20.00", "", "", "sq_pay_2"},
		{"REG004", "2024-01-01T15:00:00Z", "40.00", "", "", ""},
	}))
	ctx := context.Background()

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "no limit", limit: 0, want: []string{"REG001", "REG003", "REG004"}},
		{name: "limited", limit: 2, want: []string{"REG001", "REG003"}},
		{name: "limit above count", limit: 10, want: []string{"REG001", "REG003", "REG004"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListUnmatched(ctx, tt.limit)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

// Helper functions

func createTempCSV(t testing.TB, data [][]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "registrations.csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	writer := csv.NewWriter(file)
	require.NoError(t, writer.WriteAll(data))
	return path
}

func mustParseTime(timeStr string) time.Time {
	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		panic(err)
	}
	return t
}

func BenchmarkReadRegistrations(b *testing.B) {
	data := [][]string{registrationHeader}
	for i := 0; i < 1000; i++ {
		data = append(data, []string{
			"REG" + string(rune('0'+i%10)),
			"2024-01-01T12:00:00Z",
			"150.00",
			"IND-001",
			`{"email":"a@example.com"}`,
			"",
		})
	}
	repo := NewCSVRegistrationRepository(createTempCSV(b, data))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := repo.ReadRegistrations(ctx); err != nil {
			b.Fatalf("Error in benchmark: %v", err)
		}
	}
}
