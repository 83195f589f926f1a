package gateway

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payment-matcher/internal/domain"
	"payment-matcher/internal/usecase"
)

// registrationCSVColumns is the expected column order of a registrations export.
var registrationCSVColumns = []string{
	"id", "created_at", "amount_paid", "confirmation_number", "registration_data", "external_payment_ref",
}

// CSVRegistrationRepository implements usecase.RegistrationRepository for a
// registrations CSV export. The file is read on every call.
type CSVRegistrationRepository struct {
	path string
}

// NewCSVRegistrationRepository creates a new repository instance for path.
func NewCSVRegistrationRepository(path string) *CSVRegistrationRepository {
	return &CSVRegistrationRepository{path: path}
}

// ReadRegistrations reads and parses every registration in the file.
func (r *CSVRegistrationRepository) ReadRegistrations(ctx context.Context) ([]domain.RegistrationRecord, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registrations file %s: %w", r.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header from %s: %w", r.path, err)
	}
	for i, col := range header {
		if i < len(registrationCSVColumns) && !strings.EqualFold(strings.TrimSpace(col), registrationCSVColumns[i]) {
			return nil, fmt.Errorf("unexpected column %d in %s: got '%s', want '%s'", i+1, r.path, col, registrationCSVColumns[i])
		}
	}

	var registrations []domain.RegistrationRecord
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record from %s: %w", r.path, err)
		}

		reg, err := parseRegistrationRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", r.path, line, err)
		}
		registrations = append(registrations, reg)
	}
	return registrations, nil
}

func parseRegistrationRecord(record []string) (domain.RegistrationRecord, error) {
	if len(record) < 2 {
		return domain.RegistrationRecord{}, fmt.Errorf("expected at least 2 columns, got %d", len(record))
	}
	field := func(i int) string {
		if i < len(record) {
			return record[i]
		}
		return ""
	}

	createdAt, err := time.Parse(time.RFC3339, field(1))
	if err != nil {
		return domain.RegistrationRecord{}, fmt.Errorf("could not parse created_at '%s': %w", field(1), err)
	}

	reg := domain.RegistrationRecord{
		ID:                 field(0),
		CreatedAt:          createdAt,
		ConfirmationNumber: field(3),
	}

	if s := field(2); s != "" {
		amount, err := decimal.NewFromString(s)
		if err != nil {
			return domain.RegistrationRecord{}, fmt.Errorf("could not parse amount_paid '%s': %w", s, err)
		}
		reg.AmountPaid = &amount
	}

	if s := field(4); s != "" {
		if err := json.Unmarshal([]byte(s), &reg.Data); err != nil {
			return domain.RegistrationRecord{}, fmt.Errorf("could not decode registration_data for %s: %w", reg.ID, err)
		}
	}

	if s := field(5); s != "" {
		reg.ExternalPaymentRef = &s
	}
	return reg, nil
}

// GetRegistration returns the registration with id or usecase.ErrRegistrationNotFound.
func (r *CSVRegistrationRepository) GetRegistration(ctx context.Context, id string) (domain.RegistrationRecord, error) {
	regs, err := r.ReadRegistrations(ctx)
	if err != nil {
		return domain.RegistrationRecord{}, err
	}
	for _, reg := range regs {
		if reg.ID == id {
			return reg, nil
		}
	}
	return domain.RegistrationRecord{}, fmt.Errorf("%w: %s", usecase.ErrRegistrationNotFound, id)
}

// ListUnmatched returns registrations without a payment reference, oldest
// first. limit <= 0 means no limit.
func (r *CSVRegistrationRepository) ListUnmatched(ctx context.Context, limit int) ([]domain.RegistrationRecord, error) {
	regs, err := r.ReadRegistrations(ctx)
	if err != nil {
		return nil, err
	}

	unmatched := make([]domain.RegistrationRecord, 0, len(regs))
	for _, reg := range regs {
		if !reg.IsMatched() {
			unmatched = append(unmatched, reg)
		}
	}
	sort.SliceStable(unmatched, func(i, j int) bool {
		return unmatched[i].CreatedAt.Before(unmatched[j].CreatedAt)
	})
	if limit > 0 && len(unmatched) > limit {
		unmatched = unmatched[:limit]
	}
	return unmatched, nil
}
