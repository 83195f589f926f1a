package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"payment-matcher/internal/domain"
	"payment-matcher/internal/usecase"
)

// sqliteTimeFormat is fixed-width so stored timestamps sort lexically.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps registrations and match results in SQLite. It implements
// usecase.RegistrationRepository and usecase.ResultStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn. Use ":memory:" for
// a throwaway store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", dsn, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dsn, err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS registrations (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			amount_paid TEXT,
			confirmation_number TEXT,
			registration_data TEXT,
			external_payment_ref TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_registrations_created_at ON registrations(created_at);

		CREATE TABLE IF NOT EXISTS match_results (
			run_id TEXT NOT NULL,
			registration_id TEXT NOT NULL,
			matched_payment_id TEXT,
			match_score REAL NOT NULL,
			confidence TEXT NOT NULL,
			reasons TEXT NOT NULL,
			candidates_found INTEGER NOT NULL,
			processing_time_ms INTEGER NOT NULL,
			error TEXT,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (run_id, registration_id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveRegistrations inserts or replaces registrations.
func (s *SQLiteStore) SaveRegistrations(ctx context.Context, regs []domain.RegistrationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO registrations
			(id, created_at, amount_paid, confirmation_number, registration_data, external_payment_ref)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range regs {
		var amount sql.NullString
		if r.AmountPaid != nil {
			amount = sql.NullString{String: r.AmountPaid.String(), Valid: true}
		}
		var data sql.NullString
		if r.Data != nil {
			b, err := json.Marshal(r.Data)
			if err != nil {
				return fmt.Errorf("could not encode data for registration %s: %w", r.ID, err)
			}
			data = sql.NullString{String: string(b), Valid: true}
		}
		var ref sql.NullString
		if r.ExternalPaymentRef != nil {
			ref = sql.NullString{String: *r.ExternalPaymentRef, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, r.ID, r.CreatedAt.UTC().Format(sqliteTimeFormat), amount,
			r.ConfirmationNumber, data, ref); err != nil {
			return fmt.Errorf("failed to save registration %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

const registrationColumns = `id, created_at, amount_paid, confirmation_number, registration_data, external_payment_ref`

// GetRegistration returns one registration or usecase.ErrRegistrationNotFound.
func (s *SQLiteStore) GetRegistration(ctx context.Context, id string) (domain.RegistrationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RegistrationRecord{}, fmt.Errorf("%w: %s", usecase.ErrRegistrationNotFound, id)
	}
	if err != nil {
		return domain.RegistrationRecord{}, err
	}
	return reg, nil
}

// ListUnmatched returns registrations without a payment reference, oldest
// first. limit <= 0 means no limit.
func (s *SQLiteStore) ListUnmatched(ctx context.Context, limit int) ([]domain.RegistrationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+registrationColumns+` FROM registrations
		WHERE external_payment_ref IS NULL OR external_payment_ref = ''
		ORDER BY created_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]domain.RegistrationRecord, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (domain.RegistrationRecord, error) {
	var (
		reg                         domain.RegistrationRecord
		createdAt                   string
		amount, confirm, data, xref sql.NullString
	)
	if err := row.Scan(&reg.ID, &createdAt, &amount, &confirm, &data, &xref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reg, err
		}
		return reg, fmt.Errorf("failed to scan registration: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return reg, fmt.Errorf("registration %s: could not parse created_at '%s': %w", reg.ID, createdAt, err)
	}
	reg.CreatedAt = t
	reg.ConfirmationNumber = confirm.String

	if amount.Valid && amount.String != "" {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return reg, fmt.Errorf("registration %s: could not parse amount_paid '%s': %w", reg.ID, amount.String, err)
		}
		reg.AmountPaid = &d
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &reg.Data); err != nil {
			return reg, fmt.Errorf("registration %s: could not decode registration_data: %w", reg.ID, err)
		}
	}
	if xref.Valid {
		ref := xref.String
		reg.ExternalPaymentRef = &ref
	}
	return reg, nil
}

// SaveResults writes the results of one run.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, results []domain.MatchingResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO match_results
			(run_id, registration_id, matched_payment_id, match_score, confidence, reasons,
			 candidates_found, processing_time_ms, error, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(sqliteTimeFormat)
	for _, r := range results {
		reasons, err := json.Marshal(r.Reasons)
		if err != nil {
			return fmt.Errorf("could not encode reasons for %s: %w", r.RegistrationID, err)
		}
		var paymentID sql.NullString
		if r.MatchedPaymentID != nil {
			paymentID = sql.NullString{String: *r.MatchedPaymentID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, r.RegistrationID, paymentID, r.MatchScore, string(r.Confidence),
			string(reasons), r.CandidatesFound, r.ProcessingTimeMs, r.Error, string(r.State), now); err != nil {
			return fmt.Errorf("failed to save result for %s: %w", r.RegistrationID, err)
		}
	}
	return tx.Commit()
}

// ListResults returns the stored results of one run in registration order.
func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]domain.MatchingResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT registration_id, matched_payment_id, match_score, confidence, reasons,
		       candidates_found, processing_time_ms, error, state
		FROM match_results WHERE run_id = ? ORDER BY registration_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for run %s: %w", runID, err)
	}
	defer rows.Close()

	results := make([]domain.MatchingResult, 0)
	for rows.Next() {
		var (
			r         domain.MatchingResult
			paymentID sql.NullString
			reasons   string
			errMsg    sql.NullString
		)
		if err := rows.Scan(&r.RegistrationID, &paymentID, &r.MatchScore, &r.Confidence, &reasons,
			&r.CandidatesFound, &r.ProcessingTimeMs, &errMsg, &r.State); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if paymentID.Valid {
			id := paymentID.String
			r.MatchedPaymentID = &id
		}
		if err := json.Unmarshal([]byte(reasons), &r.Reasons); err != nil {
			return nil, fmt.Errorf("could not decode reasons for %s: %w", r.RegistrationID, err)
		}
		r.Error = errMsg.String
		results = append(results, r)
	}
	return results, rows.Err()
}
