package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payment-matcher/internal/domain"
)

// DefaultBatchDelay is the pause between registrations in a batch.
const DefaultBatchDelay = time.Second

// MatchingConfig controls retrieval, pacing and classification.
type MatchingConfig struct {
	Search     domain.SearchParams
	BatchDelay time.Duration
	Classifier Classifier
}

// DefaultMatchingConfig returns the default matching configuration.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		Search:     DefaultSearchParams(),
		BatchDelay: DefaultBatchDelay,
		Classifier: DefaultClassifier(),
	}
}

// MatchingUseCase orchestrates matching registrations to provider payments.
// Registrations are processed one at a time, and concurrent callers are
// serialized, so the provider never sees overlapping requests.
type MatchingUseCase struct {
	mu sync.Mutex

	searcher *CandidateSearcher
	scorer   *Scorer
	repo     RegistrationRepository
	store    ResultStore
	cfg      MatchingConfig
	log      *zap.Logger
	sleep    sleepFunc
	newRunID func() string
}

// NewMatchingUseCase creates a new instance of the usecase. store may be nil
// when results are not persisted.
func NewMatchingUseCase(
	provider PaymentProvider,
	repo RegistrationRepository,
	store ResultStore,
	scorer *Scorer,
	cfg MatchingConfig,
	log *zap.Logger,
) *MatchingUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &MatchingUseCase{
		searcher: NewCandidateSearcher(provider, log),
		scorer:   scorer,
		repo:     repo,
		store:    store,
		cfg:      cfg,
		log:      log,
		sleep:    sleepContext,
		newRunID: uuid.NewString,
	}
}

// MatchRegistration finds the best-scoring payment for one registration.
// Retrieval errors and empty searches short-circuit to confidence none.
func (uc *MatchingUseCase) MatchRegistration(ctx context.Context, reg domain.RegistrationRecord) domain.MatchingResult {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.matchRegistration(ctx, reg, time.Now())
}

// matchRegistration does the work of MatchRegistration; start is when
// processing of the registration began. Callers hold uc.mu.
func (uc *MatchingUseCase) matchRegistration(ctx context.Context, reg domain.RegistrationRecord, start time.Time) (result domain.MatchingResult) {
	result = domain.MatchingResult{
		RegistrationID: reg.ID,
		Confidence:     domain.ConfidenceNone,
		Reasons:        make([]string, 0),
		State:          domain.StatePending,
	}
	defer func() {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
	}()

	result.State = domain.StateSearching
	search := uc.searcher.Search(ctx, reg.CreatedAt, uc.cfg.Search)
	result.CandidatesFound = len(search.Candidates)

	if search.Error != "" {
		result.Error = search.Error
		result.State = domain.StateError
		return result
	}
	if len(search.Candidates) == 0 {
		result.Reasons = append(result.Reasons, fmt.Sprintf("No payments found between %s and %s",
			search.WindowStart.Format(time.RFC3339), search.WindowEnd.Format(time.RFC3339)))
		result.State = domain.StateClassified
		return result
	}

	var (
		best      domain.MatchScore
		bestIndex = -1
	)
	for i, cand := range search.Candidates {
		score := uc.scorer.Score(reg, cand)
		// Equal scores go to the earliest payment, whatever order the provider lists in.
		if bestIndex < 0 || score.Total > best.Total ||
			(score.Total == best.Total && cand.CreatedAt.Before(search.Candidates[bestIndex].CreatedAt)) {
			best, bestIndex = score, i
		}
	}
	result.State = domain.StateScored

	result.MatchScore = best.Total
	result.Reasons = append(result.Reasons, best.Reasons...)
	if search.HasMoreResults {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Search stopped after %d pages; more payments may exist", search.PagesFetched))
	}
	result.Confidence = uc.cfg.Classifier.Classify(best.Total)
	if result.Confidence != domain.ConfidenceNone {
		id := search.Candidates[bestIndex].ID
		result.MatchedPaymentID = &id
	}
	result.State = domain.StateClassified
	return result
}

// MatchByID loads a registration from the repository and matches it. Lookup
// failures are recorded on the result.
func (uc *MatchingUseCase) MatchByID(ctx context.Context, id string) domain.MatchingResult {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.matchByID(ctx, id)
}

// matchByID counts the registration lookup in ProcessingTimeMs. Callers hold uc.mu.
func (uc *MatchingUseCase) matchByID(ctx context.Context, id string) domain.MatchingResult {
	start := time.Now()
	reg, err := uc.repo.GetRegistration(ctx, id)
	if err != nil {
		return domain.MatchingResult{
			RegistrationID:   id,
			Confidence:       domain.ConfidenceNone,
			Reasons:          make([]string, 0),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Error:            fmt.Sprintf("registration lookup failed: %v", err),
			State:            domain.StateError,
		}
	}
	return uc.matchRegistration(ctx, reg, start)
}

// MatchBatch matches registrations sequentially, pausing between them. The
// report always holds exactly one result per input.
func (uc *MatchingUseCase) MatchBatch(ctx context.Context, regs []domain.RegistrationRecord) *domain.BatchReport {
	return uc.runBatch(ctx, len(regs),
		func(i int) string { return regs[i].ID },
		func(ctx context.Context, i int) domain.MatchingResult { return uc.matchRegistration(ctx, regs[i], time.Now()) })
}

// MatchBatchByID is MatchBatch for registrations that still need loading.
func (uc *MatchingUseCase) MatchBatchByID(ctx context.Context, ids []string) *domain.BatchReport {
	return uc.runBatch(ctx, len(ids),
		func(i int) string { return ids[i] },
		func(ctx context.Context, i int) domain.MatchingResult { return uc.matchByID(ctx, ids[i]) })
}

// MatchUnmatched matches up to limit registrations that have no payment
// reference yet. When save is set the results are written to the result store.
func (uc *MatchingUseCase) MatchUnmatched(ctx context.Context, limit int, save bool) (*domain.BatchReport, error) {
	regs, err := uc.repo.ListUnmatched(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list unmatched registrations: %w", err)
	}

	report := uc.MatchBatch(ctx, regs)
	if !save {
		return report, nil
	}
	if uc.store == nil {
		return report, errors.New("no result store configured")
	}
	if err := uc.store.SaveResults(ctx, report.RunID, report.Results); err != nil {
		return report, fmt.Errorf("could not save results for run %s: %w", report.RunID, err)
	}
	return report, nil
}

func (uc *MatchingUseCase) runBatch(
	ctx context.Context,
	n int,
	idAt func(int) string,
	match func(context.Context, int) domain.MatchingResult,
) *domain.BatchReport {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	report := &domain.BatchReport{
		RunID:     uc.newRunID(),
		StartedAt: time.Now().UTC(),
		Results:   make([]domain.MatchingResult, 0, n),
	}
	log := uc.log.With(zap.String("run_id", report.RunID))
	log.Info("batch started", zap.Int("registrations", n))

	var cancelErr error
	for i := 0; i < n; i++ {
		if i > 0 && cancelErr == nil {
			cancelErr = uc.sleep(ctx, uc.cfg.BatchDelay)
		}
		if cancelErr != nil {
			report.Results = append(report.Results, domain.MatchingResult{
				RegistrationID: idAt(i),
				Confidence:     domain.ConfidenceNone,
				Reasons:        make([]string, 0),
				Error:          fmt.Sprintf("batch cancelled: %v", cancelErr),
				State:          domain.StateError,
			})
			continue
		}

		res := match(ctx, i)
		if res.Error != "" {
			log.Warn("registration failed",
				zap.String("registration_id", res.RegistrationID),
				zap.String("error", res.Error))
		} else {
			log.Debug("registration matched",
				zap.String("registration_id", res.RegistrationID),
				zap.String("confidence", string(res.Confidence)),
				zap.Float64("score", res.MatchScore),
				zap.Int("candidates", res.CandidatesFound))
		}
		report.Results = append(report.Results, res)
	}

	report.FinishedAt = time.Now().UTC()
	report.Finalize()

	st := report.Statistics
	log.Info("batch finished",
		zap.Int("processed", st.TotalProcessed),
		zap.Int("high", st.HighConfidenceMatches),
		zap.Int("medium", st.MediumConfidenceMatches),
		zap.Int("low", st.LowConfidenceMatches),
		zap.Int("none", st.NoMatches),
		zap.Int("errors", st.Errors))
	return report
}
