package domain

import "time"

// Confidence buckets a match score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// MatchState is the lifecycle state of one registration during a run.
type MatchState string

const (
	StatePending    MatchState = "pending"
	StateSearching  MatchState = "searching"
	StateScored     MatchState = "scored"
	StateClassified MatchState = "classified"
	StateError      MatchState = "error"
)

// ScoreBreakdown holds the per-signal contributions to a score.
type ScoreBreakdown struct {
	Time   float64 `json:"time"`
	Amount float64 `json:"amount"`
	Email  float64 `json:"email"`
	Name   float64 `json:"name"`
}

// Sum adds the components.
func (b ScoreBreakdown) Sum() float64 {
	return b.Time + b.Amount + b.Email + b.Name
}

// MatchScore is the result of scoring one registration/candidate pair.
type MatchScore struct {
	Total     float64        `json:"totalScore"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Reasons   []string       `json:"reasons"`
}

// MatchingResult is the per-registration outcome of a matching run.
type MatchingResult struct {
	RegistrationID   string     `json:"registrationId"`
	MatchedPaymentID *string    `json:"matchedPaymentId"`
	MatchScore       float64    `json:"matchScore"`
	Confidence       Confidence `json:"confidence"`
	Reasons          []string   `json:"reasons"`
	CandidatesFound  int        `json:"candidatesFound"`
	ProcessingTimeMs int64      `json:"processingTimeMs"`
	Error            string     `json:"error,omitempty"`
	State            MatchState `json:"state"`
}

// BatchStatistics aggregates a batch of matching results.
type BatchStatistics struct {
	TotalProcessed          int     `json:"totalProcessed"`
	HighConfidenceMatches   int     `json:"highConfidenceMatches"`
	MediumConfidenceMatches int     `json:"mediumConfidenceMatches"`
	LowConfidenceMatches    int     `json:"lowConfidenceMatches"`
	NoMatches               int     `json:"noMatches"`
	Errors                  int     `json:"errors"`
	TotalProcessingTimeMs   int64   `json:"totalProcessingTimeMs"`
	AverageProcessingTimeMs float64 `json:"averageProcessingTimeMs"`
	TotalCandidatesFound    int     `json:"totalCandidatesFound"`
}

// Add folds one result into the statistics.
func (s *BatchStatistics) Add(r MatchingResult) {
	s.TotalProcessed++
	s.TotalProcessingTimeMs += r.ProcessingTimeMs
	s.TotalCandidatesFound += r.CandidatesFound
	if r.Error != "" {
		s.Errors++
	}
	switch r.Confidence {
	case ConfidenceHigh:
		s.HighConfidenceMatches++
	case ConfidenceMedium:
		s.MediumConfidenceMatches++
	case ConfidenceLow:
		s.LowConfidenceMatches++
	default:
		s.NoMatches++
	}
	s.AverageProcessingTimeMs = float64(s.TotalProcessingTimeMs) / float64(s.TotalProcessed)
}

// RecommendedActions groups registration IDs by what should happen next.
type RecommendedActions struct {
	AutoProcess  []string `json:"autoProcess"`
	ManualReview []string `json:"manualReview"`
	Investigate  []string `json:"investigate"`
	Unmatched    []string `json:"unmatched"`
}

// BatchReport is the top-level structure for a batch run's JSON output.
type BatchReport struct {
	RunID      string             `json:"runId"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Results    []MatchingResult   `json:"results"`
	Statistics BatchStatistics    `json:"statistics"`
	Actions    RecommendedActions `json:"actions"`
}

// Finalize recomputes statistics and action groups from Results.
func (r *BatchReport) Finalize() {
	r.Statistics = BatchStatistics{}
	r.Actions = RecommendedActions{
		AutoProcess:  make([]string, 0),
		ManualReview: make([]string, 0),
		Investigate:  make([]string, 0),
		Unmatched:    make([]string, 0),
	}
	for _, res := range r.Results {
		r.Statistics.Add(res)
		switch {
		case res.Error != "":
			r.Actions.Investigate = append(r.Actions.Investigate, res.RegistrationID)
		case res.Confidence == ConfidenceHigh:
			r.Actions.AutoProcess = append(r.Actions.AutoProcess, res.RegistrationID)
		case res.Confidence == ConfidenceMedium:
			r.Actions.ManualReview = append(r.Actions.ManualReview, res.RegistrationID)
		case res.Confidence == ConfidenceLow:
			r.Actions.Investigate = append(r.Actions.Investigate, res.RegistrationID)
		default:
			r.Actions.Unmatched = append(r.Actions.Unmatched, res.RegistrationID)
		}
	}
}
