package usecase

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"payment-matcher/internal/domain"
	"payment-matcher/internal/similarity"
)

// ScoringConfig holds the caps and breakpoints of each scoring signal.
// Every component is bounded by its cap; the total is their sum.
type ScoringConfig struct {
	TimeCap            float64 `mapstructure:"time_cap" json:"timeCap"`
	TimeDecayPerMinute float64 `mapstructure:"time_decay_per_minute" json:"timeDecayPerMinute"`

	AmountCap           float64 `mapstructure:"amount_cap" json:"amountCap"`
	AmountNearThreshold float64 `mapstructure:"amount_near_threshold" json:"amountNearThreshold"`
	AmountNearScore     float64 `mapstructure:"amount_near_score" json:"amountNearScore"`
	AmountFarThreshold  float64 `mapstructure:"amount_far_threshold" json:"amountFarThreshold"`
	AmountFarMaxScore   float64 `mapstructure:"amount_far_max_score" json:"amountFarMaxScore"`
	AmountFarMinScore   float64 `mapstructure:"amount_far_min_score" json:"amountFarMinScore"`

	EmailCap float64 `mapstructure:"email_cap" json:"emailCap"`
	NameCap  float64 `mapstructure:"name_cap" json:"nameCap"`

	// FuzzyNames replaces substring containment with similarity.Similar.
	FuzzyNames bool `mapstructure:"fuzzy_names" json:"fuzzyNames"`
}

// DefaultScoringConfig returns the reference weighting: 40/30/20/10.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TimeCap:             40,
		TimeDecayPerMinute:  8,
		AmountCap:           30,
		AmountNearThreshold: 0.5,
		AmountNearScore:     25,
		AmountFarThreshold:  2.0,
		AmountFarMaxScore:   20,
		AmountFarMinScore:   10,
		EmailCap:            20,
		NameCap:             10,
	}
}

// MaxScore is the highest total the configuration can produce.
func (c ScoringConfig) MaxScore() float64 {
	return c.TimeCap + c.AmountCap + c.EmailCap + c.NameCap
}

// Validate checks that every component stays bounded.
func (c ScoringConfig) Validate() error {
	for name, v := range map[string]float64{
		"time_cap":              c.TimeCap,
		"time_decay_per_minute": c.TimeDecayPerMinute,
		"amount_cap":            c.AmountCap,
		"amount_near_threshold": c.AmountNearThreshold,
		"amount_near_score":     c.AmountNearScore,
		"amount_far_threshold":  c.AmountFarThreshold,
		"amount_far_max_score":  c.AmountFarMaxScore,
		"amount_far_min_score":  c.AmountFarMinScore,
		"email_cap":             c.EmailCap,
		"name_cap":              c.NameCap,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("scoring: %s must not be negative", name)
		}
	}
	if c.AmountNearScore > c.AmountCap || c.AmountFarMaxScore > c.AmountCap {
		return errors.New("scoring: amount partial scores must not exceed amount_cap")
	}
	if c.AmountFarMinScore > c.AmountFarMaxScore {
		return errors.New("scoring: amount_far_min_score must not exceed amount_far_max_score")
	}
	if c.AmountNearThreshold > c.AmountFarThreshold {
		return errors.New("scoring: amount_near_threshold must not exceed amount_far_threshold")
	}
	if c.MaxScore() > 100 {
		return fmt.Errorf("scoring: caps sum to %.2f, above 100", c.MaxScore())
	}
	return nil
}

// ScorerOption customises a Scorer.
type ScorerOption func(*Scorer)

// WithEmailExtractors replaces the registration email extractors.
func WithEmailExtractors(extractors ...FieldExtractor) ScorerOption {
	return func(s *Scorer) { s.emailExtractors = extractors }
}

// WithFirstNameExtractors replaces the registration first-name extractors.
func WithFirstNameExtractors(extractors ...FieldExtractor) ScorerOption {
	return func(s *Scorer) { s.nameExtractors = extractors }
}

// Scorer computes a MatchScore for a registration/payment pair. It holds no
// mutable state, so identical inputs always give identical scores.
type Scorer struct {
	cfg             ScoringConfig
	sim             similarity.Config
	emailExtractors []FieldExtractor
	nameExtractors  []FieldExtractor
}

// NewScorer creates a scorer. sim is only consulted when cfg.FuzzyNames is set.
func NewScorer(cfg ScoringConfig, sim similarity.Config, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		cfg:             cfg,
		sim:             sim,
		emailExtractors: DefaultEmailExtractors(),
		nameExtractors:  DefaultFirstNameExtractors(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the scoring configuration.
func (s *Scorer) Config() ScoringConfig {
	return s.cfg
}

// Score rates how likely cand paid for reg. Each signal contributes one reason.
func (s *Scorer) Score(reg domain.RegistrationRecord, cand domain.PaymentCandidate) domain.MatchScore {
	reasons := make([]string, 0, 4)
	var b domain.ScoreBreakdown

	var reason string
	b.Time, reason = s.scoreTime(reg, cand)
	reasons = append(reasons, reason)
	b.Amount, reason = s.scoreAmount(reg, cand)
	reasons = append(reasons, reason)
	b.Email, reason = s.scoreEmail(reg, cand)
	reasons = append(reasons, reason)
	b.Name, reason = s.scoreName(reg, cand)
	reasons = append(reasons, reason)

	return domain.MatchScore{
		Total:     round2(b.Sum()),
		Breakdown: b,
		Reasons:   reasons,
	}
}

func (s *Scorer) scoreTime(reg domain.RegistrationRecord, cand domain.PaymentCandidate) (float64, string) {
	minutes := math.Abs(cand.CreatedAt.Sub(reg.CreatedAt).Minutes())
	score := clamp(s.cfg.TimeCap-s.cfg.TimeDecayPerMinute*minutes, s.cfg.TimeCap)
	return score, fmt.Sprintf("Time difference: %.1f minutes (+%.1f points)", minutes, score)
}

func (s *Scorer) scoreAmount(reg domain.RegistrationRecord, cand domain.PaymentCandidate) (float64, string) {
	if reg.AmountPaid == nil {
		return 0, "Registration amount missing; amount not scored"
	}
	diff := reg.AmountPaid.Sub(cand.Amount).Abs()
	d := diff.InexactFloat64()

	switch {
	case diff.Round(2).IsZero():
		return s.cfg.AmountCap, fmt.Sprintf("Exact amount match: %s (+%.0f points)",
			cand.Amount.StringFixed(2), s.cfg.AmountCap)
	case d <= s.cfg.AmountNearThreshold:
		return s.cfg.AmountNearScore, fmt.Sprintf("Amount within %.2f: registration %s vs payment %s (+%.0f points)",
			s.cfg.AmountNearThreshold, reg.AmountPaid.StringFixed(2), cand.Amount.StringFixed(2), s.cfg.AmountNearScore)
	case d <= s.cfg.AmountFarThreshold:
		score := s.cfg.AmountFarMaxScore
		if span := s.cfg.AmountFarThreshold - s.cfg.AmountNearThreshold; span > 0 {
			frac := (d - s.cfg.AmountNearThreshold) / span
			score = s.cfg.AmountFarMaxScore - frac*(s.cfg.AmountFarMaxScore-s.cfg.AmountFarMinScore)
		}
		score = clamp(score, s.cfg.AmountCap)
		return score, fmt.Sprintf("Amount within %.2f: registration %s vs payment %s (+%.1f points)",
			s.cfg.AmountFarThreshold, reg.AmountPaid.StringFixed(2), cand.Amount.StringFixed(2), score)
	default:
		return 0, fmt.Sprintf("Amount mismatch: registration %s vs payment %s (difference %s)",
			reg.AmountPaid.StringFixed(2), cand.Amount.StringFixed(2), diff.StringFixed(2))
	}
}

func (s *Scorer) scoreEmail(reg domain.RegistrationRecord, cand domain.PaymentCandidate) (float64, string) {
	paymentEmail := strings.TrimSpace(cand.CustomerEmail)
	if paymentEmail == "" {
		return 0, "No customer email on payment"
	}
	regEmail := firstNonEmpty(reg, s.emailExtractors)
	if regEmail == "" {
		return 0, "No email found in registration data"
	}
	if strings.EqualFold(regEmail, paymentEmail) {
		return s.cfg.EmailCap, fmt.Sprintf("Email match: %s (+%.0f points)", strings.ToLower(paymentEmail), s.cfg.EmailCap)
	}
	return 0, fmt.Sprintf("Email mismatch: registration %s vs payment %s", regEmail, paymentEmail)
}

func (s *Scorer) scoreName(reg domain.RegistrationRecord, cand domain.PaymentCandidate) (float64, string) {
	paymentName := strings.ToLower(strings.TrimSpace(cand.CustomerName))
	if paymentName == "" {
		return 0, "No customer name on payment"
	}
	firstName := strings.ToLower(firstNonEmpty(reg, s.nameExtractors))
	if firstName == "" {
		return 0, "No attendee first name in registration data"
	}
	firstToken := strings.Fields(paymentName)[0]

	var matched bool
	if s.cfg.FuzzyNames {
		matched = similarity.Similar(s.sim, firstName, firstToken)
	} else {
		matched = strings.Contains(paymentName, firstName) || strings.Contains(firstName, firstToken)
	}
	if matched {
		return s.cfg.NameCap, fmt.Sprintf("Name match: %q ~ %q (+%.0f points)", firstName, paymentName, s.cfg.NameCap)
	}
	return 0, fmt.Sprintf("Name mismatch: %q vs %q", firstName, paymentName)
}

// clamp bounds v to [0, limit].
func clamp(v, limit float64) float64 {
	return math.Max(0, math.Min(v, limit))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
