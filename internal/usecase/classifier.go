package usecase

import (
	"fmt"

	"payment-matcher/internal/domain"
)

// Classifier maps a total score to a confidence bucket.
type Classifier struct {
	High   float64 `mapstructure:"high" json:"high"`
	Medium float64 `mapstructure:"medium" json:"medium"`
	Low    float64 `mapstructure:"low" json:"low"`
}

// DefaultClassifier returns thresholds 70 / 50 / 30.
func DefaultClassifier() Classifier {
	return Classifier{High: 70, Medium: 50, Low: 30}
}

// Validate checks that thresholds are ordered High >= Medium >= Low >= 0.
func (c Classifier) Validate() error {
	if c.Low < 0 || c.Medium < c.Low || c.High < c.Medium {
		return fmt.Errorf("confidence thresholds must satisfy high >= medium >= low >= 0, got %.2f/%.2f/%.2f",
			c.High, c.Medium, c.Low)
	}
	return nil
}

// Classify buckets score.
func (c Classifier) Classify(score float64) domain.Confidence {
	switch {
	case score >= c.High:
		return domain.ConfidenceHigh
	case score >= c.Medium:
		return domain.ConfidenceMedium
	case score >= c.Low:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceNone
	}
}
