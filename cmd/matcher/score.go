package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"payment-matcher/internal/domain"
)

type scoreOutput struct {
	domain.MatchScore
	Confidence domain.Confidence `json:"confidence"`
}

func scoreCmd(cfgPath *string) *cobra.Command {
	var regPath, paymentPath string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one registration against one payment offline",
		Long: `Score a registration JSON file against a normalized payment JSON file
without calling any provider.

Example:
  matcher score --registration reg.json --payment payment.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reg domain.RegistrationRecord
			if err := readJSONFile(regPath, &reg); err != nil {
				return err
			}
			var cand domain.PaymentCandidate
			if err := readJSONFile(paymentPath, &cand); err != nil {
				return err
			}

			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			score := a.scorer().Score(reg, cand)
			return writeJSON(cmd.OutOrStdout(), scoreOutput{
				MatchScore: score,
				Confidence: a.cfg.Confidence.Classify(score.Total),
			})
		},
	}

	cmd.Flags().StringVar(&regPath, "registration", "", "registration JSON file (required)")
	cmd.Flags().StringVar(&paymentPath, "payment", "", "payment JSON file (required)")
	cmd.MarkFlagRequired("registration")
	cmd.MarkFlagRequired("payment")

	return cmd
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
