package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"payment-matcher/internal/domain"
)

func matchCmd(cfgPath *string) *cobra.Command {
	var (
		ids       []string
		unmatched bool
		limit     int
		csvPath   string
		save      bool
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match registrations and print a JSON batch report",
		Long: `Match registrations against provider payments.

Examples:
  matcher match --ids REG001,REG002
  matcher match --unmatched --limit 100 --save
  matcher match --unmatched --csv registrations.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 && !unmatched {
				return errors.New("specify --ids or --unmatched")
			}

			a, err := newApp(*cfgPath, csvPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			uc := a.matchingUseCase()

			var report *domain.BatchReport
			if unmatched {
				report, err = uc.MatchUnmatched(ctx, limit, save)
				if report == nil {
					return err
				}
			} else {
				report = uc.MatchBatchByID(ctx, ids)
				if save {
					if a.store == nil {
						err = errors.New("no result store configured")
					} else if saveErr := a.store.SaveResults(ctx, report.RunID, report.Results); saveErr != nil {
						err = fmt.Errorf("could not save results for run %s: %w", report.RunID, saveErr)
					}
				}
			}

			if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
				return werr
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&ids, "ids", nil, "registration IDs to match")
	cmd.Flags().BoolVar(&unmatched, "unmatched", false, "match registrations without a payment reference")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum unmatched registrations (0 = all)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "read registrations from a CSV file instead of the configured store")
	cmd.Flags().BoolVar(&save, "save", false, "persist results to the SQLite store")

	return cmd
}
