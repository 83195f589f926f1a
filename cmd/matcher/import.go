package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payment-matcher/internal/gateway"
)

func importCmd(cfgPath *string) *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a registrations CSV export into the SQLite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath, "")
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store == nil {
				return errors.New("import requires store.driver sqlite")
			}

			regs, err := gateway.NewCSVRegistrationRepository(csvPath).ReadRegistrations(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.store.SaveRegistrations(cmd.Context(), regs); err != nil {
				return err
			}

			a.log.Info("registrations imported", zap.String("file", csvPath), zap.Int("count", len(regs)))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d registrations\n", len(regs))
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "registrations CSV file (required)")
	cmd.MarkFlagRequired("csv")

	return cmd
}
