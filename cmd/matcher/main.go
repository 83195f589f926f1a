package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payment-matcher/internal/config"
	"payment-matcher/internal/domain"
	"payment-matcher/internal/gateway"
	"payment-matcher/internal/logger"
	"payment-matcher/internal/usecase"
)

var Version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "matcher",
		Short:         "Match registrations to Square/Stripe payments",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./matcher.yaml)")

	rootCmd.AddCommand(matchCmd(&cfgPath))
	rootCmd.AddCommand(scoreCmd(&cfgPath))
	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(importCmd(&cfgPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	repo  usecase.RegistrationRepository
	store *gateway.SQLiteStore
}

// loadApp loads configuration and builds the logger without touching any
// store. Commands that work offline stop here.
func loadApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log}, nil
}

// newApp loads configuration and opens the registration store. csvPath, when
// set, replaces the configured store with a CSV file.
func newApp(cfgPath, csvPath string) (*app, error) {
	a, err := loadApp(cfgPath)
	if err != nil {
		return nil, err
	}
	if csvPath != "" {
		a.cfg.Store.Driver = "csv"
		a.cfg.Store.Path = csvPath
	}

	switch a.cfg.Store.Driver {
	case "csv":
		a.repo = gateway.NewCSVRegistrationRepository(a.cfg.Store.Path)
	default:
		store, err := gateway.NewSQLiteStore(a.cfg.Store.Path)
		if err != nil {
			a.log.Sync()
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.repo = store
		a.store = store
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.log.Sync()
}

func (a *app) provider() usecase.PaymentProvider {
	client := &http.Client{Timeout: a.cfg.HTTP.ClientTimeout}
	if domain.ProviderName(a.cfg.Provider) == domain.ProviderStripe {
		return gateway.NewStripeProvider(a.cfg.Stripe, client, a.log)
	}
	return gateway.NewSquareProvider(a.cfg.Square, client, a.log)
}

func (a *app) scorer() *usecase.Scorer {
	return usecase.NewScorer(a.cfg.Scoring, a.cfg.Similarity)
}

func (a *app) matchingUseCase() *usecase.MatchingUseCase {
	var store usecase.ResultStore
	if a.store != nil {
		store = a.store
	}
	return usecase.NewMatchingUseCase(a.provider(), a.repo, store, a.scorer(), a.cfg.MatchingConfig(), a.log)
}

func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate JSON report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
