package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/enrich"
)

var (
	enrichTenant  string
	enrichSource  string
	enrichTarget  int
	enrichFilters []string
	enrichTimeout time.Duration
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run one enrichment pass and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		target := enrichTarget
		if target == 0 {
			target = cfg.Enrich.TargetDefault
		}
		timeout := enrichTimeout
		if timeout == 0 {
			timeout = time.Duration(cfg.Enrich.TimeoutMinutes) * time.Minute
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		result, err := env.Orchestrator.Run(ctx, enrich.Request{
			TenantID: enrichTenant,
			Source:   enrichSource,
			Filters:  parseFilters(enrichFilters),
			Target:   target,
		})
		if err != nil {
			return err
		}

		zap.L().Info("enrichment finished",
			zap.String("outcome", string(result.Outcome)),
			zap.Int("records", len(result.Records)),
			zap.Int("attempts", result.Attempts),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichTenant, "tenant", "", "tenant ID for policy filtering and persistence")
	enrichCmd.Flags().StringVar(&enrichSource, "source", "scraper", "source adapter name")
	enrichCmd.Flags().IntVar(&enrichTarget, "target", 0, "target record count (default from config)")
	enrichCmd.Flags().StringSliceVar(&enrichFilters, "filter", nil, "source filter as key=value, repeatable")
	enrichCmd.Flags().DurationVar(&enrichTimeout, "timeout", 0, "overall run deadline (default from config)")
	rootCmd.AddCommand(enrichCmd)
}

func parseFilters(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if k, v, ok := strings.Cut(pair, "="); ok && k != "" {
			filters[k] = v
		}
	}
	return filters
}
