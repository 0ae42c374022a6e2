package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/enricher/internal/client"
	"github.com/octobees/leads-generator/enricher/internal/config"
	"github.com/octobees/leads-generator/enricher/internal/dedupe"
	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/enrich"
	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/extractor"
	"github.com/octobees/leads-generator/enricher/internal/fetcher"
	"github.com/octobees/leads-generator/enricher/internal/logger"
	"github.com/octobees/leads-generator/enricher/internal/rules"
	"github.com/octobees/leads-generator/enricher/internal/service"
	"github.com/octobees/leads-generator/enricher/internal/validator"
)

func newEnrichCommand() *cobra.Command {
	var (
		file    string
		out     string
		dedup   bool
		persist bool
		local   bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich a JSON array of businesses",
		Long: `Reads a JSON array of business records and fills email and social
profile fields from each business website.

Example:
  enrichctl enrich --file places.json --dedupe --out enriched.json
  enrichctl enrich --file places.json --local`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			var resp dto.EnrichResponse
			if local {
				if persist {
					return fmt.Errorf("--persist requires the API")
				}
				resp, err = enrichLocally(cmd, records, dedup)
			} else {
				var c *client.Client
				c, err = newClient(cmd.Context())
				if err != nil {
					return err
				}
				resp, err = c.Enrich(cmd.Context(), dto.EnrichRequest{Businesses: records, Dedupe: dedup, Persist: persist})
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d businesses, %d enriched, %d duplicates removed\n",
				resp.Total, resp.TotalEnriched, resp.DuplicatesRemoved)
			return writeRecords(out, cmd.OutOrStdout(), resp.Businesses)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "input JSON file, - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output JSON file, - for stdout")
	cmd.Flags().BoolVar(&dedup, "dedupe", false, "collapse duplicates before enriching")
	cmd.Flags().BoolVar(&persist, "persist", false, "store results in the service database")
	cmd.Flags().BoolVar(&local, "local", false, "run the pipeline in-process instead of calling the API")
	return cmd
}

func newDedupeCommand() *cobra.Command {
	var file, out string

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Collapse duplicate businesses in a JSON file without enriching",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			d, err := dedupe.New(cfg.Dedupe)
			if err != nil {
				return err
			}
			kept := d.Dedupe(records)
			fmt.Fprintf(cmd.ErrOrStderr(), "%d businesses, %d duplicates removed\n", len(kept), len(records)-len(kept))
			return writeRecords(out, cmd.OutOrStdout(), kept)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "input JSON file, - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output JSON file, - for stdout")
	return cmd
}

func enrichLocally(cmd *cobra.Command, records []entity.BusinessRecord, dedup bool) (dto.EnrichResponse, error) {
	cfg, err := config.Load()
	if err != nil {
		return dto.EnrichResponse{}, err
	}
	lg, err := logger.New(cfg.LogLevel, "enrichctl")
	if err != nil {
		return dto.EnrichResponse{}, err
	}
	defer func() { _ = lg.Sync() }()

	ruleSet, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return dto.EnrichResponse{}, err
	}
	v := validator.New(ruleSet, validator.WithDefaultRegion(cfg.DefaultRegion), validator.WithMXCheck(cfg.ValidateEmailMX))
	x := extractor.New(ruleSet, extractor.WithURLFilter(v.Accepts))
	f := fetcher.New(cfg.Fetch, fetcher.WithLogger(lg))
	o, err := enrich.New(cfg.Enrich, f, x, v, enrich.WithLogger(lg), enrich.WithFallbackPaths(ruleSet.FallbackPaths))
	if err != nil {
		return dto.EnrichResponse{}, err
	}
	d, err := dedupe.New(cfg.Dedupe, dedupe.WithLogger(lg))
	if err != nil {
		return dto.EnrichResponse{}, err
	}

	result, err := service.NewLeadsService(d, o, nil, lg).Enrich(cmd.Context(), records, service.EnrichOptions{Dedupe: dedup})
	if err != nil {
		return dto.EnrichResponse{}, err
	}
	lg.Debug("local enrichment finished", zap.Int("total", result.Total))
	return dto.EnrichResponse{
		Businesses:        result.Businesses,
		Total:             result.Total,
		TotalEnriched:     result.TotalEnriched,
		DuplicatesRemoved: result.DuplicatesRemoved,
	}, nil
}

func readRecords(path string, stdin io.Reader) ([]entity.BusinessRecord, error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var records []entity.BusinessRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode businesses: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("input contains no businesses")
	}
	return records, nil
}

func writeRecords(path string, stdout io.Writer, records []entity.BusinessRecord) error {
	w := stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
