package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/repository"
	"github.com/octobees/leads-generator/enricher/internal/service/scoring"
)

var (
	// ErrNoBusinesses is returned for an empty batch.
	ErrNoBusinesses = errors.New("no businesses provided")
	// ErrPersistenceDisabled is returned when storage was requested without a database.
	ErrPersistenceDisabled = errors.New("persistence is not configured")
)

// Enricher fills contact fields from business websites.
type Enricher interface {
	Enrich(ctx context.Context, records []entity.BusinessRecord) ([]entity.BusinessRecord, error)
	EnrichOne(ctx context.Context, record entity.BusinessRecord) entity.BusinessRecord
}

// Deduplicator collapses records describing the same business.
type Deduplicator interface {
	Dedupe(records []entity.BusinessRecord) []entity.BusinessRecord
}

// EnrichOptions selects the optional stages of a batch run.
type EnrichOptions struct {
	Dedupe  bool
	Persist bool
}

// EnrichResult reports a batch run.
type EnrichResult struct {
	Businesses        []entity.BusinessRecord
	Total             int
	TotalEnriched     int
	DuplicatesRemoved int
	Persisted         *repository.BulkUpsertResult
}

// LeadsService runs dedupe, enrichment and persistence for discovery batches.
type LeadsService struct {
	dedup    Deduplicator
	enricher Enricher
	repo     repository.BusinessesRepository
	logger   *zap.Logger
}

// NewLeadsService wires the service. repo may be nil when no database is configured.
func NewLeadsService(dedup Deduplicator, enricher Enricher, repo repository.BusinessesRepository, logger *zap.Logger) *LeadsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadsService{dedup: dedup, enricher: enricher, repo: repo, logger: logger}
}

// PersistenceEnabled reports whether a repository is configured.
func (s *LeadsService) PersistenceEnabled() bool {
	return s.repo != nil
}

// Enrich optionally dedupes the batch, enriches every record and optionally
// stores the result. Businesses are returned in input order, also alongside an
// enrichment error; nothing is persisted in that case.
func (s *LeadsService) Enrich(ctx context.Context, records []entity.BusinessRecord, opts EnrichOptions) (EnrichResult, error) {
	if len(records) == 0 {
		return EnrichResult{}, ErrNoBusinesses
	}
	if opts.Persist && s.repo == nil {
		return EnrichResult{}, ErrPersistenceDisabled
	}

	input := records
	var result EnrichResult
	if opts.Dedupe {
		input, result.DuplicatesRemoved = s.Dedupe(records)
	}

	enriched, err := s.enricher.Enrich(ctx, input)
	if len(enriched) == len(input) {
		result.Businesses = enriched
		result.Total = len(enriched)
		for i := range enriched {
			if enriched[i].Contacts() != input[i].Contacts() {
				result.TotalEnriched++
			}
		}
	}
	if err != nil {
		// Interrupted batches still carry every record, enriched or not.
		return result, fmt.Errorf("enrich batch: %w", err)
	}

	if opts.Persist {
		upserts := make([]repository.BusinessUpsert, 0, len(enriched))
		for _, rec := range enriched {
			score := scoring.Score(rec)
			upserts = append(upserts, repository.BusinessUpsert{Record: rec, Score: score.Total, ScoreBreakdown: score.Breakdown})
		}
		persisted, err := s.repo.BulkUpsert(ctx, upserts)
		if err != nil {
			return result, fmt.Errorf("persist businesses: %w", err)
		}
		result.Persisted = &persisted
	}

	s.logger.Info("batch enriched",
		zap.Int("received", len(records)),
		zap.Int("total", result.Total),
		zap.Int("enriched", result.TotalEnriched),
		zap.Int("duplicates_removed", result.DuplicatesRemoved),
		zap.Bool("persisted", result.Persisted != nil))

	return result, nil
}

// EnrichOne enriches a single business synchronously.
func (s *LeadsService) EnrichOne(ctx context.Context, record entity.BusinessRecord) entity.BusinessRecord {
	return s.enricher.EnrichOne(ctx, record)
}

// Dedupe collapses duplicates, returning survivors in first-seen order and the
// number removed.
func (s *LeadsService) Dedupe(records []entity.BusinessRecord) ([]entity.BusinessRecord, int) {
	if s.dedup == nil {
		return records, 0
	}
	kept := s.dedup.Dedupe(records)
	return kept, len(records) - len(kept)
}

// List returns stored leads respecting pagination defaults.
func (s *LeadsService) List(ctx context.Context, filter dto.ListFilter) ([]entity.Lead, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	return s.repo.List(ctx, filter)
}
