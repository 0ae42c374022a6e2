package service

import (
	"context"
	"errors"
	"testing"

	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/repository"
)

type stubEnricher struct {
	enrich func(ctx context.Context, records []entity.BusinessRecord) ([]entity.BusinessRecord, error)
	calls  [][]entity.BusinessRecord
}

func (s *stubEnricher) Enrich(ctx context.Context, records []entity.BusinessRecord) ([]entity.BusinessRecord, error) {
	s.calls = append(s.calls, records)
	if s.enrich != nil {
		return s.enrich(ctx, records)
	}
	return records, nil
}

func (s *stubEnricher) EnrichOne(ctx context.Context, record entity.BusinessRecord) entity.BusinessRecord {
	record.Email = "hello@" + record.Name + ".test"
	return record
}

// emailEnricher fills an email for every record with a website.
func emailEnricher(ctx context.Context, records []entity.BusinessRecord) ([]entity.BusinessRecord, error) {
	out := make([]entity.BusinessRecord, len(records))
	for i, rec := range records {
		if rec.Website != "" {
			rec.Email = "info@" + rec.Website
		}
		out[i] = rec
	}
	return out, nil
}

type stubDedup struct{}

// Dedupe drops records whose name was already seen.
func (stubDedup) Dedupe(records []entity.BusinessRecord) []entity.BusinessRecord {
	seen := map[string]bool{}
	var kept []entity.BusinessRecord
	for _, rec := range records {
		if seen[rec.Name] {
			continue
		}
		seen[rec.Name] = true
		kept = append(kept, rec)
	}
	return kept
}

type mockBusinessesRepository struct {
	bulk func(ctx context.Context, records []repository.BusinessUpsert) (repository.BulkUpsertResult, error)
	list func(ctx context.Context, filter dto.ListFilter) ([]entity.Lead, error)
}

func (m *mockBusinessesRepository) BulkUpsert(ctx context.Context, records []repository.BusinessUpsert) (repository.BulkUpsertResult, error) {
	if m.bulk != nil {
		return m.bulk(ctx, records)
	}
	return repository.BulkUpsertResult{}, errors.New("bulk not implemented")
}

func (m *mockBusinessesRepository) List(ctx context.Context, filter dto.ListFilter) ([]entity.Lead, error) {
	if m.list != nil {
		return m.list(ctx, filter)
	}
	return nil, errors.New("list not implemented")
}

func TestLeadsService_Enrich_CountsAndOrder(t *testing.T) {
	enricher := &stubEnricher{enrich: emailEnricher}
	svc := NewLeadsService(stubDedup{}, enricher, nil, nil)

	records := []entity.BusinessRecord{
		{Name: "Acme", Website: "acme.test"},
		{Name: "Bakery"},
		{Name: "Cafe", Website: "cafe.test"},
	}
	result, err := svc.Enrich(context.Background(), records, EnrichOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 || result.TotalEnriched != 2 || result.DuplicatesRemoved != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	for i, rec := range result.Businesses {
		if rec.Name != records[i].Name {
			t.Fatalf("order changed at %d: %s", i, rec.Name)
		}
	}
	if result.Persisted != nil {
		t.Fatalf("expected nothing persisted")
	}
}

func TestLeadsService_Enrich_Dedupe(t *testing.T) {
	enricher := &stubEnricher{}
	svc := NewLeadsService(stubDedup{}, enricher, nil, nil)

	records := []entity.BusinessRecord{{Name: "Acme"}, {Name: "Acme"}, {Name: "Bakery"}}
	result, err := svc.Enrich(context.Background(), records, EnrichOptions{Dedupe: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DuplicatesRemoved != 1 || result.Total != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(enricher.calls) != 1 || len(enricher.calls[0]) != 2 {
		t.Fatalf("expected enricher to receive deduped batch, got %+v", enricher.calls)
	}
}

func TestLeadsService_Enrich_Persist(t *testing.T) {
	var stored []repository.BusinessUpsert
	repo := &mockBusinessesRepository{
		bulk: func(ctx context.Context, records []repository.BusinessUpsert) (repository.BulkUpsertResult, error) {
			stored = records
			return repository.BulkUpsertResult{Inserted: len(records), Total: len(records)}, nil
		},
	}
	svc := NewLeadsService(nil, &stubEnricher{enrich: emailEnricher}, repo, nil)

	result, err := svc.Enrich(context.Background(), []entity.BusinessRecord{{Name: "Acme", Website: "https://acme.co.id"}}, EnrichOptions{Persist: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Persisted == nil || result.Persisted.Inserted != 1 {
		t.Fatalf("expected persisted summary, got %+v", result.Persisted)
	}
	if len(stored) != 1 || stored[0].Record.Email == "" {
		t.Fatalf("expected enriched record stored, got %+v", stored)
	}
	if stored[0].Score <= 0 || len(stored[0].ScoreBreakdown) == 0 {
		t.Fatalf("expected score computed, got %+v", stored[0])
	}
}

func TestLeadsService_Enrich_Errors(t *testing.T) {
	svc := NewLeadsService(nil, &stubEnricher{}, nil, nil)
	if _, err := svc.Enrich(context.Background(), nil, EnrichOptions{}); !errors.Is(err, ErrNoBusinesses) {
		t.Fatalf("expected ErrNoBusinesses, got %v", err)
	}
	if _, err := svc.Enrich(context.Background(), []entity.BusinessRecord{{Name: "Acme"}}, EnrichOptions{Persist: true}); !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}

	failing := NewLeadsService(nil, &stubEnricher{enrich: func(ctx context.Context, records []entity.BusinessRecord) ([]entity.BusinessRecord, error) {
		return records, context.Canceled
	}}, nil, nil)
	if _, err := failing.Enrich(context.Background(), []entity.BusinessRecord{{Name: "Acme"}}, EnrichOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context error, got %v", err)
	}

	repo := &mockBusinessesRepository{}
	storing := NewLeadsService(nil, &stubEnricher{}, repo, nil)
	if _, err := storing.Enrich(context.Background(), []entity.BusinessRecord{{Name: "Acme"}}, EnrichOptions{Persist: true}); err == nil {
		t.Fatalf("expected repository error to surface")
	}
}

func TestLeadsService_Enrich_KeepsRecordsOnCancel(t *testing.T) {
	repo := &mockBusinessesRepository{bulk: func(ctx context.Context, records []repository.BusinessUpsert) (repository.BulkUpsertResult, error) {
		t.Fatalf("cancelled batch must not be persisted")
		return repository.BulkUpsertResult{}, nil
	}}
	svc := NewLeadsService(nil, &stubEnricher{enrich: func(ctx context.Context, records []entity.BusinessRecord) ([]entity.BusinessRecord, error) {
		out, _ := emailEnricher(ctx, records[:1])
		return append(out, records[1:]...), context.Canceled
	}}, repo, nil)

	input := []entity.BusinessRecord{
		{Name: "Acme", Website: "acme.test"},
		{Name: "Globex", Website: "globex.test"},
	}
	result, err := svc.Enrich(context.Background(), input, EnrichOptions{Persist: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context error, got %v", err)
	}
	if len(result.Businesses) != len(input) || result.Total != len(input) {
		t.Fatalf("expected %d businesses, got %d (total %d)", len(input), len(result.Businesses), result.Total)
	}
	if result.Businesses[0].Email != "info@acme.test" || result.Businesses[1].Name != "Globex" {
		t.Fatalf("unexpected businesses: %+v", result.Businesses)
	}
	if result.TotalEnriched != 1 {
		t.Fatalf("expected 1 enriched, got %d", result.TotalEnriched)
	}
	if result.Persisted != nil {
		t.Fatalf("expected no persistence result")
	}
}

func TestLeadsService_EnrichOne(t *testing.T) {
	svc := NewLeadsService(nil, &stubEnricher{}, nil, nil)
	got := svc.EnrichOne(context.Background(), entity.BusinessRecord{Name: "acme"})
	if got.Email != "hello@acme.test" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestLeadsService_DedupeWithoutDeduplicator(t *testing.T) {
	svc := NewLeadsService(nil, &stubEnricher{}, nil, nil)
	records := []entity.BusinessRecord{{Name: "Acme"}, {Name: "Acme"}}
	kept, removed := svc.Dedupe(records)
	if len(kept) != 2 || removed != 0 {
		t.Fatalf("expected passthrough, got %d kept %d removed", len(kept), removed)
	}
}

func TestLeadsService_List_AppliesDefaults(t *testing.T) {
	received := dto.ListFilter{}
	repo := &mockBusinessesRepository{
		list: func(ctx context.Context, filter dto.ListFilter) ([]entity.Lead, error) {
			received = filter
			return []entity.Lead{{BusinessRecord: entity.BusinessRecord{Name: "Acme"}}}, nil
		},
	}
	svc := NewLeadsService(nil, &stubEnricher{}, repo, nil)

	leads, err := svc.List(context.Background(), dto.ListFilter{Page: -1, PerPage: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected one lead, got %d", len(leads))
	}
	if received.Page != 1 || received.PerPage != 100 {
		t.Fatalf("expected defaults applied, got %+v", received)
	}

	if _, err := NewLeadsService(nil, &stubEnricher{}, nil, nil).List(context.Background(), dto.ListFilter{}); !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}
}
