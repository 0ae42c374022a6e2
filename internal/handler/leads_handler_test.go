package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/enricher/internal/dedupe"
	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/enrich"
	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/extractor"
	"github.com/octobees/leads-generator/enricher/internal/fetcher"
	"github.com/octobees/leads-generator/enricher/internal/repository"
	"github.com/octobees/leads-generator/enricher/internal/service"
	"github.com/octobees/leads-generator/enricher/internal/validator"
)

type capturingBusinessesRepo struct {
	lastFilter dto.ListFilter
	upserts    []repository.BusinessUpsert
	err        error
}

func (c *capturingBusinessesRepo) BulkUpsert(ctx context.Context, records []repository.BusinessUpsert) (repository.BulkUpsertResult, error) {
	if c.err != nil {
		return repository.BulkUpsertResult{}, c.err
	}
	c.upserts = records
	return repository.BulkUpsertResult{Inserted: len(records), Total: len(records)}, nil
}

func (c *capturingBusinessesRepo) List(ctx context.Context, filter dto.ListFilter) ([]entity.Lead, error) {
	c.lastFilter = filter
	if c.err != nil {
		return nil, c.err
	}
	return []entity.Lead{{BusinessRecord: entity.BusinessRecord{Name: "Acme"}, Score: 40}}, nil
}

// newPipeline wires the real enrichment stack.
func newPipeline(t *testing.T) (*enrich.Orchestrator, *dedupe.Deduplicator) {
	t.Helper()
	v := validator.New(nil)
	x := extractor.New(nil, extractor.WithURLFilter(v.Accepts))
	o, err := enrich.New(enrich.DefaultConfig(), fetcher.New(fetcher.Config{Timeout: 2 * time.Second}), x, v)
	if err != nil {
		t.Fatalf("build orchestrator: %v", err)
	}
	d, err := dedupe.New(dedupe.DefaultConfig())
	if err != nil {
		t.Fatalf("build deduplicator: %v", err)
	}
	return o, d
}

func newLeadsHandler(t *testing.T, repo repository.BusinessesRepository) *LeadsHandler {
	o, d := newPipeline(t)
	return NewLeadsHandler(service.NewLeadsService(d, o, repo, nil), 0)
}

func postJSON(t *testing.T, h echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler should write response: %v", err)
	}
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var payload struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Status != "success" {
		t.Fatalf("unexpected status %q: %s", payload.Status, rec.Body.String())
	}
	if err := json.Unmarshal(payload.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func TestLeadsHandler_Enrich_EndToEnd(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<a href="https://www.facebook.com/acmecafe/">fb</a><p>contact@acmecafe.test</p>`))
	}))
	defer site.Close()

	repo := &capturingBusinessesRepo{}
	handler := newLeadsHandler(t, repo)

	body := fmt.Sprintf(`{"businesses":[
		{"name":"Acme Cafe","address":"Jl. Sudirman 1","latitude":-6.2,"longitude":106.8,"phone":"+62215550100","website":%q},
		{"name":"Acme Café","address":"Jl. Sudirman 1","latitude":-6.2,"longitude":106.8},
		{"name":"No Site Bakery","address":"Jl. Thamrin 2"}
	],"dedupe":true,"persist":true}`, site.URL)
	rec := postJSON(t, handler.Enrich, "/enrich", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.EnrichResponse
	decodeData(t, rec, &resp)
	if resp.Total != 2 || resp.DuplicatesRemoved != 1 || resp.TotalEnriched != 1 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	acme := resp.Businesses[0]
	if acme.Facebook != "https://facebook.com/acmecafe" || acme.Email != "contact@acmecafe.test" || acme.Phone != "+62215550100" {
		t.Fatalf("unexpected enriched record: %+v", acme)
	}
	if resp.Businesses[1].Name != "No Site Bakery" || resp.Businesses[1].Email != "" {
		t.Fatalf("unexpected second record: %+v", resp.Businesses[1])
	}
	if resp.Persisted == nil || resp.Persisted.Total != 2 || len(repo.upserts) != 2 {
		t.Fatalf("expected both records persisted, got %+v", resp.Persisted)
	}
}

func TestLeadsHandler_Enrich_BadRequests(t *testing.T) {
	handler := newLeadsHandler(t, nil)

	cases := map[string]struct {
		body string
		code int
	}{
		"invalid json":       {body: "not-json", code: http.StatusBadRequest},
		"empty list":         {body: `{"businesses":[]}`, code: http.StatusBadRequest},
		"missing list":       {body: `{}`, code: http.StatusBadRequest},
		"persist without db": {body: `{"businesses":[{"name":"Acme"}],"persist":true}`, code: http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, handler.Enrich, "/enrich", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLeadsHandler_Enrich_TooLarge(t *testing.T) {
	o, d := newPipeline(t)
	handler := NewLeadsHandler(service.NewLeadsService(d, o, nil, nil), 1)

	rec := postJSON(t, handler.Enrich, "/enrich", `{"businesses":[{"name":"A"},{"name":"B"}]}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestLeadsHandler_ExtractSingle(t *testing.T) {
	handler := newLeadsHandler(t, nil)

	rec := postJSON(t, handler.ExtractSingle, "/extract-single", `{"business":{"name":"Offline Shop"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data struct {
		Business entity.BusinessRecord `json:"business"`
	}
	decodeData(t, rec, &data)
	if data.Business.Name != "Offline Shop" {
		t.Fatalf("unexpected business: %+v", data.Business)
	}

	for _, body := range []string{`{}`, `{"business":{}}`, `{"business":null}`} {
		rec := postJSON(t, handler.ExtractSingle, "/extract-single", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
}

func TestLeadsHandler_Dedupe(t *testing.T) {
	handler := newLeadsHandler(t, nil)

	rec := postJSON(t, handler.Dedupe, "/dedupe", `{"businesses":[
		{"name":"Acme Cafe","address":"Main St 1"},
		{"name":"acme  cafe","address":"Main St 1"},
		{"name":"Bakery","address":"Main St 2"}
	]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dto.DedupeResponse
	decodeData(t, rec, &resp)
	if resp.Total != 2 || resp.DuplicatesRemoved != 1 || resp.Businesses[0].Name != "Acme Cafe" {
		t.Fatalf("unexpected dedupe response: %+v", resp)
	}

	if rec := postJSON(t, handler.Dedupe, "/dedupe", `{"businesses":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestLeadsHandler_List(t *testing.T) {
	repo := &capturingBusinessesRepo{}
	handler := newLeadsHandler(t, repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/businesses?q=cafe&per_page=25&min_rating=4.5&min_score=30&has_email=true", nil)
	rec := httptest.NewRecorder()
	if err := handler.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	f := repo.lastFilter
	if f.Q != "cafe" || f.PerPage != 25 || !f.HasEmail {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if f.MinRating == nil || *f.MinRating != 4.5 || f.MinScore == nil || *f.MinScore != 30 {
		t.Fatalf("expected numeric filters parsed, got %+v", f)
	}

	req = httptest.NewRequest(http.MethodGet, "/businesses?min_score=lots", nil)
	rec = httptest.NewRecorder()
	_ = handler.List(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid min_score, got %d", rec.Code)
	}

	repo.err = errors.New("db down")
	req = httptest.NewRequest(http.MethodGet, "/businesses", nil)
	rec = httptest.NewRecorder()
	_ = handler.List(e.NewContext(req, rec))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestLeadsHandler_ListWithoutDatabase(t *testing.T) {
	handler := newLeadsHandler(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/businesses", nil)
	rec := httptest.NewRecorder()
	_ = handler.List(e.NewContext(req, rec))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLeadsHandler_Health(t *testing.T) {
	handler := newLeadsHandler(t, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	if err := handler.Health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var data map[string]any
	decodeData(t, rec, &data)
	if data["status"] != "ok" || data["persistence"] != false {
		t.Fatalf("unexpected health payload: %+v", data)
	}
}
