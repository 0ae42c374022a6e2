// Package enrich drives website enrichment over a batch of businesses with
// bounded concurrency.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/octobees/leads-generator/enricher/internal/entity"
	"github.com/octobees/leads-generator/enricher/internal/extractor"
	"github.com/octobees/leads-generator/enricher/internal/fetcher"
	"github.com/octobees/leads-generator/enricher/internal/metrics"
	"github.com/octobees/leads-generator/enricher/internal/rules"
	"github.com/octobees/leads-generator/enricher/internal/validator"
)

// ErrInvalidConfig is returned when the orchestrator cannot start any work.
var ErrInvalidConfig = errors.New("invalid enrichment config")

// Config bounds the work done per batch and per record.
type Config struct {
	// Workers caps concurrent tasks, and therefore in-flight fetches.
	Workers int
	// FallbackPages caps extra pages tried when the homepage yields nothing.
	FallbackPages int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{Workers: 10, FallbackPages: 3}
}

// Validate checks the limits.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.FallbackPages < 0 {
		return fmt.Errorf("%w: fallback pages must not be negative, got %d", ErrInvalidConfig, c.FallbackPages)
	}
	return nil
}

// PageFetcher retrieves a single page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Observer receives per-record and per-batch outcomes.
type Observer interface {
	ObserveRecord(result string)
	ObserveBatch(size int)
}

// Orchestrator runs Fetcher, Extractor and Validator for each business.
type Orchestrator struct {
	cfg           Config
	fetcher       PageFetcher
	extractor     *extractor.Extractor
	validator     *validator.Validator
	fallbackPaths []string
	logger        *zap.Logger
	observer      Observer
}

// Option configures optional dependencies.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver reports outcomes, typically to metrics.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithFallbackPaths overrides the guessed contact page paths.
func WithFallbackPaths(paths []string) Option {
	return func(o *Orchestrator) {
		o.fallbackPaths = append([]string(nil), paths...)
	}
}

// New validates cfg and wires the pipeline stages.
func New(cfg Config, f PageFetcher, x *extractor.Extractor, v *validator.Validator, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f == nil || x == nil || v == nil {
		return nil, fmt.Errorf("%w: fetcher, extractor and validator are required", ErrInvalidConfig)
	}
	o := &Orchestrator{
		cfg:           cfg,
		fetcher:       f,
		extractor:     x,
		validator:     v,
		fallbackPaths: rules.Default().FallbackPaths,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Enrich returns a slice of the same length and order as records. Each slot
// holds either the input record unchanged or the record with absent contact
// fields filled in. Per-record failures never fail the batch; the error is
// non-nil only when ctx ends before every record was processed, in which case
// unprocessed slots hold their input record.
func (o *Orchestrator) Enrich(ctx context.Context, records []entity.BusinessRecord) ([]entity.BusinessRecord, error) {
	out := make([]entity.BusinessRecord, len(records))
	copy(out, records)
	if len(records) == 0 {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if o.observer != nil {
		o.observer.ObserveBatch(len(records))
	}

	// No errgroup context: one task's outcome must never cancel its siblings.
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out[i] = o.EnrichOne(ctx, records[i])
			return nil
		})
	}
	_ = g.Wait()

	return out, ctx.Err()
}

// EnrichOne enriches a single record.
func (o *Orchestrator) EnrichOne(ctx context.Context, record entity.BusinessRecord) entity.BusinessRecord {
	enriched, result := o.enrichRecord(ctx, record)
	if o.observer != nil {
		o.observer.ObserveRecord(result)
	}
	o.logger.Debug("business enriched",
		zap.String("name", record.Name),
		zap.String("website", record.Website),
		zap.String("result", result))
	return enriched
}

func (o *Orchestrator) enrichRecord(ctx context.Context, record entity.BusinessRecord) (entity.BusinessRecord, string) {
	if !record.HasWebsite() {
		return record, metrics.RecordSkipped
	}
	home := websiteURL(record.Website)
	if home == "" {
		return record, metrics.RecordFailed
	}

	filled := 0
	// absorb merges a page's findings and reports whether it filled an
	// email or social field. Phones alone never end the page walk.
	absorb := func(delta entity.ContactDetails) bool {
		before := reachable(record.Contacts())
		filled += record.Apply(delta)
		return reachable(record.Contacts()) != before
	}

	delta, page, err := o.visit(ctx, home, record.Name)
	homeFailed := err != nil
	var fallbacks []string
	if err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) && !fe.Transient() {
			return record, metrics.RecordFailed
		}
		fallbacks = o.candidatePages(home, nil)
	} else {
		if absorb(delta) {
			return record, metrics.RecordEnriched
		}
		fallbacks = o.candidatePages(page.FinalURL, page)
	}

	if len(fallbacks) > o.cfg.FallbackPages {
		fallbacks = fallbacks[:o.cfg.FallbackPages]
	}
	for _, target := range fallbacks {
		if ctx.Err() != nil {
			break
		}
		delta, _, err := o.visit(ctx, target, record.Name)
		if err != nil {
			continue
		}
		if absorb(delta) {
			break
		}
	}

	switch {
	case filled > 0:
		return record, metrics.RecordEnriched
	case homeFailed:
		return record, metrics.RecordFailed
	default:
		return record, metrics.RecordEmpty
	}
}

func (o *Orchestrator) visit(ctx context.Context, target, businessName string) (entity.ContactDetails, *fetcher.Page, error) {
	page, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		return entity.ContactDetails{}, nil, err
	}
	source := page.FinalURL
	if source == "" {
		source = target
	}
	candidates := o.extractor.ExtractFor(page.Body, source, businessName)
	valid := o.validator.Validate(ctx, candidates)
	return validator.Details(valid), page, nil
}

// candidatePages lists fallback URLs: contact links discovered on the
// homepage first, then guessed paths on the same origin.
func (o *Orchestrator) candidatePages(base string, page *fetcher.Page) []string {
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return nil
	}
	seen := map[string]struct{}{strings.TrimRight(baseURL.String(), "/"): {}}
	var pages []string
	add := func(u string) {
		key := strings.TrimRight(u, "/")
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		pages = append(pages, u)
	}

	if page != nil {
		for _, u := range o.extractor.CandidatePages(page.Body, base) {
			add(u)
		}
	}
	origin := url.URL{Scheme: baseURL.Scheme, Host: baseURL.Host}
	for _, p := range o.fallbackPaths {
		ref, err := url.Parse(p)
		if err != nil {
			continue
		}
		add(origin.ResolveReference(ref).String())
	}
	return pages
}

// reachable drops the phone from a contact set: the record usually arrives
// with one, and a tel: link does not say where the email or socials live.
func reachable(d entity.ContactDetails) entity.ContactDetails {
	d.Phone = ""
	return d
}

func websiteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}
