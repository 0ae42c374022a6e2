// Package dedupe collapses near-duplicate businesses produced by overlapping
// discovery searches.
package dedupe

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/octobees/leads-generator/enricher/internal/entity"
)

const metersPerDegree = 111320.0

// ErrInvalidConfig is returned for out-of-range matching parameters.
var ErrInvalidConfig = errors.New("invalid dedupe config")

// Config tunes how aggressively records are merged.
type Config struct {
	// NameThreshold is the similarity a name pair must exceed, in [0,1].
	NameThreshold float64
	// RadiusMeters is the distance two records must be within to fuzzy-match.
	RadiusMeters float64
	// CoordPrecision is the number of decimals kept in the exact-match bucket.
	CoordPrecision int
}

// DefaultConfig returns the matching parameters used when none are configured.
func DefaultConfig() Config {
	return Config{NameThreshold: 0.85, RadiusMeters: 150, CoordPrecision: 3}
}

// Validate checks the parameter ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.NameThreshold) || c.NameThreshold < 0 || c.NameThreshold > 1 {
		return fmt.Errorf("%w: name threshold %v outside [0,1]", ErrInvalidConfig, c.NameThreshold)
	}
	if math.IsNaN(c.RadiusMeters) || c.RadiusMeters < 0 {
		return fmt.Errorf("%w: negative radius %v", ErrInvalidConfig, c.RadiusMeters)
	}
	if c.CoordPrecision < 0 || c.CoordPrecision > 7 {
		return fmt.Errorf("%w: coordinate precision %d outside [0,7]", ErrInvalidConfig, c.CoordPrecision)
	}
	return nil
}

// Observer is told how many records each pass dropped.
type Observer interface {
	ObserveDuplicates(dropped int)
}

// Deduplicator removes repeated businesses, keeping the first occurrence.
type Deduplicator struct {
	cfg      Config
	logger   *zap.Logger
	observer Observer
}

// Option configures optional dependencies.
type Option func(*Deduplicator)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Deduplicator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver reports drop counts, typically to metrics.
func WithObserver(o Observer) Option {
	return func(d *Deduplicator) {
		d.observer = o
	}
}

// New validates cfg and builds a deduplicator.
func New(cfg Config, opts ...Option) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Deduplicator{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dedupe returns records with duplicates removed, preserving the order of
// first occurrences. Records without a name are always kept and never used as
// a match target.
func (d *Deduplicator) Dedupe(records []entity.BusinessRecord) []entity.BusinessRecord {
	idx := newIndex(d.cfg)
	out := make([]entity.BusinessRecord, 0, len(records))
	dropped := 0

	for i, r := range records {
		c := newCandidate(r, d.cfg.CoordPrecision)
		if c.name == "" {
			out = append(out, r)
			continue
		}
		if j, ok := idx.match(c); ok {
			dropped++
			d.logger.Debug("duplicate business dropped",
				zap.Int("index", i),
				zap.String("name", r.Name),
				zap.String("kept", idx.entries[j].record.Name))
			continue
		}
		idx.add(c)
		out = append(out, r)
	}

	if d.observer != nil {
		d.observer.ObserveDuplicates(dropped)
	}
	return out
}

// IsDuplicate reports whether b would be dropped as a duplicate of a.
func (d *Deduplicator) IsDuplicate(a, b entity.BusinessRecord) bool {
	first := newCandidate(a, d.cfg.CoordPrecision)
	second := newCandidate(b, d.cfg.CoordPrecision)
	if first.name == "" || second.name == "" {
		return false
	}
	return matches(d.cfg, first, second)
}

type candidate struct {
	record   entity.BusinessRecord
	name     string
	key      string
	nameAddr string
	hasCoord bool
	lat, lng float64
}

func newCandidate(r entity.BusinessRecord, precision int) candidate {
	c := candidate{
		record:   r,
		name:     foldName(r.Name),
		key:      Key(r, precision),
		nameAddr: nameAddressKey(r),
		hasCoord: r.HasCoordinates(),
	}
	if c.hasCoord {
		c.lat, c.lng = *r.Latitude, *r.Longitude
	}
	return c
}

func matches(cfg Config, a, b candidate) bool {
	if a.key == b.key {
		return true
	}
	if !a.hasCoord || !b.hasCoord {
		return a.nameAddr == b.nameAddr
	}
	if haversineMeters(a.lat, a.lng, b.lat, b.lng) >= cfg.RadiusMeters {
		return false
	}
	return similarity(a.name, b.name) > cfg.NameThreshold
}

type cell struct {
	lat, lng int64
}

// index holds accepted records: an exact-key set, a name+address set for
// records lacking coordinates, and a grid for radius queries.
type index struct {
	cfg      Config
	cellDeg  float64
	lngCells int64
	lngDeg   float64
	entries  []candidate
	keys     map[string]int
	nameAddr map[string][]int
	grid     map[cell][]int
}

func newIndex(cfg Config) *index {
	idx := &index{
		cfg:      cfg,
		keys:     make(map[string]int),
		nameAddr: make(map[string][]int),
		grid:     make(map[cell][]int),
	}
	if cfg.RadiusMeters > 0 {
		idx.cellDeg = cfg.RadiusMeters / metersPerDegree
		// Longitude columns are at least cellDeg wide and tile the full
		// circle, so the column index wraps at the antimeridian.
		idx.lngCells = max(int64(math.Floor(360/idx.cellDeg)), 1)
		idx.lngDeg = 360 / float64(idx.lngCells)
	}
	return idx
}

func (idx *index) add(c candidate) {
	pos := len(idx.entries)
	idx.entries = append(idx.entries, c)
	if _, exists := idx.keys[c.key]; !exists {
		idx.keys[c.key] = pos
	}
	idx.nameAddr[c.nameAddr] = append(idx.nameAddr[c.nameAddr], pos)
	if c.hasCoord && idx.cellDeg > 0 {
		k := idx.cellOf(c.lat, c.lng)
		idx.grid[k] = append(idx.grid[k], pos)
	}
}

func (idx *index) match(c candidate) (int, bool) {
	if pos, ok := idx.keys[c.key]; ok {
		return pos, true
	}
	for _, pos := range idx.nameAddr[c.nameAddr] {
		if !c.hasCoord || !idx.entries[pos].hasCoord {
			return pos, true
		}
	}
	if !c.hasCoord || idx.cellDeg == 0 {
		return 0, false
	}

	center := idx.cellOf(c.lat, c.lng)
	lngSpan := lngCellSpan(c.lat)
	lngFrom, lngTo := -lngSpan, lngSpan
	if 2*lngSpan+1 > idx.lngCells {
		// The window covers the whole circle; visit each column once.
		lngFrom, lngTo = 0, idx.lngCells-1
	}
	for dLat := int64(-1); dLat <= 1; dLat++ {
		for dLng := lngFrom; dLng <= lngTo; dLng++ {
			k := cell{lat: center.lat + dLat, lng: idx.wrapLng(center.lng + dLng)}
			for _, pos := range idx.grid[k] {
				if matches(idx.cfg, idx.entries[pos], c) {
					return pos, true
				}
			}
		}
	}
	return 0, false
}

func (idx *index) cellOf(lat, lng float64) cell {
	return cell{
		lat: int64(math.Floor(lat / idx.cellDeg)),
		lng: idx.wrapLng(int64(math.Floor((lng + 180) / idx.lngDeg))),
	}
}

func (idx *index) wrapLng(col int64) int64 {
	return ((col % idx.lngCells) + idx.lngCells) % idx.lngCells
}

// lngCellSpan widens the longitude search as meridians converge.
func lngCellSpan(lat float64) int64 {
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.05 {
		cos = 0.05
	}
	return int64(math.Ceil(1 / cos))
}
