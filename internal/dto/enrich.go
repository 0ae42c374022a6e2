package dto

import "github.com/octobees/leads-generator/enricher/internal/entity"

// EnrichRequest is the batch payload posted by the discovery service.
type EnrichRequest struct {
	Businesses []entity.BusinessRecord `json:"businesses"`
	Dedupe     bool                    `json:"dedupe,omitempty"`
	Persist    bool                    `json:"persist,omitempty"`
}

// EnrichResponse reports the enriched batch in input order.
type EnrichResponse struct {
	Businesses        []entity.BusinessRecord `json:"businesses"`
	Total             int                     `json:"total"`
	TotalEnriched     int                     `json:"total_enriched"`
	DuplicatesRemoved int                     `json:"duplicates_removed"`
	Persisted         *PersistSummary         `json:"persisted,omitempty"`
}

// PersistSummary counts rows written by an enrichment run.
type PersistSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

// ExtractSingleRequest wraps one business for synchronous enrichment.
type ExtractSingleRequest struct {
	Business *entity.BusinessRecord `json:"business"`
}

// DedupeRequest carries a batch to collapse without enrichment.
type DedupeRequest struct {
	Businesses []entity.BusinessRecord `json:"businesses"`
}

// DedupeResponse reports the surviving records in first-seen order.
type DedupeResponse struct {
	Businesses        []entity.BusinessRecord `json:"businesses"`
	Total             int                     `json:"total"`
	DuplicatesRemoved int                     `json:"duplicates_removed"`
}
