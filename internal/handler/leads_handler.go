package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/service"
)

// DefaultMaxBatch bounds the number of businesses accepted per request.
const DefaultMaxBatch = 1000

// LeadsHandler exposes enrichment, dedupe and listing endpoints.
type LeadsHandler struct {
	service  *service.LeadsService
	maxBatch int
}

// NewLeadsHandler creates a new handler instance.
func NewLeadsHandler(svc *service.LeadsService, maxBatch int) *LeadsHandler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &LeadsHandler{service: svc, maxBatch: maxBatch}
}

// Health handles GET /healthz requests.
func (h *LeadsHandler) Health(c echo.Context) error {
	return Success(c, http.StatusOK, "service healthy", map[string]any{
		"status":      "ok",
		"service":     "leads-enricher",
		"persistence": h.service.PersistenceEnabled(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Enrich handles POST /enrich requests.
func (h *LeadsHandler) Enrich(c echo.Context) error {
	var req dto.EnrichRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}
	if len(req.Businesses) > h.maxBatch {
		return Error(c, http.StatusRequestEntityTooLarge, "too many businesses in one request")
	}

	result, err := h.service.Enrich(c.Request().Context(), req.Businesses, service.EnrichOptions{
		Dedupe:  req.Dedupe,
		Persist: req.Persist,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoBusinesses):
			return Error(c, http.StatusBadRequest, "no businesses provided")
		case errors.Is(err, service.ErrPersistenceDisabled):
			return Error(c, http.StatusServiceUnavailable, "persistence is not configured")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return Error(c, http.StatusServiceUnavailable, "enrichment interrupted")
		default:
			return Error(c, http.StatusInternalServerError, "failed to enrich businesses")
		}
	}

	resp := dto.EnrichResponse{
		Businesses:        result.Businesses,
		Total:             result.Total,
		TotalEnriched:     result.TotalEnriched,
		DuplicatesRemoved: result.DuplicatesRemoved,
	}
	if result.Persisted != nil {
		resp.Persisted = &dto.PersistSummary{
			Inserted: result.Persisted.Inserted,
			Updated:  result.Persisted.Updated,
			Total:    result.Persisted.Total,
		}
	}
	return Success(c, http.StatusOK, "businesses enriched", resp)
}

// ExtractSingle handles POST /extract-single requests.
func (h *LeadsHandler) ExtractSingle(c echo.Context) error {
	var req dto.ExtractSingleRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}
	if req.Business == nil || (strings.TrimSpace(req.Business.Name) == "" && !req.Business.HasWebsite()) {
		return Error(c, http.StatusBadRequest, "no business provided")
	}

	enriched := h.service.EnrichOne(c.Request().Context(), *req.Business)
	return Success(c, http.StatusOK, "business enriched", map[string]any{"business": enriched})
}

// Dedupe handles POST /dedupe requests.
func (h *LeadsHandler) Dedupe(c echo.Context) error {
	var req dto.DedupeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}
	if len(req.Businesses) == 0 {
		return Error(c, http.StatusBadRequest, "no businesses provided")
	}
	if len(req.Businesses) > h.maxBatch {
		return Error(c, http.StatusRequestEntityTooLarge, "too many businesses in one request")
	}

	kept, removed := h.service.Dedupe(req.Businesses)
	return Success(c, http.StatusOK, "businesses deduplicated", dto.DedupeResponse{
		Businesses:        kept,
		Total:             len(kept),
		DuplicatesRemoved: removed,
	})
}

// List handles GET /businesses requests.
func (h *LeadsHandler) List(c echo.Context) error {
	filter := dto.ListFilter{
		Q:             strings.TrimSpace(c.QueryParam("q")),
		Category:      strings.TrimSpace(c.QueryParam("category")),
		AreaName:      strings.TrimSpace(c.QueryParam("area_name")),
		WebsiteStatus: strings.TrimSpace(c.QueryParam("website_status")),
		Sort:          strings.TrimSpace(c.QueryParam("sort")),
		Page:          parseIntDefault(c.QueryParam("page"), 1),
		PerPage:       parseIntDefault(c.QueryParam("per_page"), 20),
	}

	if minRatingStr := strings.TrimSpace(c.QueryParam("min_rating")); minRatingStr != "" {
		minRating, err := strconv.ParseFloat(minRatingStr, 64)
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid min_rating")
		}
		filter.MinRating = &minRating
	}
	if minScoreStr := strings.TrimSpace(c.QueryParam("min_score")); minScoreStr != "" {
		minScore, err := strconv.Atoi(minScoreStr)
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid min_score")
		}
		filter.MinScore = &minScore
	}
	if hasEmail := strings.TrimSpace(c.QueryParam("has_email")); hasEmail != "" {
		parsed, err := strconv.ParseBool(hasEmail)
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid has_email")
		}
		filter.HasEmail = parsed
	}

	leads, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		if errors.Is(err, service.ErrPersistenceDisabled) {
			return Error(c, http.StatusServiceUnavailable, "persistence is not configured")
		}
		return Error(c, http.StatusInternalServerError, "failed to list businesses")
	}

	return Success(c, http.StatusOK, "businesses retrieved", leads)
}

func parseIntDefault(input string, fallback int) int {
	if input == "" {
		return fallback
	}
	if value, err := strconv.Atoi(input); err == nil {
		return value
	}
	return fallback
}
