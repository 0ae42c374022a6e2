package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/entity"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// BusinessesRepository describes persistence operations for enriched businesses.
type BusinessesRepository interface {
	BulkUpsert(ctx context.Context, records []BusinessUpsert) (BulkUpsertResult, error)
	List(ctx context.Context, filter dto.ListFilter) ([]entity.Lead, error)
}

// BusinessUpsert is one enriched record with its computed score.
type BusinessUpsert struct {
	Record         entity.BusinessRecord
	Score          int
	ScoreBreakdown map[string]int
}

// BulkUpsertResult summarises the number of rows inserted or updated.
type BulkUpsertResult struct {
	Inserted int
	Updated  int
	Total    int
}

// PGXBusinessesRepository implements BusinessesRepository using pgx.
type PGXBusinessesRepository struct {
	pool pgxPool
}

// NewPGXBusinessesRepository wires a pgx backed repository.
func NewPGXBusinessesRepository(pool *pgxpool.Pool) *PGXBusinessesRepository {
	return &PGXBusinessesRepository{pool: pool}
}

const schemaSQL = `
        CREATE TABLE IF NOT EXISTS businesses (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION,
            phone TEXT,
            website TEXT,
            rating DOUBLE PRECISION,
            review_count INTEGER,
            category TEXT,
            email TEXT,
            facebook TEXT,
            instagram TEXT,
            twitter TEXT,
            linkedin TEXT,
            youtube TEXT,
            whatsapp TEXT,
            search_term TEXT,
            area_name TEXT,
            score INTEGER NOT NULL DEFAULT 0,
            score_breakdown JSONB NOT NULL DEFAULT '{}'::jsonb,
            scraped_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (name, address)
        );
    `

// EnsureSchema creates the businesses table when it does not exist yet.
func (r *PGXBusinessesRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure businesses schema: %w", err)
	}
	return nil
}

// Stored contact columns are only replaced by non-empty values.
const bulkUpsertSQL = `
        INSERT INTO businesses (
            name, address, latitude, longitude, phone, website, rating, review_count, category,
            email, facebook, instagram, twitter, linkedin, youtube, whatsapp,
            search_term, area_name, score, score_breakdown, scraped_at, updated_at
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20::jsonb,$21,NOW())
        ON CONFLICT (name, address) DO UPDATE SET
            latitude = COALESCE(EXCLUDED.latitude, businesses.latitude),
            longitude = COALESCE(EXCLUDED.longitude, businesses.longitude),
            phone = COALESCE(EXCLUDED.phone, businesses.phone),
            website = COALESCE(EXCLUDED.website, businesses.website),
            rating = COALESCE(EXCLUDED.rating, businesses.rating),
            review_count = COALESCE(EXCLUDED.review_count, businesses.review_count),
            category = COALESCE(EXCLUDED.category, businesses.category),
            email = COALESCE(EXCLUDED.email, businesses.email),
            facebook = COALESCE(EXCLUDED.facebook, businesses.facebook),
            instagram = COALESCE(EXCLUDED.instagram, businesses.instagram),
            twitter = COALESCE(EXCLUDED.twitter, businesses.twitter),
            linkedin = COALESCE(EXCLUDED.linkedin, businesses.linkedin),
            youtube = COALESCE(EXCLUDED.youtube, businesses.youtube),
            whatsapp = COALESCE(EXCLUDED.whatsapp, businesses.whatsapp),
            search_term = COALESCE(EXCLUDED.search_term, businesses.search_term),
            area_name = COALESCE(EXCLUDED.area_name, businesses.area_name),
            score_breakdown = CASE WHEN EXCLUDED.score >= businesses.score
                THEN EXCLUDED.score_breakdown ELSE businesses.score_breakdown END,
            score = GREATEST(EXCLUDED.score, businesses.score),
            scraped_at = COALESCE(EXCLUDED.scraped_at, businesses.scraped_at),
            updated_at = NOW()
        RETURNING xmax = 0;
    `

// BulkUpsert persists a batch keyed by (name, address) in one transaction.
func (r *PGXBusinessesRepository) BulkUpsert(ctx context.Context, records []BusinessUpsert) (BulkUpsertResult, error) {
	var result BulkUpsertResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("start bulk upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range records {
		rec := item.Record
		breakdown := item.ScoreBreakdown
		if breakdown == nil {
			breakdown = map[string]int{}
		}
		breakdownJSON, err := json.Marshal(breakdown)
		if err != nil {
			return result, fmt.Errorf("marshal score breakdown: %w", err)
		}

		var inserted bool
		err = tx.QueryRow(ctx, bulkUpsertSQL,
			strings.TrimSpace(rec.Name),
			strings.TrimSpace(rec.Address),
			floatOrNil(rec.Latitude),
			floatOrNil(rec.Longitude),
			textOrNil(rec.Phone),
			textOrNil(rec.Website),
			ratingOrNil(rec.Rating),
			reviewCountOrNil(rec.ReviewCount),
			textOrNil(rec.Category),
			textOrNil(rec.Email),
			textOrNil(rec.Facebook),
			textOrNil(rec.Instagram),
			textOrNil(rec.Twitter),
			textOrNil(rec.LinkedIn),
			textOrNil(rec.YouTube),
			textOrNil(rec.WhatsApp),
			textOrNil(rec.SearchTerm),
			textOrNil(rec.AreaName),
			item.Score,
			string(breakdownJSON),
			rec.ScrapedAt,
		).Scan(&inserted)
		if err != nil {
			return result, fmt.Errorf("bulk upsert business %q: %w", rec.Name, err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Total++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit bulk upsert tx: %w", err)
	}

	return result, nil
}

// List retrieves stored leads matching the filter.
func (r *PGXBusinessesRepository) List(ctx context.Context, filter dto.ListFilter) ([]entity.Lead, error) {
	query := strings.Builder{}
	query.WriteString(`
        SELECT
            id, name, address, latitude, longitude, phone, website, rating, review_count, category,
            email, facebook, instagram, twitter, linkedin, youtube, whatsapp,
            search_term, area_name, score, score_breakdown, scraped_at, created_at, updated_at
        FROM businesses
    `)

	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if filter.Q != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.Q)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR address ILIKE $%d)", idx, idx+1))
		args = append(args, pattern, pattern)
		idx += 2
	}
	if filter.Category != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", idx))
		args = append(args, filter.Category)
		idx++
	}
	if filter.AreaName != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(area_name) = LOWER($%d)", idx))
		args = append(args, filter.AreaName)
		idx++
	}
	if filter.MinRating != nil {
		clauses = append(clauses, fmt.Sprintf("rating >= $%d", idx))
		args = append(args, *filter.MinRating)
		idx++
	}
	if filter.MinScore != nil {
		clauses = append(clauses, fmt.Sprintf("score >= $%d", idx))
		args = append(args, *filter.MinScore)
		idx++
	}
	if filter.HasEmail {
		clauses = append(clauses, "email IS NOT NULL")
	}
	switch strings.ToLower(filter.WebsiteStatus) {
	case "missing":
		clauses = append(clauses, "website IS NULL")
	case "available":
		clauses = append(clauses, "website IS NOT NULL")
	}

	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}

	orderClause := "rating DESC NULLS LAST, review_count DESC NULLS LAST, name ASC"
	switch strings.ToLower(filter.Sort) {
	case "score":
		orderClause = "score DESC, rating DESC NULLS LAST, name ASC"
	case "recent":
		orderClause = "updated_at DESC, name ASC"
	}
	query.WriteString(" ORDER BY ")
	query.WriteString(orderClause)

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1))
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

func scanLeads(rows pgx.Rows) ([]entity.Lead, error) {
	var leads []entity.Lead
	for rows.Next() {
		var (
			l           entity.Lead
			latitude    sql.NullFloat64
			longitude   sql.NullFloat64
			phone       sql.NullString
			website     sql.NullString
			rating      sql.NullFloat64
			reviewCount sql.NullInt64
			category    sql.NullString
			email       sql.NullString
			facebook    sql.NullString
			instagram   sql.NullString
			twitter     sql.NullString
			linkedin    sql.NullString
			youtube     sql.NullString
			whatsapp    sql.NullString
			searchTerm  sql.NullString
			areaName    sql.NullString
			breakdown   []byte
			scrapedAt   sql.NullTime
		)

		err := rows.Scan(
			&l.ID,
			&l.Name,
			&l.Address,
			&latitude,
			&longitude,
			&phone,
			&website,
			&rating,
			&reviewCount,
			&category,
			&email,
			&facebook,
			&instagram,
			&twitter,
			&linkedin,
			&youtube,
			&whatsapp,
			&searchTerm,
			&areaName,
			&l.Score,
			&breakdown,
			&scrapedAt,
			&l.CreatedAt,
			&l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}

		if latitude.Valid {
			val := latitude.Float64
			l.Latitude = &val
		}
		if longitude.Valid {
			val := longitude.Float64
			l.Longitude = &val
		}
		if rating.Valid {
			l.Rating = strconv.FormatFloat(rating.Float64, 'f', -1, 64)
		}
		if reviewCount.Valid {
			l.ReviewCount = strconv.FormatInt(reviewCount.Int64, 10)
		}
		l.Phone = phone.String
		l.Website = website.String
		l.Category = category.String
		l.Email = email.String
		l.Facebook = facebook.String
		l.Instagram = instagram.String
		l.Twitter = twitter.String
		l.LinkedIn = linkedin.String
		l.YouTube = youtube.String
		l.WhatsApp = whatsapp.String
		l.SearchTerm = searchTerm.String
		l.AreaName = areaName.String
		if scrapedAt.Valid {
			ts := scrapedAt.Time
			l.ScrapedAt = &ts
		}
		if len(breakdown) > 0 {
			if err := json.Unmarshal(breakdown, &l.ScoreBreakdown); err != nil {
				return nil, fmt.Errorf("unmarshal score breakdown: %w", err)
			}
		}

		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return leads, nil
}

func textOrNil(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func floatOrNil(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

// ratingOrNil accepts "4.5" as well as the "4,5" some locales scrape.
func ratingOrNil(raw string) any {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return value
}

// reviewCountOrNil keeps the digits of values such as "(1,234)".
func reviewCountOrNil(raw string) any {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	value, err := strconv.Atoi(digits.String())
	if err != nil {
		return nil
	}
	return value
}
