package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"propcrawl/internal/models"
)

// PostgresStore persists properties and sessions to PostgreSQL.
//
// Queryable fields live in first-class columns; the full listing payload is
// kept as JSONB so reads reconstruct the record without lossy mapping.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, waits for the database to come up,
// runs schema migrations, and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}

		time.Sleep(2 * time.Second)
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id             BIGSERIAL PRIMARY KEY,
			external_id    TEXT,
			source_url     TEXT        UNIQUE NOT NULL,
			source_name    TEXT        NOT NULL,
			property_type  VARCHAR(30) NOT NULL,
			operation_type VARCHAR(30) NOT NULL,
			status         VARCHAR(20) NOT NULL,
			price_amount   NUMERIC(14,2),
			currency       VARCHAR(3)  NOT NULL,
			bedrooms       INT,
			bathrooms      INT,
			total_area     NUMERIC(10,2),
			province       TEXT,
			city           TEXT,
			neighborhood   TEXT,
			data           JSONB       NOT NULL,
			first_seen     TIMESTAMPTZ NOT NULL,
			last_updated   TIMESTAMPTZ NOT NULL,
			last_checked   TIMESTAMPTZ NOT NULL,
			is_featured    BOOLEAN     NOT NULL DEFAULT FALSE,
			is_verified    BOOLEAN     NOT NULL DEFAULT FALSE
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_external_key
			ON properties(external_id, source_name) WHERE external_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_properties_source  ON properties(source_name);
		CREATE INDEX IF NOT EXISTS idx_properties_price   ON properties(price_amount);
		CREATE INDEX IF NOT EXISTS idx_properties_city    ON properties(city);
		CREATE INDEX IF NOT EXISTS idx_properties_updated ON properties(last_updated);

		CREATE TABLE IF NOT EXISTS property_history (
			id          BIGSERIAL PRIMARY KEY,
			property_id BIGINT      NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			field_name  TEXT        NOT NULL,
			old_value   TEXT,
			new_value   TEXT,
			changed_at  TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_property ON property_history(property_id);

		CREATE TABLE IF NOT EXISTS crawl_sessions (
			id              BIGSERIAL PRIMARY KEY,
			source_name     TEXT        NOT NULL,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ,
			status          VARCHAR(20) NOT NULL,
			total_pages     INT,
			processed_pages INT         NOT NULL DEFAULT 0,
			total_listings  INT         NOT NULL DEFAULT 0,
			new_count       INT         NOT NULL DEFAULT 0,
			updated_count   INT         NOT NULL DEFAULT 0,
			error_count     INT         NOT NULL DEFAULT 0,
			filters         JSONB       NOT NULL,
			error_log       TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_source ON crawl_sessions(source_name, started_at);
	`)

	return err
}

const propertyColumns = `id, data, first_seen, last_updated, last_checked, is_featured, is_verified`

// scanProperty maps one properties row back into a StoredProperty.
func scanProperty(row interface{ Scan(...any) error }) (*models.StoredProperty, error) {
	var (
		stored  models.StoredProperty
		payload []byte
	)

	err := row.Scan(&stored.ID, &payload, &stored.FirstSeen, &stored.LastUpdated,
		&stored.LastChecked, &stored.IsFeatured, &stored.IsVerified)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &stored.Listing); err != nil {
		return nil, fmt.Errorf("decode listing payload: %w", err)
	}

	return &stored, nil
}

// FindByExternalID looks a property up by the source-assigned key.
func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID, sourceName string) (*models.StoredProperty, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE external_id = $1 AND source_name = $2
	`, externalID, sourceName)

	stored, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: find by external id: %w", err)
	}

	return stored, nil
}

// FindByURL looks a property up by its source URL.
func (s *PostgresStore) FindByURL(ctx context.Context, sourceURL string) (*models.StoredProperty, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+propertyColumns+` FROM properties WHERE source_url = $1
	`, sourceURL)

	stored, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: find by url: %w", err)
	}

	return stored, nil
}

// Insert stores a new property.
func (s *PostgresStore) Insert(ctx context.Context, listing models.Listing, now time.Time) (*models.StoredProperty, error) {
	payload, err := json.Marshal(listing)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode listing: %w", err)
	}

	stored := &models.StoredProperty{
		Listing:     listing,
		FirstSeen:   now,
		LastUpdated: now,
		LastChecked: now,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO properties (
			external_id, source_url, source_name, property_type, operation_type,
			status, price_amount, currency, bedrooms, bathrooms, total_area,
			province, city, neighborhood, data,
			first_seen, last_updated, last_checked
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16,$16)
		RETURNING id
	`,
		listing.ExternalID, listing.SourceURL, listing.SourceName,
		listing.PropertyType, listing.OperationType, listing.Status,
		listing.Price.Amount, listing.Price.Currency,
		listing.Features.Bedrooms, listing.Features.Bathrooms, listing.Features.TotalArea,
		listing.Location.Province, listing.Location.City, listing.Location.Neighborhood,
		payload, now,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert property: %w", err)
	}

	return stored, nil
}

// ApplyChanges replaces the listing payload and appends history entries in
// one transaction.
func (s *PostgresStore) ApplyChanges(ctx context.Context, id int64, listing models.Listing, changes []models.ChangeEntry, now time.Time) error {
	payload, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("postgres: encode listing: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE properties SET
			external_id    = $2,
			property_type  = $3,
			operation_type = $4,
			status         = $5,
			price_amount   = $6,
			currency       = $7,
			bedrooms       = $8,
			bathrooms      = $9,
			total_area     = $10,
			province       = $11,
			city           = $12,
			neighborhood   = $13,
			data           = $14,
			last_updated   = $15,
			last_checked   = $15
		WHERE id = $1
	`,
		id, listing.ExternalID,
		listing.PropertyType, listing.OperationType, listing.Status,
		listing.Price.Amount, listing.Price.Currency,
		listing.Features.Bedrooms, listing.Features.Bathrooms, listing.Features.TotalArea,
		listing.Location.Province, listing.Location.City, listing.Location.Neighborhood,
		payload, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: update property: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	for _, change := range changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO property_history (property_id, field_name, old_value, new_value, changed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, id, change.FieldName, change.OldValue, change.NewValue, change.ChangedAt)
		if err != nil {
			return fmt.Errorf("postgres: insert history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	return nil
}

// TouchLastChecked stamps a revisit without changes.
func (s *PostgresStore) TouchLastChecked(ctx context.Context, id int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE properties SET last_checked = $2 WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("postgres: touch last checked: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

// History returns a property's change entries, oldest first.
func (s *PostgresStore) History(ctx context.Context, propertyID int64) ([]models.ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, field_name, old_value, new_value, changed_at
		FROM property_history
		WHERE property_id = $1
		ORDER BY id
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("postgres: history: %w", err)
	}
	defer rows.Close()

	var entries []models.ChangeEntry

	for rows.Next() {
		var e models.ChangeEntry
		if err := rows.Scan(&e.PropertyID, &e.FieldName, &e.OldValue, &e.NewValue, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan history: %w", err)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SearchProperties returns matching properties, most recently updated first.
func (s *PostgresStore) SearchProperties(ctx context.Context, filters models.SearchFilters, limit int) ([]models.StoredProperty, error) {
	var (
		conds []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.PropertyType != nil {
		conds = append(conds, "property_type = "+arg(*filters.PropertyType))
	}

	if filters.OperationType != nil {
		conds = append(conds, "operation_type = "+arg(*filters.OperationType))
	}

	if filters.Currency != nil {
		conds = append(conds, "currency = "+arg(*filters.Currency))
	}

	if filters.MinPrice != nil {
		conds = append(conds, "price_amount >= "+arg(*filters.MinPrice))
	}

	if filters.MaxPrice != nil {
		conds = append(conds, "price_amount <= "+arg(*filters.MaxPrice))
	}

	if filters.MinBedrooms != nil {
		conds = append(conds, "bedrooms >= "+arg(*filters.MinBedrooms))
	}

	if filters.MaxBedrooms != nil {
		conds = append(conds, "bedrooms <= "+arg(*filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil {
		conds = append(conds, "bathrooms >= "+arg(*filters.MinBathrooms))
	}

	if filters.MaxBathrooms != nil {
		conds = append(conds, "bathrooms <= "+arg(*filters.MaxBathrooms))
	}

	if filters.MinArea != nil {
		conds = append(conds, "total_area >= "+arg(*filters.MinArea))
	}

	if filters.MaxArea != nil {
		conds = append(conds, "total_area <= "+arg(*filters.MaxArea))
	}

	// Location filters match substrings, so "Palermo" also finds
	// "Palermo Soho".
	if filters.Province != nil {
		conds = append(conds, "province ILIKE '%' || "+arg(*filters.Province)+" || '%'")
	}

	if filters.City != nil {
		conds = append(conds, "city ILIKE '%' || "+arg(*filters.City)+" || '%'")
	}

	if filters.Neighborhood != nil {
		conds = append(conds, "neighborhood ILIKE '%' || "+arg(*filters.Neighborhood)+" || '%'")
	}

	query := "SELECT " + propertyColumns + " FROM properties"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY last_updated DESC LIMIT " + arg(normalizeLimit(limit))

	return s.queryProperties(ctx, query, args...)
}

// GetRecentProperties returns the most recently first-seen properties.
func (s *PostgresStore) GetRecentProperties(ctx context.Context, limit int) ([]models.StoredProperty, error) {
	return s.queryProperties(ctx, `
		SELECT `+propertyColumns+` FROM properties
		ORDER BY first_seen DESC LIMIT $1
	`, normalizeLimit(limit))
}

// GetUpdatedProperties returns properties updated at or after since, most
// recently updated first.
func (s *PostgresStore) GetUpdatedProperties(ctx context.Context, since time.Time, limit int) ([]models.StoredProperty, error) {
	return s.queryProperties(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE last_updated >= $1
		ORDER BY last_updated DESC LIMIT $2
	`, since, normalizeLimit(limit))
}

// GetStatistics aggregates the inventory and session counters.
func (s *PostgresStore) GetStatistics(ctx context.Context, now time.Time) (*models.Statistics, error) {
	last24h := now.Add(-24 * time.Hour)

	stats := &models.Statistics{
		Properties: models.PropertyStatistics{
			ByType:      make(map[models.PropertyType]int),
			ByOperation: make(map[models.OperationType]int),
			BySource:    make(map[string]int),
		},
		Sessions:    models.CrawlStatistics{BySource: make(map[string]int)},
		GeneratedAt: now,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE first_seen >= $1),
			COUNT(*) FILTER (WHERE last_updated >= $1)
		FROM properties
	`, last24h).Scan(&stats.Properties.TotalProperties, &stats.Properties.NewLast24h, &stats.Properties.UpdatedLast24h)
	if err != nil {
		return nil, fmt.Errorf("postgres: property totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT property_type, operation_type, source_name, COUNT(*)
		FROM properties
		GROUP BY property_type, operation_type, source_name
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: property breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			propertyType  models.PropertyType
			operationType models.OperationType
			sourceName    string
			count         int
		)

		if err := rows.Scan(&propertyType, &operationType, &sourceName, &count); err != nil {
			return nil, fmt.Errorf("postgres: scan breakdown: %w", err)
		}

		stats.Properties.ByType[propertyType] += count
		stats.Properties.ByOperation[operationType] += count
		stats.Properties.BySource[sourceName] += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: property breakdown: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE started_at >= $1)
		FROM crawl_sessions
	`, last24h).Scan(
		&stats.Sessions.TotalSessions,
		&stats.Sessions.CompletedSessions,
		&stats.Sessions.FailedSessions,
		&stats.Sessions.RunningSessions,
		&stats.Sessions.SessionsLast24h,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: session totals: %w", err)
	}

	sessionRows, err := s.db.QueryContext(ctx, `
		SELECT source_name, COUNT(*) FROM crawl_sessions GROUP BY source_name
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: session breakdown: %w", err)
	}
	defer sessionRows.Close()

	for sessionRows.Next() {
		var (
			sourceName string
			count      int
		)

		if err := sessionRows.Scan(&sourceName, &count); err != nil {
			return nil, fmt.Errorf("postgres: scan session breakdown: %w", err)
		}

		stats.Sessions.BySource[sourceName] = count
	}

	return stats, sessionRows.Err()
}

func (s *PostgresStore) queryProperties(ctx context.Context, query string, args ...any) ([]models.StoredProperty, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query properties: %w", err)
	}
	defer rows.Close()

	var out []models.StoredProperty

	for rows.Next() {
		stored, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan property: %w", err)
		}

		out = append(out, *stored)
	}

	return out, rows.Err()
}

// CreateSession stores a new session and assigns its ID.
func (s *PostgresStore) CreateSession(ctx context.Context, session *models.CrawlSession) error {
	filters, err := json.Marshal(session.FilterSnapshot)
	if err != nil {
		return fmt.Errorf("postgres: encode filters: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO crawl_sessions (
			source_name, started_at, status, total_pages, processed_pages,
			total_listings, new_count, updated_count, error_count, filters
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`,
		session.SourceName, session.StartedAt, session.Status, session.TotalPages,
		session.ProcessedPages, session.TotalListings, session.NewCount,
		session.UpdatedCount, session.ErrorCount, filters,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("postgres: create session: %w", err)
	}

	return nil
}

// UpdateSession applies the non-nil fields of a partial update.
func (s *PostgresStore) UpdateSession(ctx context.Context, id int64, update models.ProgressUpdate) error {
	var (
		sets []string
		args = []any{id}
	)

	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.TotalPages != nil {
		set("total_pages", *update.TotalPages)
	}

	if update.ProcessedPages != nil {
		set("processed_pages", *update.ProcessedPages)
	}

	if update.TotalListings != nil {
		set("total_listings", *update.TotalListings)
	}

	if update.NewCount != nil {
		set("new_count", *update.NewCount)
	}

	if update.UpdatedCount != nil {
		set("updated_count", *update.UpdatedCount)
	}

	if update.ErrorCount != nil {
		set("error_count", *update.ErrorCount)
	}

	if len(sets) == 0 {
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE crawl_sessions SET "+strings.Join(sets, ", ")+" WHERE id = $1", args...)
	if err != nil {
		return fmt.Errorf("postgres: update session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// FinishSession closes a session with its final status.
func (s *PostgresStore) FinishSession(ctx context.Context, id int64, status models.SessionStatus, errorLog *string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_sessions SET status = $2, error_log = $3, finished_at = $4
		WHERE id = $1
	`, id, status, errorLog, finishedAt)
	if err != nil {
		return fmt.Errorf("postgres: finish session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}

	return nil
}

const sessionColumns = `id, source_name, started_at, finished_at, status, total_pages,
	processed_pages, total_listings, new_count, updated_count, error_count, filters, error_log`

func scanSession(row interface{ Scan(...any) error }) (*models.CrawlSession, error) {
	var (
		session models.CrawlSession
		filters []byte
	)

	err := row.Scan(&session.ID, &session.SourceName, &session.StartedAt,
		&session.FinishedAt, &session.Status, &session.TotalPages,
		&session.ProcessedPages, &session.TotalListings, &session.NewCount,
		&session.UpdatedCount, &session.ErrorCount, &filters, &session.ErrorLog)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(filters, &session.FilterSnapshot); err != nil {
		return nil, fmt.Errorf("decode filter snapshot: %w", err)
	}

	return &session, nil
}

// GetSession returns one session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, id int64) (*models.CrawlSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM crawl_sessions WHERE id = $1
	`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: get session: %w", err)
	}

	return session, nil
}

// GetSessions returns sessions newest first, optionally by source.
func (s *PostgresStore) GetSessions(ctx context.Context, sourceName *string, limit int) ([]models.CrawlSession, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if sourceName != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+sessionColumns+` FROM crawl_sessions
			WHERE source_name = $1
			ORDER BY started_at DESC LIMIT $2
		`, *sourceName, normalizeLimit(limit))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+sessionColumns+` FROM crawl_sessions
			ORDER BY started_at DESC LIMIT $1
		`, normalizeLimit(limit))
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: get sessions: %w", err)
	}
	defer rows.Close()

	var out []models.CrawlSession

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
		}

		out = append(out, *session)
	}

	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// normalizeLimit clamps non-positive limits to a sane page size.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}

	return limit
}
