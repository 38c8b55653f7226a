package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ytransit-data/pkg/route-search/models"
)

// HistoryStore persists completed searches.
type HistoryStore struct {
	db *DB
}

func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// RecordSearch inserts rec and returns its generated id.
func (h *HistoryStore) RecordSearch(ctx context.Context, rec models.SearchRecord) (int64, error) {
	routes := rec.Routes
	if routes == nil {
		routes = []models.RouteRecord{}
	}
	payload, err := json.Marshal(routes)
	if err != nil {
		return 0, fmt.Errorf("encoding routes: %w", err)
	}

	searchedAt := rec.SearchedAt
	if searchedAt.IsZero() {
		searchedAt = time.Now()
	}

	query := `
		INSERT INTO transit.search_history
			(cache_key, from_station, to_station, search_date, search_time, via_station, sort_order, route_count, routes, searched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING search_id
	`

	var id int64
	err = h.db.conn.QueryRowContext(ctx, query,
		rec.CacheKey,
		rec.From,
		rec.To,
		nullString(rec.Date),
		nullString(rec.Time),
		nullString(rec.Via),
		nullString(rec.Sort),
		len(routes),
		string(payload),
		searchedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting search history: %w", err)
	}

	h.db.logger.Debug("Recorded search",
		"search_id", id,
		"from", rec.From,
		"to", rec.To,
		"route_count", len(routes))

	return id, nil
}

// RecentSearches returns up to limit searches, newest first.
func (h *HistoryStore) RecentSearches(ctx context.Context, limit int) ([]models.SearchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT search_id, cache_key, from_station, to_station, search_date, search_time,
		       via_station, sort_order, route_count, routes, searched_at
		FROM transit.search_history
		ORDER BY searched_at DESC, search_id DESC
		LIMIT $1
	`

	rows, err := h.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying search history: %w", err)
	}
	defer rows.Close()

	records := []models.SearchRecord{}
	for rows.Next() {
		var rec models.SearchRecord
		var date, tm, via, sort sql.NullString
		var payload []byte

		err := rows.Scan(&rec.SearchID, &rec.CacheKey, &rec.From, &rec.To,
			&date, &tm, &via, &sort, &rec.RouteCount, &payload, &rec.SearchedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning search history: %w", err)
		}

		rec.Date, rec.Time, rec.Via, rec.Sort = date.String, tm.String, via.String, sort.String
		if err := json.Unmarshal(payload, &rec.Routes); err != nil {
			return nil, fmt.Errorf("decoding routes for search %d: %w", rec.SearchID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search history: %w", err)
	}

	return records, nil
}

// DeleteOlderThan removes searches recorded before cutoff.
func (h *HistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := h.db.conn.ExecContext(ctx,
		`DELETE FROM transit.search_history WHERE searched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting search history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	h.db.logger.Info("Deleted old search history", "cutoff", cutoff, "records_deleted", rows)
	return rows, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
