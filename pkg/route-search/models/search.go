package models

import "time"

// StationSuggestions is the raw suggest API payload. Its schema is owned by
// the upstream site, so it is kept as a generic JSON object.
type StationSuggestions map[string]interface{}

// SearchRecord is one stored search in the history table.
type SearchRecord struct {
	SearchID   int64         `json:"search_id" yaml:"search_id"`
	CacheKey   string        `json:"cache_key" yaml:"cache_key"`
	From       string        `json:"from" yaml:"from"`
	To         string        `json:"to" yaml:"to"`
	Date       string        `json:"date,omitempty" yaml:"date,omitempty"`
	Time       string        `json:"time,omitempty" yaml:"time,omitempty"`
	Via        string        `json:"via,omitempty" yaml:"via,omitempty"`
	Sort       string        `json:"sort,omitempty" yaml:"sort,omitempty"`
	RouteCount int           `json:"route_count" yaml:"route_count"`
	Routes     []RouteRecord `json:"routes,omitempty" yaml:"routes,omitempty"`
	SearchedAt time.Time     `json:"searched_at" yaml:"searched_at"`
}

// SearchQuery holds the parameters of one route search. Optional values are
// only sent upstream when non-empty.
type SearchQuery struct {
	From string `json:"from" yaml:"from" validate:"required"`
	To   string `json:"to" yaml:"to" validate:"required"`
	Date string `json:"date,omitempty" yaml:"date,omitempty" validate:"omitempty,len=8,numeric"` // e.g. 20250522
	Time string `json:"time,omitempty" yaml:"time,omitempty" validate:"omitempty,len=4,numeric"` // e.g. 0900
	Via  string `json:"via,omitempty" yaml:"via,omitempty"`
	Sort string `json:"sort,omitempty" yaml:"sort,omitempty"`
}

// Params returns the non-empty query parameters keyed by their upstream names.
func (q SearchQuery) Params() map[string]string {
	params := map[string]string{
		"from": q.From,
		"to":   q.To,
	}
	for k, v := range map[string]string{"date": q.Date, "time": q.Time, "via": q.Via, "sort": q.Sort} {
		if v != "" {
			params[k] = v
		}
	}
	return params
}
