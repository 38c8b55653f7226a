package scraper

import (
	"context"

	"github.com/ytransit-data/pkg/route-search/models"
)

type PageFetcher interface {
	FetchSearchPage(ctx context.Context, q models.SearchQuery) (string, error)
}

type SuggestionFetcher interface {
	FetchSuggestions(ctx context.Context, value string) (models.StationSuggestions, error)
}

type Fetcher interface {
	PageFetcher
	SuggestionFetcher
}
