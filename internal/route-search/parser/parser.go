package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ytransit-data/pkg/route-search/models"
)

// ErrNilDocument is returned when no document is supplied at all.
var ErrNilDocument = errors.New("parser: nil document")

// ExtractAll locates every route fragment in doc and extracts them in
// document order. Fragments without a summary region are dropped silently.
func ExtractAll(doc *goquery.Document, sink Sink) []models.RouteRecord {
	routes := []models.RouteRecord{}
	for _, fragment := range Locate(doc, sink) {
		if record, ok := ExtractRoute(fragment); ok {
			routes = append(routes, *record)
		}
	}
	return routes
}

// ParseReader parses markup from r and extracts its routes. Malformed markup
// never produces an error, only reader failures and a nil reader do.
func ParseReader(r io.Reader, sink Sink) ([]models.RouteRecord, error) {
	if r == nil {
		return nil, ErrNilDocument
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	return ExtractAll(doc, sink), nil
}

// ParseHTML extracts routes from a markup string.
func ParseHTML(markup string, sink Sink) []models.RouteRecord {
	routes, err := ParseReader(strings.NewReader(markup), sink)
	if err != nil {
		// strings.Reader never fails and html.Parse accepts any input
		return []models.RouteRecord{}
	}
	return routes
}

// Parser binds a diagnostics sink for callers that hold on to a handle.
// It carries no other state and is safe for concurrent use.
type Parser struct {
	sink Sink
}

func New(sink Sink) *Parser {
	if sink == nil {
		sink = Discard
	}
	return &Parser{sink: sink}
}

func (p *Parser) Parse(markup string) []models.RouteRecord {
	return ParseHTML(markup, p.sink)
}

func (p *Parser) ParseReader(r io.Reader) ([]models.RouteRecord, error) {
	return ParseReader(r, p.sink)
}
