package parser

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	containerSelector = "div#srline.elmRouteDetail"
	fallbackSelector  = `script#__NEXT_DATA__[type="application/json"]`
)

var routeIDPattern = regexp.MustCompile(`^route\d+$`)

// Fragment is the markup subtree of a single route option.
type Fragment struct {
	ID        string
	Selection *goquery.Selection
}

// nextData is the part of the __NEXT_DATA__ payload we look at when reporting
// the fallback. Route extraction from it is not implemented.
type nextData struct {
	Props struct {
		PageProps struct {
			NaviSearchParam struct {
				FeatureInfoList []json.RawMessage `json:"featureInfoList"`
			} `json:"naviSearchParam"`
		} `json:"pageProps"`
	} `json:"props"`
}

// Locate returns the route fragments of doc in document order. Only direct
// children of the route container are considered. It never fails; shape
// problems are reported to sink and yield an empty slice.
func Locate(doc *goquery.Document, sink Sink) []Fragment {
	if sink == nil {
		sink = Discard
	}

	container := doc.Find(containerSelector).First()
	if container.Length() == 0 {
		inspectFallback(doc, sink)
		return nil
	}

	var fragments []Fragment
	container.ChildrenFiltered("div").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		if !ok || !routeIDPattern.MatchString(id) {
			return
		}
		fragments = append(fragments, Fragment{ID: id, Selection: s})
	})

	if len(fragments) == 0 {
		sink.Report(Diagnostic{
			Signal:  NoRouteFragments,
			Message: "No route fragments found in route container",
		})
	}

	return fragments
}

func inspectFallback(doc *goquery.Document, sink Sink) {
	script := doc.Find(fallbackSelector).First()
	if script.Length() == 0 {
		sink.Report(Diagnostic{
			Signal:  ContainerNotFound,
			Message: "Route container not found in document",
		})
		return
	}

	payload := strings.TrimSpace(script.Text())
	if payload == "" {
		sink.Report(Diagnostic{
			Signal:  MalformedFallbackPayload,
			Message: "Failed to decode __NEXT_DATA__ payload",
			Err:     errors.New("empty payload"),
		})
		return
	}

	var data nextData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		sink.Report(Diagnostic{
			Signal:  MalformedFallbackPayload,
			Message: "Failed to decode __NEXT_DATA__ payload",
			Err:     err,
			Fields:  map[string]interface{}{"payload_bytes": len(payload)},
		})
		return
	}

	// TODO: extract routes from featureInfoList once its schema is pinned down against live pages.
	sink.Report(Diagnostic{
		Signal:  FallbackUnsupported,
		Message: "Route container missing, __NEXT_DATA__ present but not supported",
		Fields: map[string]interface{}{
			"features": len(data.Props.PageProps.NaviSearchParam.FeatureInfoList),
		},
	})
}
