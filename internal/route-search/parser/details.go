package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ytransit-data/pkg/route-search/models"
)

var (
	departurePlatformPattern = regexp.MustCompile(`\[発\]\s*([^→]+?)(?:\s*→|$)`)
	arrivalPlatformPattern   = regexp.MustCompile(`→\s*\[着\]\s*(.+)`)
)

// extractDetails walks the direct station and fare section children of the
// detail container in document order.
func extractDetails(container *goquery.Selection) models.Details {
	details := models.Details{}
	if container.Length() == 0 {
		return details
	}

	container.ChildrenFiltered("div").Each(func(_ int, s *goquery.Selection) {
		switch {
		case s.HasClass("station"):
			details = append(details, extractStation(s))
		case s.HasClass("fareSection"):
			details = append(details, extractTransport(s))
		}
	})

	return details
}

func extractStation(s *goquery.Selection) models.DetailEntry {
	var stationTime, stationName *string

	if item := s.Find("ul.time").First().Find("li").First(); item.Length() > 0 {
		stationTime = ptr(strippedText(item))
	}

	if link := s.Find("dl").First().Find("dt").First().Find("a").First(); link.Length() > 0 {
		stationName = ptr(strippedText(link))
	}

	if s.Find("span.icnStaDep").Length() > 0 {
		return models.DepartureStation{Time: stationTime, StationName: stationName}
	}
	return models.ArrivalStation{Time: stationTime, StationName: stationName}
}

func extractTransport(s *goquery.Selection) models.DetailEntry {
	segment := models.TransportSegment{}

	access := s.Find("div.access").First()
	if access.Length() == 0 {
		return segment
	}

	if line := access.Find("li.transport").First().Find("div").First(); line.Length() > 0 {
		if name := firstOwnText(line); name != "" {
			segment.LineName = ptr(name)
		}
		segment.Destination, segment.IsFirstTrain = destination(line.Find("span.destination").First())
	}

	if platform := access.Find("li.platform").First(); platform.Length() > 0 {
		segment.DeparturePlatform, segment.ArrivalPlatform = splitPlatforms(joinedText(platform, " "))
	}

	if fare := s.Find("p.fare").First().Find("span").First(); fare.Length() > 0 {
		segment.FareSegment = ptr(strippedText(fare) + currencyUnit)
	}

	return segment
}

// destination returns the destination label with the first train icon's own
// label removed, and whether that icon was present.
func destination(dest *goquery.Selection) (*string, bool) {
	if dest.Length() == 0 {
		return nil, false
	}

	full := strippedText(dest)
	icon := dest.Find("span.icnFirstTrain").First()
	if icon.Length() == 0 {
		return ptr(full), false
	}

	if label := strippedText(icon); label != "" {
		full = strings.ReplaceAll(full, label, "")
	}
	return ptr(strings.TrimSpace(full)), true
}

// splitPlatforms reads "[発] <dep> → [着] <arr>"; each half is optional.
func splitPlatforms(text string) (dep, arr *string) {
	if m := departurePlatformPattern.FindStringSubmatch(text); m != nil {
		dep = ptr(strings.TrimSpace(m[1]))
	}
	if m := arrivalPlatformPattern.FindStringSubmatch(text); m != nil {
		arr = ptr(strings.TrimSpace(m[1]))
	}
	return dep, arr
}
