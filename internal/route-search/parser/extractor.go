package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ytransit-data/pkg/route-search/models"
)

// Literal tokens rendered by the search results page.
const (
	departureMarker = "発→"
	arrivalMarker   = "着"
	minuteUnit      = "分"
	boardingMarker  = "（乗車"
	transferUnit    = "回"
	currencyUnit    = "円"

	markClass   = "mark"
	icCardClass = "icnIc"
)

var durationPattern = regexp.MustCompile(`(\d+分)（乗車(\d+分)）`)

// ExtractRoute builds a record from one fragment. It reports false when the
// fragment has no summary region and therefore is not a route.
func ExtractRoute(fragment Fragment) (*models.RouteRecord, bool) {
	summary := fragment.Selection.Find("div.routeSummary").First()
	if summary.Length() == 0 {
		return nil, false
	}

	record := &models.RouteRecord{
		Priority: []string{},
		Details:  models.Details{},
	}

	if title := summary.Find("h2.title").First(); title.Length() > 0 {
		record.RouteID = ptr(strippedText(title))
	}

	summary.Find("ul.priority li span").Each(func(_ int, s *goquery.Selection) {
		record.Priority = append(record.Priority, strippedText(s))
	})

	if list := summary.Find("ul.summary").First(); list.Length() > 0 {
		extractTiming(list.Find("li.time").First(), record)
		extractTransfers(list.Find("li.transfer").First(), record)
		extractFare(list.Find("li.fare").First(), record)

		if distance := list.Find("li.distance").First(); distance.Length() > 0 {
			record.Distance = ptr(strippedText(distance))
		}
	}

	record.Details = extractDetails(fragment.Selection.Find("div.routeDetail").First())

	return record, true
}

func extractTiming(timeItem *goquery.Selection, record *models.RouteRecord) {
	if timeItem.Length() == 0 {
		return
	}

	depArr := timeItem.ChildrenFiltered("span").First()
	if depArr.Length() > 0 {
		if dep := firstOwnText(depArr); dep != "" {
			record.DepartureTime = ptr(strings.TrimSpace(strings.ReplaceAll(dep, departureMarker, "")))
		}
		if mark := depArr.Find("span.mark").First(); mark.Length() > 0 {
			record.ArrivalTime = ptr(strings.TrimSpace(strings.ReplaceAll(strippedText(mark), arrivalMarker, "")))
		}
	}

	record.TotalTime, record.TimeOnBoard = splitDuration(textAfter(timeItem, depArr))
}

// splitDuration reads "<total>（乗車<onboard>）". Without that shape, any text
// carrying a minute unit becomes the total, and is copied to the on-board time
// only when no boarding clause appears in it.
func splitDuration(text string) (total, onBoard *string) {
	if m := durationPattern.FindStringSubmatch(text); m != nil {
		return ptr(m[1]), ptr(m[2])
	}

	if !strings.Contains(text, minuteUnit) {
		return nil, nil
	}

	trimmed := strings.TrimSpace(text)
	if strings.Contains(text, boardingMarker) {
		return ptr(trimmed), nil
	}
	return ptr(trimmed), ptr(trimmed)
}

func extractTransfers(item *goquery.Selection, record *models.RouteRecord) {
	mark := item.Find("span.mark").First()
	if mark.Length() == 0 {
		return
	}
	record.Transfers = ptr(strippedText(mark) + transferUnit)
}

func extractFare(item *goquery.Selection, record *models.RouteRecord) {
	mark := item.Find("span.mark").First()
	if mark.Length() == 0 {
		return
	}
	record.Fare = ptr(strippedText(mark) + currencyUnit)
	record.FareType = fareType(item)
}

// fareType prefers a qualifier span. Only when none exists does it fall back
// to the content that follows the IC card icon.
func fareType(item *goquery.Selection) *string {
	qualifier := item.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isQualifier(s)
	}).First()
	if qualifier.Length() > 0 {
		return ptr(strippedText(qualifier))
	}

	icon := item.Find("span." + icCardClass).First()
	if icon.Length() == 0 {
		return nil
	}

	next := icon.Nodes[0].NextSibling
	if next != nil && next.Type == html.TextNode {
		if t := strings.TrimSpace(next.Data); t != "" {
			return ptr(t)
		}
	}

	if sibling := icon.NextAll().First(); sibling.Length() > 0 {
		if t := strippedText(sibling); t != "" {
			return ptr(t)
		}
	}
	return nil
}

// isQualifier matches spans whose class attribute is anything but exactly the
// numeric label class or the IC card icon class, including spans without one.
func isQualifier(s *goquery.Selection) bool {
	cls := classes(s)
	if len(cls) != 1 {
		return true
	}
	return cls[0] != markClass && cls[0] != icCardClass
}
