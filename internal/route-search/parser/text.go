package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func ptr(s string) *string {
	return &s
}

// strippedText concatenates every descendant text node, each trimmed, skipping
// the empty ones. Comments never contribute.
func strippedText(sel *goquery.Selection) string {
	return joinedText(sel, "")
}

// joinedText is strippedText with a separator between the text pieces.
func joinedText(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, sep)
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// firstOwnText returns the first non-empty direct text child of the selection.
func firstOwnText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			return t
		}
	}
	return ""
}

// textAfter concatenates the trimmed direct text children of parent that come
// after the marker child. It returns "" when the marker is absent.
func textAfter(parent, marker *goquery.Selection) string {
	if parent.Length() == 0 || marker.Length() == 0 {
		return ""
	}

	var b strings.Builder
	collecting := false
	for c := parent.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c == marker.Nodes[0] {
			collecting = true
			continue
		}
		if collecting && c.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(c.Data))
		}
	}
	return b.String()
}

// classes returns the class tokens of the first node in the selection.
func classes(sel *goquery.Selection) []string {
	class, _ := sel.Attr("class")
	return strings.Fields(class)
}
