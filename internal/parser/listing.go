package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/pfrederiksen/odmp-harvest/internal/normalize"
	"github.com/pfrederiksen/odmp-harvest/internal/record"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Segment positions within a listing cell
const (
	segAnchor   = 0
	segAgency   = 1
	segEOW      = 2
	segCause    = 3
	segLocation = 4

	minSegments = segCause + 1
)

var (
	paginationSel = cascadia.MustCompile(`div#pagination`)
	resultCellSel = cascadia.MustCompile(`tr > td:nth-of-type(2)`)
	anchorSel     = cascadia.MustCompile(`a[href]`)

	leadingTags = regexp.MustCompile(`^(\s*<[^>]*>)+`)
)

// segment is one <br>-delimited run of a result cell
type segment struct {
	markup string
	text   string
}

// jurisdictionRule pairs a predicate over a row's segments with the extractor
// used when it matches. A matched rule may still yield nil.
type jurisdictionRule struct {
	name    string
	match   func(segs []segment) bool
	extract func(segs []segment) *string
}

// listingJurisdiction is evaluated in order; the first matching rule decides.
var listingJurisdiction = []jurisdictionRule{
	{
		name: "location segment",
		match: func(segs []segment) bool {
			return len(segs) > segLocation && strings.Contains(segs[segLocation].text, "Location")
		},
		extract: func(segs []segment) *string {
			name := segs[segLocation].text
			if _, after, found := strings.Cut(name, normalize.LabelLocation); found {
				name = after
			}
			return lookup(strings.TrimSpace(name))
		},
	},
	{
		name: "location in cause segment",
		match: func(segs []segment) bool {
			return strings.Contains(segs[segCause].markup, "Location")
		},
		extract: func(segs []segment) *string {
			m := segs[segCause].markup
			return lookup(fragmentText(m[strings.Index(m, "Location"):], normalize.LabelLocation))
		},
	},
	{
		name: "agency suffix",
		match: func(segs []segment) bool {
			_, ok := normalize.TrailingCode(segs[segAgency].text)
			return ok
		},
		extract: func(segs []segment) *string {
			code, _ := normalize.TrailingCode(segs[segAgency].text)
			return record.String(code)
		},
	},
}

func lookup(name string) *string {
	if code, ok := normalize.Jurisdiction(name); ok {
		return record.String(code)
	}
	return nil
}

// resolveJurisdiction applies listingJurisdiction to a row
func resolveJurisdiction(segs []segment) *string {
	for _, rule := range listingJurisdiction {
		if rule.match(segs) {
			return rule.extract(segs)
		}
	}
	return nil
}

// listingCells locates the result table beside the pagination block and
// returns the content cell of every row.
func listingCells(doc *goquery.Document) []*goquery.Selection {
	table := doc.FindMatcher(paginationSel).Parent().ChildrenFiltered("div").ChildrenFiltered("table")

	var cells []*goquery.Selection
	table.FindMatcher(resultCellSel).Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, cell)
	})
	return cells
}

// ParseListingRow builds a record from one result cell. i is the row index,
// used only for error reporting.
func ParseListingRow(i int, cell *goquery.Selection) (record.Record, error) {
	anchor := cell.FindMatcher(anchorSel).First()
	if anchor.Length() == 0 {
		return record.Record{}, &RowError{Layout: KindListing, Row: i, Err: fmt.Errorf("%w: no officer link", ErrMalformedRow)}
	}

	segs := splitSegments(cell)
	if len(segs) < minSegments {
		return record.Record{}, &RowError{
			Layout: KindListing,
			Row:    i,
			Err:    fmt.Errorf("%w: %d segments, want at least %d", ErrMalformedRow, len(segs), minSegments),
		}
	}

	eow, err := normalize.LabeledDate(segs[segEOW].text, normalize.LabelEOW)
	if err != nil {
		return record.Record{}, &RowError{Layout: KindListing, Row: i, Err: err}
	}

	href, _ := anchor.Attr("href")
	return record.Record{
		URL:   strings.TrimSpace(href),
		Name:  normalize.Text(anchor.Text()),
		State: resolveJurisdiction(segs),
		EOW:   record.String(eow),
		Cause: record.String(fragmentText(segs[segCause].markup, normalize.LabelCauseOfDeath)),
	}, nil
}

// fragmentText reduces a labeled markup fragment to its value: leading tags
// and the label are dropped, then everything from the next tag onward.
func fragmentText(markup, label string) string {
	s := leadingTags.ReplaceAllString(strings.TrimSpace(markup), "")
	s = normalize.StripLabel(s, label)
	s = leadingTags.ReplaceAllString(s, "")
	return normalize.Text(normalize.StripTrailingMarkup(s))
}

// splitSegments splits a cell's children on <br> elements. Consecutive breaks
// collapse, so "<br></br>" does not produce an empty segment.
func splitSegments(cell *goquery.Selection) []segment {
	var (
		segs   []segment
		markup bytes.Buffer
		text   strings.Builder
	)

	flush := func() {
		segs = append(segs, segment{
			markup: strings.TrimSpace(markup.String()),
			text:   normalize.Text(text.String()),
		})
		markup.Reset()
		text.Reset()
	}

	for _, node := range cell.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Br {
				if strings.TrimSpace(markup.String()) == "" && len(segs) > 0 {
					continue
				}
				flush()
				continue
			}
			if err := html.Render(&markup, c); err != nil {
				continue
			}
			appendText(&text, c)
		}
	}
	flush()
	return segs
}

func appendText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(b, c)
	}
}
