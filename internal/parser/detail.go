package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/pfrederiksen/odmp-harvest/internal/normalize"
	"github.com/pfrederiksen/odmp-harvest/internal/record"
)

var (
	headerSel   = cascadia.MustCompile(`div#memorial_featuredInfo_right`)
	canonSel    = cascadia.MustCompile(`meta[property="og:url"]`)
	titleSel    = cascadia.MustCompile(`title`)
	locationSel = cascadia.MustCompile(`b:containsOwn("Location:")`)
	causeSel    = cascadia.MustCompile(`b:containsOwn("Cause:")`)

	titleStatePattern = regexp.MustCompile(`, ([^,]+)$`)
	endOfWatchPattern = regexp.MustCompile(`End of Watch: ([^<]+)`)
)

// detailJurisdiction lists the places a detail page may name its jurisdiction.
// Each source returns the raw name and whether it applies; the first source
// that applies decides, even when its name is not in the locality table.
var detailJurisdiction = []func(doc *goquery.Document) (string, bool){
	// "Patrolman John Doe, Springfield Police Department, Ohio"
	func(doc *goquery.Document) (string, bool) {
		title := strings.TrimSpace(doc.FindMatcher(titleSel).First().Text())
		m := titleStatePattern.FindStringSubmatch(title)
		if m == nil {
			return "", false
		}
		if _, ok := normalize.Jurisdiction(m[1]); !ok {
			return "", false
		}
		return m[1], true
	},
	func(doc *goquery.Document) (string, bool) {
		p := doc.FindMatcher(locationSel).First().Parent()
		if p.Length() == 0 {
			return "", false
		}
		return normalize.StripLabel(normalize.Text(p.Text()), normalize.LabelLocation), true
	},
}

// ParseDetail builds the single record on an officer's memorial page. Missing
// jurisdiction, end of watch, or cause leave the field nil; an end of watch that
// is present but unparseable is a RowError.
func ParseDetail(doc *goquery.Document) (record.Record, error) {
	header := doc.FindMatcher(headerSel).First()
	url, _ := doc.FindMatcher(canonSel).First().Attr("content")

	rec := record.Record{
		URL:  strings.TrimSpace(url),
		Name: normalize.Text(header.Find("h4").First().Text() + " " + header.Find("h3").First().Text()),
	}

	for _, source := range detailJurisdiction {
		if name, ok := source(doc); ok {
			if code, found := normalize.Jurisdiction(name); found {
				rec.State = record.String(code)
			}
			break
		}
	}

	if markup, err := header.Html(); err == nil {
		if m := endOfWatchPattern.FindStringSubmatch(markup); m != nil {
			eow, err := normalize.Date(m[1])
			if err != nil {
				return record.Record{}, &RowError{Layout: KindDetail, Err: err}
			}
			rec.EOW = record.String(eow)
		}
	}

	if p := doc.FindMatcher(causeSel).First().Parent(); p.Length() > 0 {
		rec.Cause = record.String(normalize.StripLabel(normalize.Text(p.Text()), normalize.LabelCause))
	}

	return rec, nil
}
