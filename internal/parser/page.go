package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Kind identifies the layout of a fetched page
type Kind int

const (
	KindEmpty Kind = iota
	KindDetail
	KindListing
)

func (k Kind) String() string {
	switch k {
	case KindListing:
		return "listing"
	case KindDetail:
		return "detail"
	default:
		return "empty"
	}
}

// NoMatchesText marks a search that matched nothing
const NoMatchesText = "No Matches Found"

var (
	displayingSel = cascadia.MustCompile(`p:contains("Displaying officers")`)

	totalOfPattern      = regexp.MustCompile(`of ([0-9]+)`)
	totalThroughPattern = regexp.MustCompile(`through ([0-9]+)`)
)

// Page is a classified search response
type Page struct {
	Kind Kind
	// Total is the ending offset reported by a listing; zero for other kinds.
	Total int
	Doc   *goquery.Document
}

// Classify inspects the total-count indicator and decides which layout doc is.
// Without an indicator the registry either redirected to a single detail page
// or rendered its no-matches notice.
func Classify(doc *goquery.Document) Page {
	if total, ok := EndingOffset(doc); ok {
		return Page{Kind: KindListing, Total: total, Doc: doc}
	}

	markup, _ := doc.Html()
	if strings.Contains(markup, NoMatchesText) {
		return Page{Kind: KindEmpty, Doc: doc}
	}
	return Page{Kind: KindDetail, Doc: doc}
}

// EndingOffset returns the total match count from the "Displaying officers"
// paragraph. ok is false when there is no such paragraph or it carries no count.
func EndingOffset(doc *goquery.Document) (total int, ok bool) {
	p := doc.FindMatcher(displayingSel)
	if p.Length() == 0 {
		return 0, false
	}

	text := p.First().Text()
	for _, pattern := range []*regexp.Regexp{totalOfPattern, totalThroughPattern} {
		if m := pattern.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return n, true
		}
	}
	return 0, false
}
