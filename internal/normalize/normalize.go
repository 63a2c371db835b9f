package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pfrederiksen/odmp-harvest/internal/locality"
	"golang.org/x/net/html"
)

// Field labels as rendered by the registry
const (
	LabelEOW          = "EOW:"
	LabelEndOfWatch   = "End of Watch:"
	LabelCause        = "Cause:"
	LabelCauseOfDeath = "Cause of Death:"
	LabelLocation     = "Location:"
)

// ISODate is the output layout for end-of-watch dates
const ISODate = "2006-01-02"

// minYear rejects degenerate parses; the registry's records begin in the 1700s
const minYear = 1000

// ErrUnparseableDate is returned when no date grammar accepts the input
var ErrUnparseableDate = errors.New("unparseable date")

var (
	trailingMarkup = regexp.MustCompile(`(?s)\s*<.+$`)
	trailingCode   = regexp.MustCompile(`[A-Z]{2}$`)
	weekdayPrefix  = regexp.MustCompile(`^(?i)(monday|tuesday|wednesday|thursday|friday|saturday|sunday),?\s+`)
)

// dateLayouts are tried in order before falling back to dateparse
var dateLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan. 2, 2006",
	"1/2/2006",
	ISODate,
}

// StripLabel removes label and any whitespace after it from the start of s.
// Text that does not start with label is returned trimmed but otherwise intact.
func StripLabel(s, label string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, label); ok {
		return strings.TrimSpace(rest)
	}
	return s
}

// StripTrailingMarkup drops everything from the first tag onward, along with
// the whitespace before it.
func StripTrailingMarkup(s string) string {
	return trailingMarkup.ReplaceAllString(s, "")
}

// Text unescapes HTML entities, collapses runs of whitespace and trims.
func Text(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// Date parses a human-written calendar date into YYYY-MM-DD.
// A leading weekday ("Saturday, January 3, 1998") is ignored.
func Date(raw string) (string, error) {
	s := weekdayPrefix.ReplaceAllString(Text(raw), "")
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrUnparseableDate)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), nil
		}
	}

	// dateparse can accept free text as a literal layout and yield year 0
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.Year() < minYear {
		return "", fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
	}
	return t.Format(ISODate), nil
}

// LabeledDate strips label from raw and parses the remainder as a date.
func LabeledDate(raw, label string) (string, error) {
	return Date(StripLabel(Text(raw), label))
}

// Jurisdiction maps a full jurisdiction name to its postal code using an
// exact match against the locality table.
func Jurisdiction(name string) (string, bool) {
	return locality.Code(name)
}

// TrailingCode returns the two uppercase letters that end s, if any. The
// letters are taken as already canonical and not checked against the table.
func TrailingCode(s string) (string, bool) {
	code := trailingCode.FindString(strings.TrimSpace(s))
	return code, code != ""
}
