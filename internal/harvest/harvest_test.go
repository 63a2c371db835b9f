package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/odmp-harvest/internal/logger"
	"github.com/pfrederiksen/odmp-harvest/internal/parser"
	"github.com/pfrederiksen/odmp-harvest/internal/record"
	"github.com/pfrederiksen/odmp-harvest/internal/scraper"
	"github.com/pfrederiksen/odmp-harvest/internal/storage"
)

const noMatches = `<html><body><p class="notice">No Matches Found</p></body></html>`

// fakeFetcher serves canned pages keyed by "year/offset"; anything else is an
// empty result.
type fakeFetcher struct {
	pages map[string]string
	err   error
	calls []url.Values
}

func (f *fakeFetcher) Fetch(ctx context.Context, overrides url.Values) (*goquery.Document, error) {
	f.calls = append(f.calls, overrides)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[overrides.Get(scraper.ParamFrom)+"/"+overrides.Get(scraper.ParamOffset)]
	if !ok {
		body = noMatches
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

func (f *fakeFetcher) offsets() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Get(scraper.ParamOffset)
	}
	return out
}

// memSink records calls in order
type memSink struct {
	events    []string
	records   []record.Record
	insertErr error
}

func (s *memSink) Reset(ctx context.Context) error {
	s.events = append(s.events, "reset")
	s.records = nil
	return nil
}

func (s *memSink) Insert(ctx context.Context, rec record.Record) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.events = append(s.events, "insert")
	s.records = append(s.records, rec)
	return nil
}

// listing builds a listing page reporting total with n well-formed rows
func listing(total, first, n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="content"><div id="pagination"></div>`)
	fmt.Fprintf(&b, `<p>Displaying officers %d - %d of %d</p><div><table>`, first+1, first+n, total)
	for i := first; i < first+n; i++ {
		fmt.Fprintf(&b, `<tr><td></td><td><a href="https://www.odmp.org/officer/%d">Officer %d</a><br>`, i, i)
		b.WriteString(`Austin Police Department, TX<br>EOW: January 3, 1999<br>Cause of Death: Gunfire</td></tr>`)
	}
	b.WriteString(`</table></div></div></body></html>`)
	return b.String()
}

// yearListing builds every page of a year holding total rows
func yearListing(year, total int) map[string]string {
	pages := map[string]string{}
	if total == 0 {
		pages[fmt.Sprintf("%d/0", year)] = listing(0, 0, 0)
		return pages
	}
	for offset := 0; offset < total; offset += PageSize {
		n := min(PageSize, total-offset)
		pages[fmt.Sprintf("%d/%d", year, offset)] = listing(total, offset, n)
	}
	return pages
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + name)
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return string(data)
}

func quietHarvester(f Fetcher, opts Options) (*Harvester, *logger.Metrics) {
	m := logger.NewMetrics()
	opts.Logger = logger.New(logger.LevelError, io.Discard)
	opts.Metrics = m
	return New(f, opts), m
}

func TestRun_Pagination(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		wantOffsets []string
		wantPages   int
	}{
		{"zero results", 0, []string{"0"}, 1},
		{"single partial page", 7, []string{"0"}, 1},
		{"exactly one page", 25, []string{"0"}, 1},
		{"one over a page", 26, []string{"0", "25"}, 2},
		{"exact multiple", 50, []string{"0", "25"}, 2},
		{"three pages", 60, []string{"0", "25", "50"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{pages: yearListing(1999, tt.total)}
			var progress []Progress
			h, m := quietHarvester(f, Options{
				Progress: func(p Progress) { progress = append(progress, p) },
			})
			sink := &memSink{}

			stats, err := h.Run(context.Background(), 1999, 1999, sink)
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}

			if got := f.offsets(); strings.Join(got, ",") != strings.Join(tt.wantOffsets, ",") {
				t.Errorf("fetched offsets = %v, want %v", got, tt.wantOffsets)
			}
			if len(sink.records) != tt.total {
				t.Errorf("stored %d records, want %d", len(sink.records), tt.total)
			}
			if stats.Records != tt.total || stats.Pages != len(tt.wantOffsets) || stats.Years != 1 {
				t.Errorf("stats = %+v, want %d records over %d pages in 1 year", stats, tt.total, len(tt.wantOffsets))
			}
			if got := m.GetSnapshot().Counter(logger.MetricRecordsStored); got != int64(tt.total) {
				t.Errorf("%s = %d, want %d", logger.MetricRecordsStored, got, tt.total)
			}

			if len(progress) != len(tt.wantOffsets) {
				t.Fatalf("progress reported %d times, want %d", len(progress), len(tt.wantOffsets))
			}
			for i, p := range progress {
				want := Progress{Year: 1999, Page: i + 1, Pages: tt.wantPages}
				if p != want {
					t.Errorf("progress[%d] = %+v, want %+v", i, p, want)
				}
			}
		})
	}
}

func TestRun_PageKinds(t *testing.T) {
	tests := []struct {
		name        string
		page        string
		wantRecords int
	}{
		{"detail redirect", "detail.html", 1},
		{"no matches", "no_matches.html", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{pages: map[string]string{"2001/0": fixture(t, tt.page)}}
			h, _ := quietHarvester(f, Options{})
			sink := &memSink{}

			if _, err := h.Run(context.Background(), 2001, 2001, sink); err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if len(f.calls) != 1 {
				t.Errorf("fetched %d pages, want 1", len(f.calls))
			}
			if len(sink.records) != tt.wantRecords {
				t.Errorf("stored %d records, want %d", len(sink.records), tt.wantRecords)
			}
		})
	}
}

func TestRun_YearsAscend(t *testing.T) {
	f := &fakeFetcher{pages: yearListing(1999, 3)}
	h, _ := quietHarvester(f, Options{})
	sink := &memSink{}

	stats, err := h.Run(context.Background(), 1998, 2000, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	var years []string
	for _, c := range f.calls {
		if c.Get(scraper.ParamFrom) != c.Get(scraper.ParamTo) {
			t.Errorf("query spans %s-%s, want a single year", c.Get(scraper.ParamFrom), c.Get(scraper.ParamTo))
		}
		years = append(years, c.Get(scraper.ParamFrom))
	}
	if got := strings.Join(years, ","); got != "1998,1999,2000" {
		t.Errorf("fetched years = %s, want 1998,1999,2000", got)
	}
	if stats.Years != 3 || stats.Records != 3 {
		t.Errorf("stats = %+v, want 3 years and 3 records", stats)
	}
}

func TestRun_ResetsFirst(t *testing.T) {
	f := &fakeFetcher{pages: yearListing(1999, 2)}
	h, _ := quietHarvester(f, Options{})
	sink := &memSink{records: []record.Record{{Name: "stale"}}}

	if _, err := h.Run(context.Background(), 1999, 1999, sink); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := strings.Join(sink.events, ","); got != "reset,insert,insert" {
		t.Errorf("sink calls = %s, want reset,insert,insert", got)
	}
	for _, rec := range sink.records {
		if rec.Name == "stale" {
			t.Error("record from before the run survived Reset")
		}
	}
}

func TestRun_YearRange(t *testing.T) {
	f := &fakeFetcher{}
	h, _ := quietHarvester(f, Options{})
	sink := &memSink{}

	_, err := h.Run(context.Background(), 2001, 2000, sink)
	if !errors.Is(err, ErrYearRange) {
		t.Fatalf("Run() error = %v, want ErrYearRange", err)
	}
	if len(f.calls) != 0 || len(sink.events) != 0 {
		t.Errorf("Run() touched fetcher (%d) or sink (%v) on a bad range", len(f.calls), sink.events)
	}
}

func TestRun_FetchErrorIsFatal(t *testing.T) {
	fetchErr := &scraper.StatusError{StatusCode: 503, URL: "https://www.odmp.org/search"}
	f := &fakeFetcher{err: fetchErr}
	h, _ := quietHarvester(f, Options{})

	_, err := h.Run(context.Background(), 1999, 2000, &memSink{})
	if !scraper.IsStatus(err, 503) {
		t.Fatalf("Run() error = %v, want wrapped status 503", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("fetched %d pages after a failure, want 1", len(f.calls))
	}
}

func TestRun_InsertErrorIsFatal(t *testing.T) {
	insertErr := errors.New("disk full")
	f := &fakeFetcher{pages: yearListing(1999, 30)}
	h, _ := quietHarvester(f, Options{})

	_, err := h.Run(context.Background(), 1999, 1999, &memSink{insertErr: insertErr})
	if !errors.Is(err, insertErr) {
		t.Fatalf("Run() error = %v, want %v", err, insertErr)
	}
	if len(f.calls) != 1 {
		t.Errorf("fetched %d pages after insert failure, want 1", len(f.calls))
	}
}

func TestRun_MalformedRows(t *testing.T) {
	bad := `<html><body><div id="content"><div id="pagination"></div>
<p>Displaying officers 1 - 2 of 2</p><div><table>
<tr><td></td><td><a href="https://www.odmp.org/officer/1">Officer One</a><br>Agency, TX<br>EOW: 13/45/1999<br>Cause of Death: Gunfire</td></tr>
<tr><td></td><td><a href="https://www.odmp.org/officer/2">Officer Two</a><br>Agency, TX<br>EOW: January 3, 1999<br>Cause of Death: Gunfire</td></tr>
</table></div></div></body></html>`

	t.Run("strict", func(t *testing.T) {
		f := &fakeFetcher{pages: map[string]string{"1999/0": bad}}
		h, _ := quietHarvester(f, Options{})

		_, err := h.Run(context.Background(), 1999, 1999, &memSink{})
		var rowErr *parser.RowError
		if !errors.As(err, &rowErr) {
			t.Fatalf("Run() error = %v, want *parser.RowError", err)
		}
	})

	t.Run("skip", func(t *testing.T) {
		f := &fakeFetcher{pages: map[string]string{"1999/0": bad}}
		h, m := quietHarvester(f, Options{Parser: parser.Options{SkipMalformed: true}})
		sink := &memSink{}

		stats, err := h.Run(context.Background(), 1999, 1999, sink)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if stats.Skipped != 1 || len(sink.records) != 1 {
			t.Errorf("skipped %d and stored %d, want 1 and 1", stats.Skipped, len(sink.records))
		}
		if got := m.GetSnapshot().Counter(logger.MetricRowsSkipped); got != 1 {
			t.Errorf("%s = %d, want 1", logger.MetricRowsSkipped, got)
		}
	})
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{pages: yearListing(1999, 3)}
	h, _ := quietHarvester(f, Options{})

	_, err := h.Run(ctx, 1999, 1999, &memSink{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("fetched %d pages after cancel, want 0", len(f.calls))
	}
}

func TestRecords_Lazy(t *testing.T) {
	f := &fakeFetcher{pages: yearListing(1999, 60)}
	h, _ := quietHarvester(f, Options{})

	seq := h.Records(context.Background(), 1999, 1999)
	if len(f.calls) != 0 {
		t.Fatalf("Records() fetched %d pages before iteration", len(f.calls))
	}

	n := 0
	for _, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		n++
		if n == 3 {
			break
		}
	}
	if len(f.calls) != 1 {
		t.Errorf("fetched %d pages for the first 3 records, want 1", len(f.calls))
	}
}

func TestRecords_YieldsError(t *testing.T) {
	fetchErr := errors.New("connection reset")
	h, _ := quietHarvester(&fakeFetcher{err: fetchErr}, Options{})

	var errs []error
	for rec, err := range h.Records(context.Background(), 1999, 1999) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.Errorf("unexpected record %v", rec)
	}
	if len(errs) != 1 || !errors.Is(errs[0], fetchErr) {
		t.Errorf("errors = %v, want one wrapping %v", errs, fetchErr)
	}
}

// Two-record year where each record resolves its jurisdiction by a different
// rule, stored in SQLite and harvested twice.
func TestRun_EndToEnd1999(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{pages: map[string]string{"1999/0": fixture(t, "listing_1999.html")}}
	h, _ := quietHarvester(f, Options{})

	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "odmp.db"))
	if err != nil {
		t.Fatalf("storage.Open() error: %v", err)
	}
	defer store.Close()

	want := []record.Record{
		{
			URL:   "https://www.odmp.org/officer/1001-patrolman-john-doe",
			Name:  "Patrolman John Doe",
			State: record.String("OH"),
			EOW:   record.String("1999-01-03"),
			Cause: record.String("Gunfire"),
		},
		{
			URL:   "https://www.odmp.org/officer/1002-deputy-sheriff-jane-roe",
			Name:  "Deputy Sheriff Jane Roe",
			State: record.String("OH"),
			EOW:   record.String("1999-03-14"),
			Cause: record.String("Automobile crash"),
		},
	}

	var first []record.Record
	for run := 1; run <= 2; run++ {
		if _, err := h.Run(ctx, 1999, 1999, store); err != nil {
			t.Fatalf("run %d: Run() error: %v", run, err)
		}
		got, err := store.Records(ctx)
		if err != nil {
			t.Fatalf("run %d: Records() error: %v", run, err)
		}
		if len(got) != len(want) {
			t.Fatalf("run %d: stored %d rows, want %d", run, len(got), len(want))
		}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Errorf("run %d row %d = %v, want %v", run, i, got[i], want[i])
			}
		}
		if run == 1 {
			first = got
			continue
		}
		for i := range first {
			if !got[i].Equal(first[i]) {
				t.Errorf("rerun row %d = %v, first run had %v", i, got[i], first[i])
			}
		}
	}
}
