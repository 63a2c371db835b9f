package harvest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/odmp-harvest/internal/logger"
	"github.com/pfrederiksen/odmp-harvest/internal/parser"
	"github.com/pfrederiksen/odmp-harvest/internal/record"
	"github.com/pfrederiksen/odmp-harvest/internal/scraper"
)

// PageSize is the number of results the registry returns per listing page
const PageSize = 25

// ErrYearRange is returned when the start year is after the end year
var ErrYearRange = errors.New("start year is after end year")

// errStopped ends a walk early when the consumer stops iterating
var errStopped = errors.New("iteration stopped")

// Fetcher retrieves one search page for the given query overrides
type Fetcher interface {
	Fetch(ctx context.Context, overrides url.Values) (*goquery.Document, error)
}

// Sink receives harvested records
type Sink interface {
	Reset(ctx context.Context) error
	Insert(ctx context.Context, rec record.Record) error
}

// Progress describes the page about to be parsed. Page is 1-based.
type Progress struct {
	Year  int
	Page  int
	Pages int
}

// Stats summarizes a harvest run
type Stats struct {
	Years    int
	Pages    int
	Records  int
	Skipped  int
	Duration time.Duration
}

// Options configures a Harvester
type Options struct {
	PageSize int
	Parser   parser.Options
	Progress func(Progress)
	Logger   *logger.Logger
	Metrics  *logger.Metrics
}

// Harvester drives the year and offset traversal
type Harvester struct {
	fetcher  Fetcher
	parser   *parser.Parser
	pageSize int
	progress func(Progress)
	log      *logger.Logger
	metrics  *logger.Metrics
}

// New creates a Harvester reading pages from fetcher
func New(fetcher Fetcher, opts Options) *Harvester {
	h := &Harvester{
		fetcher:  fetcher,
		pageSize: PageSize,
		progress: opts.Progress,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if opts.PageSize > 0 {
		h.pageSize = opts.PageSize
	}
	if h.log == nil {
		h.log = logger.Default()
	}
	if h.metrics == nil {
		h.metrics = logger.DefaultMetrics()
	}

	popts := opts.Parser
	if popts.Logger == nil {
		popts.Logger = h.log
	}
	if popts.Metrics == nil {
		popts.Metrics = h.metrics
	}
	h.parser = parser.New(popts)
	return h
}

// Records returns a lazy sequence of every record from startYear through
// endYear inclusive. Nothing is fetched until the sequence is ranged over.
// On failure the error is yielded once with a zero Record and the sequence ends.
func (h *Harvester) Records(ctx context.Context, startYear, endYear int) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		var stats Stats
		err := h.walk(ctx, startYear, endYear, &stats, func(rec record.Record) bool {
			return yield(rec, nil)
		})
		if err != nil && !errors.Is(err, errStopped) {
			yield(record.Record{}, err)
		}
	}
}

// Run resets sink and stores every record from startYear through endYear.
// Records are inserted as each page is parsed, so a failed run leaves the
// records gathered so far in the sink.
func (h *Harvester) Run(ctx context.Context, startYear, endYear int, sink Sink) (Stats, error) {
	if startYear > endYear {
		return Stats{}, fmt.Errorf("%w: %d > %d", ErrYearRange, startYear, endYear)
	}

	began := time.Now()
	if err := sink.Reset(ctx); err != nil {
		return Stats{}, fmt.Errorf("resetting sink: %w", err)
	}

	var (
		stats     Stats
		insertErr error
	)
	err := h.walk(ctx, startYear, endYear, &stats, func(rec record.Record) bool {
		if insertErr = sink.Insert(ctx, rec); insertErr != nil {
			return false
		}
		stats.Records++
		h.metrics.IncrCounter(logger.MetricRecordsStored)
		return true
	})
	stats.Duration = time.Since(began)

	if insertErr != nil {
		return stats, fmt.Errorf("storing record: %w", insertErr)
	}
	if err != nil {
		return stats, err
	}

	h.log.Info("harvest complete", logger.Fields{
		"years":    stats.Years,
		"pages":    stats.Pages,
		"records":  stats.Records,
		"skipped":  stats.Skipped,
		"duration": stats.Duration.String(),
	})
	return stats, nil
}

// walk visits every page in the year range and hands each record to emit.
// It returns errStopped when emit returns false.
func (h *Harvester) walk(ctx context.Context, startYear, endYear int, stats *Stats, emit func(record.Record) bool) error {
	if startYear > endYear {
		return fmt.Errorf("%w: %d > %d", ErrYearRange, startYear, endYear)
	}

	for year := startYear; year <= endYear; year++ {
		if err := h.walkYear(ctx, year, stats, emit); err != nil {
			return err
		}
		stats.Years++
	}
	return nil
}

func (h *Harvester) walkYear(ctx context.Context, year int, stats *Stats, emit func(record.Record) bool) error {
	h.log.Debug("harvesting year", logger.Fields{"year": year})

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := h.fetcher.Fetch(ctx, scraper.YearPage(year, offset))
		if err != nil {
			return fmt.Errorf("year %d offset %d: %w", year, offset, err)
		}
		page := parser.Classify(doc)
		stats.Pages++

		if h.progress != nil {
			h.progress(Progress{
				Year:  year,
				Page:  offset/h.pageSize + 1,
				Pages: h.pageCount(page),
			})
		}

		res, err := h.parser.Parse(page)
		if err != nil {
			return fmt.Errorf("year %d offset %d: %w", year, offset, err)
		}
		stats.Skipped += res.Skipped

		for _, rec := range res.Records {
			if !emit(rec) {
				return errStopped
			}
		}

		if page.Kind != parser.KindListing {
			return nil
		}
		offset += h.pageSize
		if offset >= page.Total {
			return nil
		}
	}
}

// pageCount is the number of listing pages a year spans; at least one
func (h *Harvester) pageCount(page parser.Page) int {
	if page.Kind != parser.KindListing || page.Total <= 0 {
		return 1
	}
	return (page.Total + h.pageSize - 1) / h.pageSize
}
