package parser

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/odmp-harvest/internal/logger"
	"github.com/pfrederiksen/odmp-harvest/internal/record"
)

// ErrMalformedRow is wrapped by RowError when a row lacks required structure
var ErrMalformedRow = errors.New("malformed row")

// RowError reports a row that could not be turned into a record
type RowError struct {
	Layout Kind
	Row    int
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Layout, e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Options configures a Parser
type Options struct {
	// SkipMalformed downgrades RowErrors to a logged warning and drops the row.
	// When false a RowError aborts parsing of the page.
	SkipMalformed bool
	Logger        *logger.Logger
	Metrics       *logger.Metrics
}

// Parser turns classified pages into records
type Parser struct {
	skipMalformed bool
	log           *logger.Logger
	metrics       *logger.Metrics
}

// Result holds the records extracted from one page
type Result struct {
	Records []record.Record
	Skipped int
}

// New creates a Parser. Nil logger and metrics fall back to the package defaults.
func New(opts Options) *Parser {
	p := &Parser{
		skipMalformed: opts.SkipMalformed,
		log:           opts.Logger,
		metrics:       opts.Metrics,
	}
	if p.log == nil {
		p.log = logger.Default()
	}
	if p.metrics == nil {
		p.metrics = logger.DefaultMetrics()
	}
	return p
}

// Parse extracts every record on page according to its kind.
func (p *Parser) Parse(page Page) (Result, error) {
	switch page.Kind {
	case KindListing:
		if page.Total == 0 {
			return Result{}, nil
		}
		return p.parseListing(page.Doc)
	case KindDetail:
		rec, err := ParseDetail(page.Doc)
		if err != nil {
			if herr := p.handleRowError(err); herr != nil {
				return Result{}, herr
			}
			return Result{Skipped: 1}, nil
		}
		return Result{Records: []record.Record{rec}}, nil
	default:
		return Result{}, nil
	}
}

func (p *Parser) parseListing(doc *goquery.Document) (Result, error) {
	var res Result
	for i, cell := range listingCells(doc) {
		rec, err := ParseListingRow(i, cell)
		if err != nil {
			if herr := p.handleRowError(err); herr != nil {
				return res, herr
			}
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// handleRowError returns err unchanged in strict mode; otherwise it logs and
// counts the skipped row and returns nil.
func (p *Parser) handleRowError(err error) error {
	if !p.skipMalformed {
		return err
	}

	fields := logger.Fields{}
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		fields["layout"] = rowErr.Layout.String()
		fields["row"] = rowErr.Row
	}
	p.log.Warn("skipping malformed row", fields, err)
	p.metrics.IncrCounter(logger.MetricRowsSkipped)
	return nil
}
