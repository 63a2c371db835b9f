package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pfrederiksen/odmp-harvest/internal/record"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// Summary describes a completed download
type Summary struct {
	CompletedAt time.Time     `json:"completed_at"`
	Output      string        `json:"output"`
	StartYear   int           `json:"start_year"`
	EndYear     int           `json:"end_year"`
	Years       int           `json:"years"`
	Pages       int           `json:"pages"`
	Records     int           `json:"records"`
	Skipped     int           `json:"skipped"`
	Retries     int64         `json:"retries"`
	Duration    time.Duration `json:"-"`
	SizeBytes   int64         `json:"size_bytes"`
}

// MarshalJSON reports the duration in seconds rather than nanoseconds
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		DurationSeconds float64 `json:"duration_seconds"`
	}{plain(s), s.Duration.Seconds()})
}

// RecordList is the result of the list command
type RecordList struct {
	Records []record.Record `json:"records"`
	Count   int             `json:"count"`
}

// WriteSummary writes a download summary in the specified format
func WriteSummary(w io.Writer, s *Summary, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, s)
	case FormatText:
		return writeSummaryText(w, s)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteRecords writes stored records in the specified format
func WriteRecords(w io.Writer, list *RecordList, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, list)
	case FormatText:
		return writeRecordsText(w, list, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeSummaryText(w io.Writer, s *Summary) error {
	years := fmt.Sprintf("%d-%d", s.StartYear, s.EndYear)
	if s.StartYear == s.EndYear {
		years = fmt.Sprintf("%d", s.StartYear)
	}

	fmt.Fprintf(w, "\nStored %s records for %s (%s pages", humanize.Comma(int64(s.Records)), years, humanize.Comma(int64(s.Pages)))
	if s.Skipped > 0 {
		fmt.Fprintf(w, ", %s malformed rows skipped", humanize.Comma(int64(s.Skipped)))
	}
	if s.Retries > 0 {
		fmt.Fprintf(w, ", %s retries", humanize.Comma(s.Retries))
	}
	fmt.Fprintf(w, ") in %s\n", s.Duration.Round(time.Second))

	if s.SizeBytes > 0 {
		fmt.Fprintf(w, "Database: %s (%s)\n", s.Output, humanize.Bytes(uint64(s.SizeBytes)))
	} else {
		fmt.Fprintf(w, "Database: %s\n", s.Output)
	}
	return nil
}

func writeRecordsText(w io.Writer, list *RecordList, verbose bool) error {
	if list.Count == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	for _, rec := range list.Records {
		fmt.Fprintf(w, "%s  %s  %s", orDash(rec.State), orDash(rec.EOW), rec.Name)
		if cause := record.Value(rec.Cause); cause != "" {
			fmt.Fprintf(w, " (%s)", cause)
		}
		fmt.Fprintln(w)
		if verbose {
			fmt.Fprintf(w, "    URL: %s\n", rec.URL)
		}
	}
	fmt.Fprintf(w, "\nTotal: %s records\n", humanize.Comma(int64(list.Count)))
	return nil
}

func orDash(p *string) string {
	if p == nil || *p == "" {
		return "--"
	}
	return *p
}
