package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pfrederiksen/odmp-harvest/internal/record"
	"github.com/pfrederiksen/odmp-harvest/internal/storage"
	"github.com/spf13/cobra"
)

type listOptions struct {
	output  string
	sort    string
	state   string
	format  string
	verbose bool
}

func newListCmd() *cobra.Command {
	opts := &listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the records stored by the last download",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "SQLite file written by download (default ./"+storage.DefaultFilename+")")
	cmd.Flags().StringVar(&opts.sort, "sort", string(SortByStored), "Sort order: stored, eow, state or name")
	cmd.Flags().StringVar(&opts.state, "state", "", "Only list records with this jurisdiction code (e.g., OH)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Include record URLs")

	return cmd
}

func runList(cmd *cobra.Command, opts *listOptions) (err error) {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}
	order, ok := parseSortOrder(opts.sort)
	if !ok {
		return fmt.Errorf("invalid sort order: %s (must be 'stored', 'eow', 'state' or 'name')", opts.sort)
	}
	state := strings.ToUpper(strings.TrimSpace(opts.state))

	path := opts.output
	if path == "" {
		if path, err = storage.DefaultPath(); err != nil {
			return err
		}
	}
	// Opening would create an empty database; a missing file is a usage error here.
	if _, serr := os.Stat(path); errors.Is(serr, os.ErrNotExist) {
		return fmt.Errorf("no database at %s (run download first)", path)
	}

	store, err := storage.Open(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", cerr)
		}
	}()

	records, err := store.Records(cmd.Context())
	if err != nil {
		return err
	}
	records = filterByState(records, state)
	if records == nil {
		records = []record.Record{}
	}
	sortRecords(records, order)

	list := &RecordList{Records: records, Count: len(records)}
	if err := WriteRecords(cmd.OutOrStdout(), list, format, opts.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
