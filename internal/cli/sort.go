package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/odmp-harvest/internal/record"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByStored SortOrder = "stored"
	SortByEOW    SortOrder = "eow"
	SortByState  SortOrder = "state"
	SortByName   SortOrder = "name"
)

func parseSortOrder(s string) (SortOrder, bool) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
	case SortByStored, SortByEOW, SortByState, SortByName:
		return order, true
	default:
		return "", false
	}
}

// sortRecords sorts records in place. SortByStored keeps insertion order.
func sortRecords(records []record.Record, order SortOrder) {
	switch order {
	case SortByEOW:
		sort.SliceStable(records, func(i, j int) bool {
			return compareByEOW(records[i], records[j])
		})
	case SortByState:
		sort.SliceStable(records, func(i, j int) bool {
			si, sj := records[i].State, records[j].State
			if (si == nil) != (sj == nil) {
				return sj == nil
			}
			if si != nil && *si != *sj {
				return *si < *sj
			}
			// If states are equal, sort by date
			return compareByEOW(records[i], records[j])
		})
	case SortByName:
		sort.SliceStable(records, func(i, j int) bool {
			ni, nj := strings.ToLower(records[i].Name), strings.ToLower(records[j].Name)
			if ni != nj {
				return ni < nj
			}
			return compareByEOW(records[i], records[j])
		})
	}
}

// compareByEOW orders ISO dates ascending with undated records last
func compareByEOW(i, j record.Record) bool {
	if i.EOW != nil && j.EOW != nil {
		return *i.EOW < *j.EOW
	}
	return i.EOW != nil && j.EOW == nil
}

// filterByState keeps records whose jurisdiction code is state
func filterByState(records []record.Record, state string) []record.Record {
	if state == "" {
		return records
	}
	filtered := make([]record.Record, 0)
	for _, rec := range records {
		if rec.State != nil && *rec.State == state {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}
