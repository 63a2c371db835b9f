// Package cli implements the command-line interface for odmp-harvest.
//
// The download command performs a full resync: it validates and locks the
// output database, clears it, then walks every year in the requested range and
// stores each memorial record as it is parsed, printing one progress line per
// page. The list command prints what a previous download stored, sorted and
// formatted as text or JSON.
package cli
