// Package locality holds the fixed table of U.S. state, territory, and federal
// district names and their two-letter postal codes.
//
// The table is the only source for name-to-code mapping in odmp-harvest. It is
// read-only; callers look names up through Code and never see the map itself.
package locality
