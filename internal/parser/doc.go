// Package parser extracts memorial records from registry search pages.
//
// A fetched page is classified once by Classify into one of three kinds: a
// listing (a table of up to 25 results plus a "Displaying officers X - Y of N"
// total), a detail page (the registry redirects a search with exactly one hit
// straight to that officer's memorial), or an empty result ("No Matches Found").
// Parse then dispatches on the kind.
//
// Listing rows are inconsistent: each result cell is a run of <br>-separated
// fragments whose count and content vary, so the jurisdiction is resolved by
// an ordered chain of rules, first match wins.
package parser
