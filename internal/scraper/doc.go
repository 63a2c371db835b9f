// Package scraper fetches search result pages from the Officer Down Memorial Page.
//
// Every request is a GET against the registry's search endpoint with a fixed
// parameter set (name, agency, state, from, to, cause, filter=all); callers
// override the year range and result offset per page. Responses are parsed into
// goquery documents for the parser package. Transient failures (network errors
// and 5xx responses) are retried a bounded number of times with a constant delay;
// 4xx responses fail immediately.
package scraper
