// Package harvest walks the registry one year at a time and feeds every record
// it finds to a sink.
//
// Each year is requested page by page at offsets 0, 25, 50, ... until the
// offset reaches the total reported by the first listing. A year whose search
// redirects to a single memorial yields that one record; a year with no
// matches yields nothing. Pages are fetched strictly one after another.
package harvest
