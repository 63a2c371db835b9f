// Package normalize turns raw text pulled from registry pages into canonical
// field values.
//
// Every function is pure. Dates become ISO calendar dates (YYYY-MM-DD),
// jurisdiction names become postal codes via the locality table, and labeled
// fragments such as "EOW: ..." or "Cause of Death: ..." lose their labels and
// any trailing markup.
package normalize
