// Package record defines the normalized memorial record produced by a harvest.
//
// A Record is built once from one page's markup, normalized once, and stored
// once. Fields that the source page may omit (state, end of watch, cause) are
// pointers; nil is stored as SQL NULL.
package record
