package record

import "fmt"

// Record is one officer entry as stored in the output database
type Record struct {
	URL   string  `json:"url"`
	Name  string  `json:"name"`
	State *string `json:"state"`
	EOW   *string `json:"eow"`
	Cause *string `json:"cause"`
}

// String returns a pointer to s, for populating nullable fields
func String(s string) *string {
	return &s
}

// Value dereferences a nullable field, returning "" for nil
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Equal reports whether two records carry the same values, treating two nil
// fields as equal and nil as distinct from "".
func (r Record) Equal(o Record) bool {
	return r.URL == o.URL &&
		r.Name == o.Name &&
		equalPtr(r.State, o.State) &&
		equalPtr(r.EOW, o.EOW) &&
		equalPtr(r.Cause, o.Cause)
}

func (r Record) String() string {
	return fmt.Sprintf("%s (%s, %s, %s) %s",
		r.Name, orNull(r.State), orNull(r.EOW), orNull(r.Cause), r.URL)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func orNull(p *string) string {
	if p == nil {
		return "NULL"
	}
	return *p
}
