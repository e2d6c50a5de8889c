package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the SQL backends that share this
// package's queries.
type Dialect struct {
	Name string
	// NumberedParams selects $1, $2, ... placeholders instead of ?.
	NumberedParams bool
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
	// IsForeignKeyViolation reports whether err references a missing row.
	IsForeignKeyViolation func(err error) bool
}

// Rebind rewrites ? placeholders for dialects that use numbered parameters.
// Queries in this package never contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if !d.NumberedParams || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) uniqueViolation(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

func (d Dialect) foreignKeyViolation(err error) bool {
	return err != nil && d.IsForeignKeyViolation != nil && d.IsForeignKeyViolation(err)
}
