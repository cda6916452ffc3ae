// Package keys builds cache keys:
//
//	{ns}:{op}:{table}:{suffix}            unversioned table
//	{ns}:{op}:{table}|{version}:{suffix}  versioned table
//
// The op segment separates entity, count and predicate entries of one table;
// the table segment separates tables. Bumping a version orphans every key the
// previous version produced.
package keys

import (
	"fmt"
	"sort"
	"strings"
)

// Operation segments.
const (
	OpGet         = "get"
	OpCount       = "count"
	OpFilterFirst = "ff"
	OpFilterCount = "fc"
)

// Separators. Composite identifiers and predicate pairs both join with "-".
const (
	PartSep = "-"
	PairSep = "$"
)

// Composite is implemented by identifiers of tables with a multi-column
// primary key. KeyParts must return the columns in declared key order.
type Composite interface {
	KeyParts() []any
}

// Prefix returns the key prefix for one table and operation.
func Prefix(ns, op, table, version string) string {
	p := ns + ":" + op + ":" + table
	if version != "" {
		return p + "|" + version + ":"
	}
	return p + ":"
}

// ForIdent stringifies an identifier.
func ForIdent(id any) string {
	switch v := id.(type) {
	case Composite:
		return Join(v.KeyParts())
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(id)
	}
}

// Join renders identifier parts in order.
func Join(parts []any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, PartSep)
}

// ForPredicate renders field$value pairs sorted by field, so predicates with
// the same pairs map to the same suffix regardless of construction order.
func ForPredicate(p map[string]any) string {
	if len(p) == 0 {
		return ""
	}
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString(PartSep)
		}
		b.WriteString(f)
		b.WriteString(PairSep)
		fmt.Fprint(&b, p[f])
	}
	return b.String()
}
