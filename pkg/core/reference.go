package core

import (
	"strings"

	"github.com/ajitpratap0/quasar/pkg/errors"
	stringpool "github.com/ajitpratap0/quasar/pkg/strings"
)

// TableReference joins a datasource and table name as "<datasource>.<table>".
func TableReference(datasource, table string) string {
	return stringpool.Concat(datasource, ".", table)
}

// ParseTableReference splits a reference at its first dot.
func ParseTableReference(ref string) (datasource, table string, err error) {
	i := strings.IndexByte(ref, '.')
	if i <= 0 || i == len(ref)-1 {
		return "", "", errors.Newf(errors.ErrorTypeConfig, "invalid table reference '%s', expected <datasource>.<table>", ref)
	}
	return ref[:i], ref[i+1:], nil
}

// SameTable reports whether two tables have the same identity.
func SameTable(a, b ValueTable) bool {
	if a == nil || b == nil {
		return false
	}
	return a.TableReference() == b.TableReference()
}
