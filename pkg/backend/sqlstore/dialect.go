package sqlstore

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/quasar/pkg/errors"

	_ "github.com/go-sql-driver/mysql" // register the mysql database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	// Name is the datasource type, also used in configuration.
	Name string
	// Driver is the database/sql driver name.
	Driver string

	numbered bool
	blobType string
	upsertFn func(table string, keys, fixed, cols []string) string
	dsnFn    func(dsn string) string
}

var (
	// SQLite stores tables in a local file through modernc.org/sqlite.
	SQLite = Dialect{
		Name:     "sqlite",
		Driver:   "sqlite",
		blobType: "TEXT",
		upsertFn: onConflictUpsert,
		dsnFn: func(dsn string) string {
			if strings.Contains(dsn, "_pragma=") {
				return dsn
			}
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		},
	}
	// Postgres uses the pgx stdlib driver.
	Postgres = Dialect{
		Name:     "postgres",
		Driver:   "pgx",
		numbered: true,
		blobType: "TEXT",
		upsertFn: onConflictUpsert,
	}
	// MySQL uses github.com/go-sql-driver/mysql.
	MySQL = Dialect{
		Name:     "mysql",
		Driver:   "mysql",
		blobType: "MEDIUMTEXT",
		upsertFn: func(table string, keys, fixed, cols []string) string {
			all := columns(keys, fixed, cols)
			sets := make([]string, len(cols))
			for i, c := range cols {
				sets[i] = c + " = VALUES(" + c + ")"
			}
			q := "INSERT INTO " + table + " (" + strings.Join(all, ", ") + ") VALUES (" + marks(len(all)) + ")"
			if len(sets) == 0 {
				return "INSERT IGNORE INTO " + q[len("INSERT INTO "):]
			}
			return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
		},
	}
)

var dialects = map[string]Dialect{
	SQLite.Name:   SQLite,
	Postgres.Name: Postgres,
	MySQL.Name:    MySQL,
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, errors.Newf(errors.ErrorTypeConfig, "unsupported sql dialect '%s'", name)
	}
	return d, nil
}

// Dialects returns the supported dialect names.
func Dialects() []string {
	return []string{SQLite.Name, Postgres.Name, MySQL.Name}
}

// rebind rewrites '?' placeholders to the dialect's form.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsert inserts keys, fixed and cols; on a key conflict only cols are
// updated.
func (d Dialect) upsert(table string, keys, fixed, cols []string) string {
	return d.rebind(d.upsertFn(table, keys, fixed, cols))
}

func (d Dialect) dsn(dsn string) string {
	if d.dsnFn == nil {
		return dsn
	}
	return d.dsnFn(dsn)
}

func (d Dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS quasar_tables (
			name VARCHAR(255) NOT NULL PRIMARY KEY,
			entity_type VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quasar_variables (
			table_name VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			ordinal INTEGER NOT NULL,
			definition ` + d.blobType + ` NOT NULL,
			PRIMARY KEY (table_name, name)
		)`,
		`CREATE TABLE IF NOT EXISTS quasar_value_sets (
			table_name VARCHAR(255) NOT NULL,
			entity_id VARCHAR(255) NOT NULL,
			created VARCHAR(64) NOT NULL,
			last_update VARCHAR(64) NOT NULL,
			PRIMARY KEY (table_name, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS quasar_values (
			table_name VARCHAR(255) NOT NULL,
			entity_id VARCHAR(255) NOT NULL,
			variable VARCHAR(255) NOT NULL,
			payload ` + d.blobType + ` NOT NULL,
			PRIMARY KEY (table_name, entity_id, variable)
		)`,
	}
}

func onConflictUpsert(table string, keys, fixed, cols []string) string {
	all := columns(keys, fixed, cols)
	q := "INSERT INTO " + table + " (" + strings.Join(all, ", ") + ") VALUES (" + marks(len(all)) + ") ON CONFLICT (" + strings.Join(keys, ", ") + ")"
	if len(cols) == 0 {
		return q + " DO NOTHING"
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = EXCLUDED." + c
	}
	return q + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func columns(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func marks(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
