package pgsink

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ridge/alluvium/extract"
)

const checkpointTableDDL = `CREATE TABLE IF NOT EXISTS processor_checkpoints (
    pipeline TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

// PostgreSQL caps statements at 65535 bind parameters
const maxStatementParams = 50000

func rowsPerStatement(t extract.Table) int {
	return maxStatementParams / len(t.Columns)
}

var timeType = reflect.TypeOf(time.Time{})

func sqlType(t reflect.Type) string {
	if t == timeType {
		return "TIMESTAMPTZ"
	}
	switch t.Kind() {
	case reflect.String:
		return "TEXT"
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Uint32, reflect.Uint64:
		return "BIGINT"
	case reflect.Bool:
		return "BOOLEAN"
	default:
		panic(fmt.Sprintf("no SQL type mapping for %v", t))
	}
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS for a destination table
func createTableSQL(t extract.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "    %s %s NOT NULL,\n", c.Name, sqlType(t.RowType.FieldByIndex(c.Index).Type))
	}
	fmt.Fprintf(&b, "    PRIMARY KEY (%s)\n)", strings.Join(t.Key, ", "))
	return b.String()
}

// valuesClause renders ($1, $2), ($3, $4), ... for rows of cols parameters
func valuesClause(cols, rows int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// writeSQL renders a multi-row INSERT applying rows of the given mutation.
// Inserts ignore conflicting rows; upserts replace them unless the stored row
// derives from a higher version.
func writeSQL(t extract.Table, mutation extract.Mutation, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s",
		t.Name, strings.Join(t.ColumnNames(), ", "), valuesClause(len(t.Columns), rows))

	if mutation == extract.Insert {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", strings.Join(t.Key, ", "))
		return b.String()
	}

	key := map[string]bool{}
	for _, k := range t.Key {
		key[k] = true
	}
	var updates []string
	for _, c := range t.Columns {
		if !key[c.Name] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c.Name, c.Name))
		}
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s WHERE excluded.%s > %s.%s",
		strings.Join(t.Key, ", "), strings.Join(updates, ", "),
		t.VersionColumn, t.Name, t.VersionColumn)
	return b.String()
}

// deleteSQL renders a single-row DELETE. On tables with a version column the
// delete is guarded so that a replayed or backfilled delete cannot remove a
// row written at a higher version.
func deleteSQL(t extract.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE ", t.Name)
	n := 1
	for i, k := range t.Key {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s = $%d", k, n)
		n++
	}
	if t.VersionColumn != "" {
		fmt.Fprintf(&b, " AND %s <= $%d", t.VersionColumn, n)
	}
	return b.String()
}

// collapse keeps the last record per key, in first-occurrence order. Within
// one batch a later mutation of a key supersedes an earlier one, and
// multi-row upserts must not hit the same key twice.
func collapse(records []extract.Record) []extract.Record {
	if len(records) <= 1 {
		return records
	}
	byKey := map[string]int{}
	out := make([]extract.Record, 0, len(records))
	for _, rec := range records {
		if i, ok := byKey[rec.Key]; ok {
			out[i] = rec
			continue
		}
		byKey[rec.Key] = len(out)
		out = append(out, rec)
	}
	return out
}
