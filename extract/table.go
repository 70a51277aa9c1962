package extract

import (
	"fmt"
	"reflect"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Column describes one column of an output table
type Column struct {
	Name   string // database column name from the db: tag
	GoName string
	Index  []int // field index for reflect.Value.FieldByIndex
}

// Table describes an output table and how row structs map onto it.
// All fields are read-only after registration.
type Table struct {
	Name string

	// Key lists the column names of the logical primary key
	Key []string

	// VersionColumn is the column holding the originating transaction
	// version on tables with Upsert semantics; conflict resolution keeps
	// the row with the higher value. Empty for append-only tables.
	VersionColumn string

	RowType reflect.Type
	Columns []Column

	byName map[string]int
}

func panicf(format string, a ...any) {
	panic(fmt.Sprintf(format, a...))
}

// TableOf builds a Table from a row struct example. Every exported field must
// carry a db: tag naming its column, or a db:"-" tag to be skipped.
func TableOf(name string, rowExample any, key []string, versionColumn string) Table {
	t := reflect.TypeOf(rowExample)
	if t.Kind() != reflect.Struct {
		panicf("%v expected to be a struct type", t)
	}

	table := Table{
		Name:    name,
		Key:     key,
		RowType: t,
		byName:  map[string]int{},
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("db")
		switch {
		case tag == "-":
			continue
		case !ok || tag == "":
			panicf("field %v.%s must carry a db: tag", t, f.Name)
		case !f.IsExported():
			panicf("unexported field %v.%s must be skipped using a `db:\"-\"` tag", t, f.Name)
		}
		if _, ok := table.byName[tag]; ok {
			panicf("duplicate column name %s in %v", tag, t)
		}
		table.byName[tag] = len(table.Columns)
		table.Columns = append(table.Columns, Column{Name: tag, GoName: f.Name, Index: f.Index})
	}

	for _, k := range append(append([]string{}, key...), versionColumn) {
		if k == "" {
			continue
		}
		if _, ok := table.byName[k]; !ok {
			panicf("table %s: no column named %s in %v", name, k, t)
		}
	}
	table.VersionColumn = versionColumn
	return table
}

// Values returns the row's values in column order
func (t Table) Values(row any) []any {
	v := reflect.ValueOf(row)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Type() != t.RowType {
		panicf("table %s: row type %v, expected %v", t.Name, v.Type(), t.RowType)
	}
	values := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		values[i] = v.FieldByIndex(c.Index).Interface()
	}
	return values
}

// KeyValues returns the row's key column values in Key order
func (t Table) KeyValues(row any) []any {
	v := reflect.ValueOf(row)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Type() != t.RowType {
		panicf("table %s: row type %v, expected %v", t.Name, v.Type(), t.RowType)
	}
	values := make([]any, len(t.Key))
	for i, name := range t.Key {
		values[i] = v.FieldByIndex(t.Columns[t.byName[name]].Index).Interface()
	}
	return values
}

// ColumnNames returns the column names in column order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

var tableRegistry = map[string]Table{}

// Register adds a table to the global registry. Meant to be called from
// init functions of extractor files; panics on duplicates.
func Register(t Table) Table {
	if _, ok := tableRegistry[t.Name]; ok {
		panicf("duplicate table registration: %s", t.Name)
	}
	tableRegistry[t.Name] = t
	return t
}

// Lookup finds a registered table by name
func Lookup(name string) (Table, bool) {
	t, ok := tableRegistry[name]
	return t, ok
}

// Tables returns all registered tables sorted by name
func Tables() []Table {
	names := maps.Keys(tableRegistry)
	slices.Sort(names)
	tables := make([]Table, 0, len(names))
	for _, name := range names {
		tables = append(tables, tableRegistry[name])
	}
	return tables
}
