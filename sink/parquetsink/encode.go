package parquetsink

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/parquet-go/parquet-go"
	"github.com/ridge/alluvium/extract"
)

// Deletes cannot remove rows from files already written, so they are encoded
// as tombstones: ordinary rows with this extra column set. Readers merging a
// table resolve each key to its highest-version row and drop it if that row
// is a tombstone.
const tombstoneColumn = "_deleted"

// rowCodec writes rows of one table, extended with the tombstone column
type rowCodec struct {
	typ    reflect.Type
	schema *parquet.Schema
	fields []int // source field index per extended field, -1 for the tombstone
}

func newRowCodec(table extract.Table) *rowCodec {
	var fields []reflect.StructField
	var source []int
	for i := 0; i < table.RowType.NumField(); i++ {
		f := table.RowType.Field(i)
		if !f.IsExported() {
			continue
		}
		fields = append(fields, reflect.StructField{Name: f.Name, Type: f.Type, Tag: f.Tag})
		source = append(source, i)
	}
	fields = append(fields, reflect.StructField{
		Name: "Deleted",
		Type: reflect.TypeOf(false),
		Tag:  reflect.StructTag(fmt.Sprintf(`parquet:"%s"`, tombstoneColumn)),
	})
	source = append(source, -1)

	typ := reflect.StructOf(fields)
	return &rowCodec{
		typ:    typ,
		schema: parquet.SchemaOf(reflect.New(typ).Elem().Interface()),
		fields: source,
	}
}

func (c *rowCodec) row(rec extract.Record) any {
	src := reflect.ValueOf(rec.Row)
	for src.Kind() == reflect.Pointer {
		src = src.Elem()
	}
	row := reflect.New(c.typ).Elem()
	for i, j := range c.fields {
		if j < 0 {
			row.Field(i).SetBool(rec.Mutation == extract.Delete)
			continue
		}
		row.Field(i).Set(src.Field(j))
	}
	return row.Interface()
}

// encode renders the records of one table as a parquet file
func (c *rowCodec) encode(records []extract.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, c.schema)
	for _, rec := range records {
		if err := w.Write(c.row(rec)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
