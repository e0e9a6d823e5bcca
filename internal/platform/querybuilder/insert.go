package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// InsertBuilder renders a single-row INSERT. Suffix carries ON CONFLICT and
// RETURNING clauses verbatim.
type InsertBuilder struct {
	table   string
	columns []string
	values  []any
	suffix  string
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.values = append([]any(nil), values...)
	return b
}

func (b *InsertBuilder) Suffix(sql string) *InsertBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" || len(b.columns) == 0 {
		return "", nil, fmt.Errorf("insert needs a table and columns")
	}
	if len(b.values) != len(b.columns) {
		return "", nil, fmt.Errorf("insert into %s has %d values for %d columns", b.table, len(b.values), len(b.columns))
	}

	var w writer
	w.sql.WriteString("INSERT INTO " + b.table + " (" + strings.Join(b.columns, ", ") + ") VALUES (")
	for i, value := range b.values {
		if i > 0 {
			w.sql.WriteString(", ")
		}
		w.bind(value)
	}
	w.sql.WriteString(")")
	if b.suffix != "" {
		w.sql.WriteString(" " + b.suffix)
	}
	return w.sql.String(), w.args, nil
}

// InsertModel inserts every db-tagged exported field of model, in field
// order, followed by suffix.
func InsertModel(table string, model any, suffix string) (string, []any, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return "", nil, fmt.Errorf("insert model for %s is nil", table)
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return "", nil, fmt.Errorf("insert model for %s must be a struct, got %s", table, value.Kind())
	}

	fields := taggedFields(value.Type())
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("insert model %s has no db columns", value.Type())
	}
	cols := make([]string, len(fields))
	vals := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = f.column
		vals[i] = value.Field(f.index).Interface()
	}
	return InsertInto(table).Columns(cols...).Values(vals...).Suffix(suffix).ToSQL()
}

type taggedField struct {
	index  int
	column string
}

// Insert models are written once per event or snapshot row, every cycle.
var fieldCache sync.Map // reflect.Type -> []taggedField

func taggedFields(typ reflect.Type) []taggedField {
	if cached, ok := fieldCache.Load(typ); ok {
		return cached.([]taggedField)
	}

	fields := make([]taggedField, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		column, _, _ := strings.Cut(field.Tag.Get("db"), ",")
		column = strings.TrimSpace(column)
		if column == "" || column == "-" {
			continue
		}
		fields = append(fields, taggedField{index: i, column: column})
	}
	fieldCache.Store(typ, fields)
	return fields
}
