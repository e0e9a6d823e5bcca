// Package querybuilder renders the small set of Postgres statements the
// event and snapshot repositories issue, numbering placeholders as $n.
package querybuilder

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is one AND-ed term of a WHERE clause.
type Condition interface {
	render(w *writer)
}

type compare struct {
	column string
	op     string
	value  any
}

func Eq(column string, value any) Condition {
	return compare{column: column, op: "=", value: value}
}

func Lt(column string, value any) Condition {
	return compare{column: column, op: "<", value: value}
}

func (c compare) render(w *writer) {
	w.sql.WriteString(c.column + " " + c.op + " ")
	w.bind(c.value)
}

// NonEmptyAny matches rows where at least one of columns holds a non-empty
// string, e.g. an event with any stream slot filled.
func NonEmptyAny(columns ...string) Condition {
	return nonEmptyAny(columns)
}

type nonEmptyAny []string

func (c nonEmptyAny) render(w *writer) {
	if len(c) == 0 {
		w.sql.WriteString("FALSE")
		return
	}
	terms := make([]string, len(c))
	for i, column := range c {
		terms[i] = column + " <> ''"
	}
	w.sql.WriteString("(" + strings.Join(terms, " OR ") + ")")
}

// writer accumulates SQL text and its positional arguments.
type writer struct {
	sql  strings.Builder
	args []any
}

func (w *writer) bind(value any) {
	w.args = append(w.args, value)
	w.sql.WriteString("$" + strconv.Itoa(len(w.args)))
}

func (w *writer) where(conditions []Condition) {
	for i, c := range conditions {
		if i == 0 {
			w.sql.WriteString(" WHERE ")
		} else {
			w.sql.WriteString(" AND ")
		}
		c.render(w)
	}
}

type SelectBuilder struct {
	columns []string
	table   string
	where   []Condition
	orderBy []string
	limit   int
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

func (b *SelectBuilder) Where(conditions ...Condition) *SelectBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, parts...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if len(b.columns) == 0 || strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("select needs columns and a table")
	}

	var w writer
	w.sql.WriteString("SELECT " + strings.Join(b.columns, ", ") + " FROM " + b.table)
	w.where(b.where)
	if len(b.orderBy) > 0 {
		w.sql.WriteString(" ORDER BY " + strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		w.sql.WriteString(" LIMIT " + strconv.Itoa(b.limit))
	}
	return w.sql.String(), w.args, nil
}

type assignment struct {
	column string
	value  any
	now    bool
}

type UpdateBuilder struct {
	table string
	sets  []assignment
	where []Condition
}

func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column: column, value: value})
	return b
}

// SetNow stamps column with the database clock.
func (b *UpdateBuilder) SetNow(column string) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column: column, now: true})
	return b
}

func (b *UpdateBuilder) Where(conditions ...Condition) *UpdateBuilder {
	b.where = append(b.where, conditions...)
	return b
}

// ToSQL refuses an update without a WHERE clause; the repositories only
// ever touch one event row at a time.
func (b *UpdateBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" || len(b.sets) == 0 {
		return "", nil, fmt.Errorf("update needs a table and at least one column")
	}
	if len(b.where) == 0 {
		return "", nil, fmt.Errorf("update %s requires at least one condition", b.table)
	}

	var w writer
	w.sql.WriteString("UPDATE " + b.table + " SET ")
	for i, s := range b.sets {
		if i > 0 {
			w.sql.WriteString(", ")
		}
		w.sql.WriteString(s.column + " = ")
		if s.now {
			w.sql.WriteString("NOW()")
			continue
		}
		w.bind(s.value)
	}
	w.where(b.where)
	return w.sql.String(), w.args, nil
}

type DeleteBuilder struct {
	table string
	where []Condition
}

func DeleteFrom(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

func (b *DeleteBuilder) Where(conditions ...Condition) *DeleteBuilder {
	b.where = append(b.where, conditions...)
	return b
}

// ToSQL refuses to build an unconditional delete.
func (b *DeleteBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("delete table is required")
	}
	if len(b.where) == 0 {
		return "", nil, fmt.Errorf("delete from %s requires at least one condition", b.table)
	}

	var w writer
	w.sql.WriteString("DELETE FROM " + b.table)
	w.where(b.where)
	return w.sql.String(), w.args, nil
}
