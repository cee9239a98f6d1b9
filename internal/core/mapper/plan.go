package mapper

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Field is one entry of a Plan: a column copied into T, or a derivation over
// the whole row.
type Field[T any] struct {
	Column string
	// uses lists the columns a derivation reads, so Subset keeps them.
	uses  []string
	apply func(dst *T, v any, row Row) error
}

// Plan is a declarative mapping from a flat row to T.
type Plan[T any] []Field[T]

// Columns lists every column the plan reads.
func (p Plan[T]) Columns() []string {
	var cols []string
	for _, f := range p {
		if f.Column != "" {
			cols = append(cols, f.Column)
		}
		cols = append(cols, f.uses...)
	}
	return cols
}

// Map applies plan to row. A nil row maps to nil. Columns missing from the
// row are skipped and NULL values leave the zero value in place.
func Map[T any](row Row, plan Plan[T]) (*T, error) {
	if row == nil {
		return nil, nil
	}
	var dst T
	for _, f := range plan {
		var v any
		if f.Column != "" {
			var ok bool
			if v, ok = row[f.Column]; !ok {
				continue
			}
		}
		if err := f.apply(&dst, v, row); err != nil {
			if f.Column == "" {
				return nil, err
			}
			return nil, fmt.Errorf("column %s: %w", f.Column, err)
		}
	}
	return &dst, nil
}

func column[T, V any](name string, convert func(any) (V, error), field func(*T) *V) Field[T] {
	return Field[T]{
		Column: name,
		apply: func(dst *T, v any, _ Row) error {
			if v == nil {
				return nil
			}
			out, err := convert(v)
			if err != nil {
				return err
			}
			*field(dst) = out
			return nil
		},
	}
}

func String[T any](name string, field func(*T) *string) Field[T] {
	return column(name, asString, field)
}

func Int64[T any](name string, field func(*T) *int64) Field[T] {
	return column(name, asInt64, field)
}

func Float64[T any](name string, field func(*T) *float64) Field[T] {
	return column(name, asFloat64, field)
}

func Decimal[T any](name string, field func(*T) *decimal.Decimal) Field[T] {
	return column(name, asDecimal, field)
}

func Time[T any](name string, field func(*T) *time.Time) Field[T] {
	return column(name, asTime, field)
}

// Bool coerces an integer or string flag to a boolean.
func Bool[T any](name string, field func(*T) *bool) Field[T] {
	return Field[T]{
		Column: name,
		apply: func(dst *T, v any, _ Row) error {
			*field(dst) = truthy(v)
			return nil
		},
	}
}

// List expands a comma-joined column into its codes. NULL gives an empty list.
func List[T any](name string, field func(*T) *[]string) Field[T] {
	return Field[T]{
		Column: name,
		apply: func(dst *T, v any, _ Row) error {
			if v == nil {
				*field(dst) = []string{}
				return nil
			}
			s, err := asString(v)
			if err != nil {
				return err
			}
			*field(dst) = SplitList(s)
			return nil
		},
	}
}

// Derive runs fn over the whole row. columns names what fn reads.
func Derive[T any](columns []string, fn func(dst *T, row Row) error) Field[T] {
	return Field[T]{
		uses: columns,
		apply: func(dst *T, _ any, row Row) error {
			return fn(dst, row)
		},
	}
}
