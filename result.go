package oraexec

import (
	"context"

	"github.com/mitchellh/mapstructure"
)

// Record result from unwrap rows when OutFormatObject is used
type Record map[string]any

// Column describes one column of the returned rows
type Column struct {
	Name       string `json:"name"`
	DBTypeName string `json:"dbTypeName,omitempty"`
	Nullable   *bool  `json:"nullable,omitempty"`
}

// RowCursor is an open result set returned through an output bind. It must be
// closed exactly once.
type RowCursor interface {
	// Fetch reads up to max rows
	Fetch(ctx context.Context, max int) ([]any, error)
	Close() error
}

// OutKind tags the shape held by an OutValue
type OutKind int

const (
	ScalarKind OutKind = iota
	SequenceKind
	MappingKind
	CursorKind
)

// OutValue is an output bind value as produced by an executor, cursors are
// still open at this point.
type OutValue struct {
	Kind   OutKind
	Scalar any
	Items  []OutValue
	Fields map[string]OutValue
	Cursor RowCursor
}

func ScalarValue(v any) OutValue {
	return OutValue{Kind: ScalarKind, Scalar: v}
}

func SequenceValue(items ...OutValue) OutValue {
	return OutValue{Kind: SequenceKind, Items: items}
}

func MappingValue(fields map[string]OutValue) OutValue {
	return OutValue{Kind: MappingKind, Fields: fields}
}

func CursorValue(c RowCursor) OutValue {
	return OutValue{Kind: CursorKind, Cursor: c}
}

// RawResult is what an Executor returns, OutBinds is nil when the statement
// has no output binds.
type RawResult struct {
	MetaData     []Column
	Rows         []any
	RowsAffected int64
	LastRowID    any
	OutBinds     *OutValue
}

// Result unique returning type, every field is always serialized
type Result struct {
	MetaData     []Column `json:"metaData"`
	Rows         []any    `json:"rows"`
	RowsAffected int64    `json:"rowsAffected"`
	LastRowID    any      `json:"lastRowId"`
	OutBinds     any      `json:"outBinds"`
}

// HasData reports if the statement returned rows
func (r *Result) HasData() bool {
	return len(r.Rows) > 0
}

// Decode generic function to convert rows (or rows fetched from a cursor)
// to a slice of structures, fields are matched with mapstructure tags
// Parameters:
// @rows: Result.Rows or a cursor value taken from Result.OutBinds
func Decode[T any](rows any) ([]T, error) {
	var data []T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &data,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(rows); err != nil {
		return nil, err
	}
	return data, nil
}
