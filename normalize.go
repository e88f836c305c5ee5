package oraexec

import (
	"context"
	"errors"
	"sort"
)

// DefaultCursorPageSize bounds how many rows are read from each cursor
const DefaultCursorPageSize = 10000

// Normalize replaces every cursor inside out with the rows it holds, the rest
// of the structure is returned as plain values with the same shape. Every
// cursor is closed before returning, even when an error happens.
// Parameters:
// @out: output binds returned by the executor, nil when there are none
// @pageSize: max rows read per cursor, DefaultCursorPageSize if <= 0
func Normalize(ctx context.Context, out *OutValue, pageSize int) (any, error) {
	if out == nil {
		return nil, nil
	}
	if pageSize <= 0 {
		pageSize = DefaultCursorPageSize
	}

	n := &normalizer{pageSize: pageSize}
	n.collect(*out)

	v, err := n.resolve(ctx, *out)
	if err != nil {
		// cursors after the failing one were never reached
		for _, c := range n.cursors[n.next:] {
			_ = c.Close()
		}
		return nil, err
	}
	return v, nil
}

type normalizer struct {
	pageSize int
	cursors  []RowCursor
	next     int
}

// collect and resolve walk the tree in the same order so n.next always
// points at the first cursor not yet drained
func (n *normalizer) collect(v OutValue) {
	switch v.Kind {
	case CursorKind:
		if v.Cursor != nil {
			n.cursors = append(n.cursors, v.Cursor)
		}
	case SequenceKind:
		for _, item := range v.Items {
			n.collect(item)
		}
	case MappingKind:
		for _, k := range sortedKeys(v.Fields) {
			n.collect(v.Fields[k])
		}
	}
}

func (n *normalizer) resolve(ctx context.Context, v OutValue) (any, error) {
	switch v.Kind {
	case CursorKind:
		if v.Cursor == nil {
			return nil, nil
		}
		return n.drain(ctx, v.Cursor)
	case SequenceKind:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			r, err := n.resolve(ctx, item)
			if err != nil {
				return nil, err
			}
			items[i] = r
		}
		return items, nil
	case MappingKind:
		fields := make(map[string]any, len(v.Fields))
		for _, k := range sortedKeys(v.Fields) {
			r, err := n.resolve(ctx, v.Fields[k])
			if err != nil {
				return nil, err
			}
			fields[k] = r
		}
		return fields, nil
	}
	return v.Scalar, nil
}

func (n *normalizer) drain(ctx context.Context, c RowCursor) ([]any, error) {
	n.next++
	rows, err := c.Fetch(ctx, n.pageSize)
	closeErr := c.Close()
	if err != nil {
		if closeErr != nil {
			return nil, errors.Join(CursorFetchErr(err), CursorCloseErr(closeErr))
		}
		return nil, CursorFetchErr(err)
	}
	if closeErr != nil {
		return nil, CursorCloseErr(closeErr)
	}
	if rows == nil {
		rows = []any{}
	}
	return rows, nil
}

func sortedKeys(m map[string]OutValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
