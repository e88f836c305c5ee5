package oraexec

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	goOra "github.com/sijms/go-ora/v2"
)

// oracleExecutor binds output parameters with goOra.Out and resolves
// ref cursors on the same connection that opened them
type oracleExecutor struct {
	*session
}

// Execute runs the statement, we use named returned values to override the
// response if go-ora panics while binding
func (e *oracleExecutor) Execute(ctx context.Context, c *Compiled, opts ExecOptions) (raw *RawResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Msgf("Panic detected on Execute :: %v", r)
			raw = nil
			err = ExecutionErr(fmt.Errorf("%v", r))
		}
	}()

	target, err := e.target(ctx, opts.AutoCommit)
	if err != nil {
		return nil, err
	}

	args, dests := oracleArgs(c)
	if len(dests) == 0 && isQuery(c.SQL) {
		return e.query(ctx, target, c, args, opts)
	}

	raw, err = e.exec(ctx, target, c, args)
	if err != nil {
		return nil, err
	}

	if len(dests) > 0 {
		fields := make(map[string]OutValue, len(dests))
		for name, dest := range dests {
			fields[name] = oracleOutValue(dest, target, opts.OutFormat)
		}
		out := MappingValue(fields)
		raw.OutBinds = &out
	}
	return raw, nil
}

// oracleArgs takes the compiled binds and convert them to arguments
// recognized by go_ora, output destinations are returned by bind name
func oracleArgs(c *Compiled) ([]any, map[string]any) {
	args := make([]any, 0, len(c.Order))
	dests := make(map[string]any)

	for _, name := range c.Order {
		b := c.Binds[name]
		if b.Direction == Input {
			args = append(args, sql.Named(name, b.Value))
			continue
		}

		dest := outDest(b)
		size := b.MaxOutputSize
		if b.MaxArraySize > 0 {
			size = b.MaxArraySize
		}
		dests[name] = dest
		args = append(args, sql.Named(name, goOra.Out{Dest: dest, Size: size, In: b.Direction == InOut}))
	}
	return args, dests
}

// outDest allocates the destination of an output bind, input/output
// binds start with their coerced value
func outDest(b Bind) any {
	if b.MaxArraySize > 0 {
		switch b.WireType {
		case WireNumber:
			return &[]float64{}
		case WireDate:
			return &[]time.Time{}
		case WireCursor:
			return &[]goOra.RefCursor{}
		}
		return &[]string{}
	}

	switch b.WireType {
	case WireNumber:
		d := &sql.NullFloat64{}
		switch v := b.Value.(type) {
		case int64:
			d.Float64, d.Valid = float64(v), true
		case float64:
			d.Float64, d.Valid = v, true
		}
		return d
	case WireDate:
		d := &sql.NullTime{}
		if v, ok := b.Value.(time.Time); ok {
			d.Time, d.Valid = v, true
		}
		return d
	case WireCursor:
		return &goOra.RefCursor{}
	}
	d := &sql.NullString{}
	if v, ok := b.Value.(string); ok {
		d.String, d.Valid = v, true
	}
	return d
}

// oracleOutValue classifies a filled destination
func oracleOutValue(dest any, q execer, format OutFormat) OutValue {
	switch d := dest.(type) {
	case *sql.NullString:
		if !d.Valid {
			return ScalarValue(nil)
		}
		return ScalarValue(d.String)
	case *sql.NullFloat64:
		if !d.Valid {
			return ScalarValue(nil)
		}
		return ScalarValue(d.Float64)
	case *sql.NullTime:
		if !d.Valid {
			return ScalarValue(nil)
		}
		return ScalarValue(d.Time)
	case *goOra.RefCursor:
		return CursorValue(&refCursor{ref: d, q: q, format: format})
	case *[]goOra.RefCursor:
		items := make([]OutValue, len(*d))
		for i := range *d {
			items[i] = CursorValue(&refCursor{ref: &(*d)[i], q: q, format: format})
		}
		return SequenceValue(items...)
	}

	v := reflect.Indirect(reflect.ValueOf(dest))
	if v.Kind() == reflect.Slice {
		items := make([]OutValue, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = ScalarValue(v.Index(i).Interface())
		}
		return SequenceValue(items...)
	}
	return ScalarValue(v.Interface())
}

// refCursor is a sys_refcursor returned by the statement
type refCursor struct {
	ref    *goOra.RefCursor
	q      execer
	format OutFormat
	closed bool
}

// Fetch reads the cursor through go_ora.WrapRefCursor as showed in
// sijms/go-ora examples
func (c *refCursor) Fetch(ctx context.Context, max int) ([]any, error) {
	rows, err := goOra.WrapRefCursor(ctx, c.q, c.ref)
	if err != nil {
		return nil, err
	}
	return unwrapRows(rows, c.format, max)
}

// Close releases the cursor once, a cursor never opened by the statement
// makes go-ora panic so it is reported as an error instead
func (c *refCursor) Close() (err error) {
	if c.closed {
		return nil
	}
	c.closed = true
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("closing cursor [%v]", r)
		}
	}()
	return c.ref.Close()
}
