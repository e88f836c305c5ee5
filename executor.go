package oraexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// OutFormat is the shape of every returned row
type OutFormat int

const (
	OutFormatObject OutFormat = iota
	OutFormatArray
)

func (f OutFormat) String() string {
	names := [...]string{"object", "array"}
	if f < 0 || int(f) >= len(names) {
		return fmt.Sprintf("OutFormat(%d)", int(f))
	}
	return names[f]
}

// ParseOutFormat accepts object | array, empty means object
func ParseOutFormat(s string) (OutFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "object":
		return OutFormatObject, nil
	case "array":
		return OutFormatArray, nil
	}
	return OutFormatObject, fmt.Errorf("unknown output format [%s]", s)
}

// ExecOptions used by Executor.Execute. The zero value does NOT auto commit:
// the statement runs inside a transaction that is rolled back when the
// executor is closed, RowsAffected still reports the rows touched. Use
// DefaultExecOptions to commit every statement.
type ExecOptions struct {
	OutFormat  OutFormat
	AutoCommit bool
	MaxRows    int
}

// DefaultExecOptions object rows, auto commit and the configured max rows
func DefaultExecOptions() ExecOptions {
	return ExecOptions{OutFormat: OutFormatObject, AutoCommit: true}
}

// Executor runs a compiled statement on one dedicated connection
type Executor interface {
	Execute(ctx context.Context, stmt *Compiled, opts ExecOptions) (*RawResult, error)
	Close() error
}

// execer is implemented by *sqlx.Conn and *sqlx.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// session holds the connection used by one execution. Without auto commit the
// statement runs inside a transaction that is rolled back by Close.
type session struct {
	db    *sqlx.DB
	conn  *sqlx.Conn
	tx    *sqlx.Tx
	owned bool
	log   *zerolog.Logger
}

func newSession(db *sqlx.DB, conn *sqlx.Conn, owned bool, log *zerolog.Logger) *session {
	return &session{db: db, conn: conn, owned: owned, log: log}
}

func (s *session) target(ctx context.Context, autoCommit bool) (execer, error) {
	if autoCommit {
		return s.conn, nil
	}
	if s.tx == nil {
		tx, err := s.conn.BeginTxx(ctx, nil)
		if err != nil {
			return nil, errors.New(fmt.Sprintf("transaction couldn't begin %s", err.Error()))
		}
		s.tx = tx
	}
	return s.tx, nil
}

// query runs a row returning statement and reads at most opts.MaxRows rows
func (s *session) query(ctx context.Context, target execer, c *Compiled, args []any, opts ExecOptions) (*RawResult, error) {
	rows, err := target.QueryContext(ctx, c.SQL, args...)
	if err != nil {
		return nil, ExecutionErr(err)
	}
	columns, err := unwrapColumns(rows)
	if err != nil {
		_ = rows.Close()
		return nil, ExecutionErr(err)
	}
	data, err := unwrapRows(rows, opts.OutFormat, opts.MaxRows)
	if err != nil {
		return nil, ExecutionErr(err)
	}
	return &RawResult{MetaData: columns, Rows: data}, nil
}

func (s *session) exec(ctx context.Context, target execer, c *Compiled, args []any) (*RawResult, error) {
	res, err := target.ExecContext(ctx, c.SQL, args...)
	if err != nil {
		return nil, ExecutionErr(err)
	}
	raw := &RawResult{}
	if n, err := res.RowsAffected(); err == nil {
		raw.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		raw.LastRowID = id
	}
	return raw, nil
}

// Close rolls back pending work and returns the connection
func (s *session) Close() error {
	var errs []error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		s.tx = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
		s.conn = nil
	}
	if s.owned && s.db != nil {
		s.log.Debug().Msg("Closing dedicated database handle")
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		s.db = nil
	}
	return errors.Join(errs...)
}

// sqlExecutor runs statements on any database/sql driver, only Input binds
// are supported since output binds are driver specific
type sqlExecutor struct {
	*session
}

func (e *sqlExecutor) Execute(ctx context.Context, c *Compiled, opts ExecOptions) (*RawResult, error) {
	if c.HasOutput() {
		return nil, OutBindUnsupportedErr
	}
	target, err := e.target(ctx, opts.AutoCommit)
	if err != nil {
		return nil, err
	}
	args := namedArgs(c)
	if isQuery(c.SQL) {
		return e.query(ctx, target, c, args, opts)
	}
	return e.exec(ctx, target, c, args)
}
