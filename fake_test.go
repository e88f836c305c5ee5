package oraexec

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type fakeCursor struct {
	rows     []any
	fetchErr error
	closeErr error
	fetched  int
	closes   int
	lastMax  int
}

func (c *fakeCursor) Fetch(_ context.Context, max int) ([]any, error) {
	c.fetched++
	c.lastMax = max
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	if max > 0 && len(c.rows) > max {
		return c.rows[:max], nil
	}
	return c.rows, nil
}

func (c *fakeCursor) Close() error {
	c.closes++
	return c.closeErr
}

type fakeExecutor struct {
	raw      *RawResult
	execErr  error
	closeErr error
	got      *Compiled
	gotOpts  ExecOptions
	calls    int
	closes   int
}

func (e *fakeExecutor) Execute(_ context.Context, c *Compiled, opts ExecOptions) (*RawResult, error) {
	e.calls++
	e.got = c
	e.gotOpts = opts
	if e.execErr != nil {
		return nil, e.execErr
	}
	return e.raw, nil
}

func (e *fakeExecutor) Close() error {
	e.closes++
	return e.closeErr
}

type fakeAcquirer struct {
	exec     *fakeExecutor
	err      error
	gotCreds Credentials
}

func (a *fakeAcquirer) Acquire(_ context.Context, creds Credentials) (Executor, error) {
	a.gotCreds = creds
	if a.err != nil {
		return nil, a.err
	}
	return a.exec, nil
}

var errBoom = errors.New("boom")

// sequenceSuffix returns g1, g2, ... to make generated names predictable
func sequenceSuffix() func() string {
	n := 0
	return func() string {
		n++
		return "g" + string(rune('0'+n%10))
	}
}

// newTestDB creates a sqlite file database with a small items table
func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db := sqlx.MustConnect("sqlite3", dsn)
	defer db.Close()

	db.MustExec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL, price REAL)`)
	db.MustExec(`INSERT INTO items (id, name, price) VALUES (1, 'alpha', 1.5), (2, 'beta', 2.5), (3, 'gamma', 3.5), (4, 'delta', 4.5)`)
	return dsn
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}
