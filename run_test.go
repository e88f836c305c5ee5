package oraexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
)

func TestRun_CursorOutBind(t *testing.T) {
	t.Parallel()

	cur := &fakeCursor{rows: []any{Record{"CODE": "USD"}, Record{"CODE": "EUR"}}}
	out := MappingValue(map[string]OutValue{"result": CursorValue(cur)})
	exec := &fakeExecutor{raw: &RawResult{OutBinds: &out}}
	acq := &fakeAcquirer{exec: exec}

	r := NewRunner(acq, Config{}, nil)
	res, err := r.Run(context.Background(), Request{
		SQL:         "BEGIN get_currencies(:result); END;",
		Params:      []Param{NewCursorParam("result")},
		Credentials: Credentials{User: "u", Password: "p", ConnectString: "db:1521/svc"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	outBinds, ok := res.OutBinds.(map[string]any)
	if !ok {
		t.Fatalf("unexpected outBinds %#v", res.OutBinds)
	}
	if !reflect.DeepEqual(outBinds["result"], cur.rows) {
		t.Fatalf("cursor rows not returned: %#v", outBinds["result"])
	}
	if cur.closes != 1 {
		t.Fatalf("cursor released %d times", cur.closes)
	}
	if exec.closes != 1 {
		t.Fatalf("connection released %d times", exec.closes)
	}
	if acq.gotCreds.ConnectString != "db:1521/svc" {
		t.Fatalf("credentials not passed through: %+v", acq.gotCreds)
	}
	if b := exec.got.Binds["result"]; b.WireType != WireCursor || b.Direction != Output {
		t.Fatalf("unexpected bind %+v", b)
	}
	if exec.gotOpts.MaxRows != DefaultMaxRows {
		t.Fatalf("default max rows not applied: %d", exec.gotOpts.MaxRows)
	}
}

func TestRun_CloseFailureKeepsResult(t *testing.T) {
	t.Parallel()

	raw := &RawResult{RowsAffected: 3, LastRowID: "AAAR3sAAEAAAACXAAA"}
	exec := &fakeExecutor{raw: raw, closeErr: errBoom}

	var logs bytes.Buffer
	r := NewRunner(&fakeAcquirer{exec: exec}, DefaultConfig(), NewLogger(&logs, "error"))
	res, err := r.Run(context.Background(), Request{
		SQL:    "UPDATE t SET a = :a",
		Params: []Param{NewParam("a", "x")},
	})
	if err != nil {
		t.Fatalf("close failure converted into error: %v", err)
	}
	if res.RowsAffected != 3 || res.LastRowID != "AAAR3sAAEAAAACXAAA" {
		t.Fatalf("result altered: %+v", res)
	}
	if !strings.Contains(logs.String(), "boom") {
		t.Fatalf("close failure not logged: %s", logs.String())
	}
}

func TestRun_ValidationFailureReleasesConnection(t *testing.T) {
	t.Parallel()

	exec := &fakeExecutor{raw: &RawResult{}}
	r := NewRunner(&fakeAcquirer{exec: exec}, DefaultConfig(), nil)
	_, err := r.Run(context.Background(), Request{
		SQL:    "SELECT 1 FROM t WHERE id IN (:ids)",
		Params: []Param{NewInListParam("ids", Number, " , ")},
	})
	if !errors.Is(err, EmptyInListErr) {
		t.Fatalf("want EmptyInListErr got %v", err)
	}
	if exec.calls != 0 {
		t.Fatal("statement executed after a validation failure")
	}
	if exec.closes != 1 {
		t.Fatalf("connection released %d times", exec.closes)
	}
}

func TestRun_ExecutionFailure(t *testing.T) {
	t.Parallel()

	driverErr := errors.New("ORA-00942: table or view does not exist")
	exec := &fakeExecutor{execErr: ExecutionErr(driverErr), closeErr: errBoom}
	r := NewRunner(&fakeAcquirer{exec: exec}, DefaultConfig(), nil)

	res, err := r.Run(context.Background(), Request{SQL: "SELECT * FROM missing"})
	if res != nil {
		t.Fatalf("partial result returned: %+v", res)
	}
	if !errors.Is(err, driverErr) || !strings.Contains(err.Error(), "ORA-00942") {
		t.Fatalf("driver error not propagated: %v", err)
	}
	if errors.Is(err, errBoom) {
		t.Fatal("close failure masked the execution error")
	}
	if exec.closes != 1 {
		t.Fatalf("connection released %d times", exec.closes)
	}
}

func TestRun_NormalizationFailure(t *testing.T) {
	t.Parallel()

	cur := &fakeCursor{fetchErr: errBoom}
	out := MappingValue(map[string]OutValue{"c": CursorValue(cur)})
	exec := &fakeExecutor{raw: &RawResult{RowsAffected: 1, OutBinds: &out}}
	r := NewRunner(&fakeAcquirer{exec: exec}, DefaultConfig(), nil)

	res, err := r.Run(context.Background(), Request{SQL: "BEGIN p(:c); END;", Params: []Param{NewCursorParam("c")}})
	if err == nil || res != nil {
		t.Fatalf("expected failure, got %+v", res)
	}
	if cur.closes != 1 || exec.closes != 1 {
		t.Fatalf("resources not released: cursor %d conn %d", cur.closes, exec.closes)
	}
}

func TestRun_AcquireFailure(t *testing.T) {
	t.Parallel()

	r := NewRunner(&fakeAcquirer{err: EmptyConStrErr}, DefaultConfig(), nil)
	if _, err := r.Run(context.Background(), Request{SQL: "SELECT 1 FROM dual"}); !errors.Is(err, EmptyConStrErr) {
		t.Fatalf("want EmptyConStrErr got %v", err)
	}
}

func TestRun_EmptyStatement(t *testing.T) {
	t.Parallel()

	acq := &fakeAcquirer{exec: &fakeExecutor{}}
	r := NewRunner(acq, DefaultConfig(), nil)
	if _, err := r.Run(context.Background(), Request{SQL: "  "}); !errors.Is(err, EmptyStatementErr) {
		t.Fatalf("want EmptyStatementErr got %v", err)
	}
	if acq.exec.closes != 0 {
		t.Fatal("connection acquired for an empty statement")
	}
}

func TestRun_SQLiteInList(t *testing.T) {
	t.Parallel()

	dsn := newTestDB(t)
	r := NewRunner(NewSQLAcquirer("sqlite3", nil, nil, nil), DefaultConfig(), nil)

	res, err := r.Run(context.Background(), Request{
		SQL:         "SELECT id, name FROM items WHERE id IN (:ids) ORDER BY id",
		Params:      []Param{NewInListParam("ids", Number, "1, 3, 4")},
		Credentials: Credentials{ConnectString: dsn},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("want 3 rows got %d: %#v", len(res.Rows), res.Rows)
	}
	for i, want := range []int64{1, 3, 4} {
		rec := res.Rows[i].(Record)
		if rec["id"] != want {
			t.Fatalf("row %d: want id %d got %#v", i, want, rec["id"])
		}
	}
	if len(res.MetaData) != 2 || res.MetaData[0].Name != "id" || res.MetaData[1].Name != "name" {
		t.Fatalf("unexpected metadata %+v", res.MetaData)
	}

	type item struct {
		ID   int64  `mapstructure:"id"`
		Name string `mapstructure:"name"`
	}
	items, err := Decode[item](res.Rows)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(items) != 3 || items[1].ID != 3 || items[1].Name != "gamma" {
		t.Fatalf("unexpected decoded items %+v", items)
	}

	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("result can't be serialized: %v", err)
	}
	if !strings.Contains(string(b), `"metaData"`) || !strings.Contains(string(b), `"rowsAffected":0`) {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestRun_SQLiteArrayFormatAndMaxRows(t *testing.T) {
	t.Parallel()

	dsn := newTestDB(t)
	r := NewRunner(NewSQLAcquirer("sqlite3", nil, nil, nil), DefaultConfig(), nil)

	res, err := r.Run(context.Background(), Request{
		SQL:         "SELECT id FROM items WHERE price > :min ORDER BY id",
		Params:      []Param{NewNumberParam("min", "1.9")},
		Credentials: Credentials{ConnectString: dsn},
		Options:     ExecOptions{OutFormat: OutFormatArray, MaxRows: 2},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []any{[]any{int64(2)}, []any{int64(3)}}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Fatalf("want %#v got %#v", want, res.Rows)
	}
}

func TestRun_SQLiteAutoCommit(t *testing.T) {
	t.Parallel()

	dsn := newTestDB(t)
	pool := NewPool(nil, nil)
	t.Cleanup(func() { _ = pool.Close() })
	r := NewRunner(NewSQLAcquirer("sqlite3", pool, nil, nil), DefaultConfig(), nil)
	creds := Credentials{ConnectString: dsn, Pooled: true}

	insert := func(id string, autoCommit bool) *Result {
		t.Helper()
		res, err := r.Run(context.Background(), Request{
			SQL:         "INSERT INTO items (id, name) VALUES (:id, :name)",
			Params:      []Param{NewNumberParam("id", id), NewParam("name", "n"+id)},
			Credentials: creds,
			Options:     ExecOptions{AutoCommit: autoCommit},
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
		return res
	}

	committed := insert("10", true)
	if committed.RowsAffected != 1 || committed.LastRowID != int64(10) {
		t.Fatalf("unexpected insert result %+v", committed)
	}
	rolledBack := insert("11", false)
	if rolledBack.RowsAffected != 1 {
		t.Fatalf("unexpected insert result %+v", rolledBack)
	}

	db := sqlx.MustConnect("sqlite3", dsn)
	defer db.Close()
	var ids []int64
	if err := db.Select(&ids, "SELECT id FROM items WHERE id >= 10 ORDER BY id"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{10}) {
		t.Fatalf("want only the auto committed row, got %v", ids)
	}
	if pool.Len() != 1 {
		t.Fatalf("pooled executions should share one database, got %d", pool.Len())
	}
}

func TestRun_SQLiteRejectsOutBinds(t *testing.T) {
	t.Parallel()

	dsn := newTestDB(t)
	r := NewRunner(NewSQLAcquirer("sqlite3", nil, nil, nil), DefaultConfig(), nil)
	_, err := r.Run(context.Background(), Request{
		SQL:         "SELECT :o",
		Params:      []Param{NewOutParam("o", String, 0)},
		Credentials: Credentials{ConnectString: dsn},
	})
	if !errors.Is(err, OutBindUnsupportedErr) {
		t.Fatalf("want OutBindUnsupportedErr got %v", err)
	}
}

func TestRun_SQLiteSyntaxError(t *testing.T) {
	t.Parallel()

	dsn := newTestDB(t)
	r := NewRunner(NewSQLAcquirer("sqlite3", nil, nil, nil), DefaultConfig(), nil)
	_, err := r.Run(context.Background(), Request{
		SQL:         "SELEC id FROM items",
		Credentials: Credentials{ConnectString: dsn},
	})
	if err == nil || IsValidation(err) {
		t.Fatalf("expected execution error, got %v", err)
	}
	if !strings.Contains(err.Error(), "syntax error") {
		t.Fatalf("driver message lost: %v", err)
	}
}

func TestRun_SQLiteEmptyResultKeepsEveryField(t *testing.T) {
	t.Parallel()

	dsn := newTestDB(t)
	r := NewRunner(NewSQLAcquirer("sqlite3", nil, nil, nil), DefaultConfig(), nil)
	res, err := r.Run(context.Background(), Request{
		SQL:         "SELECT id FROM items WHERE id > :id",
		Params:      []Param{NewNumberParam("id", "100")},
		Credentials: Credentials{ConnectString: dsn},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("result can't be serialized: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"metaData", "rows", "rowsAffected", "lastRowId", "outBinds"} {
		if _, ok := fields[k]; !ok {
			t.Fatalf("field %q missing from %s", k, b)
		}
	}
	if rows, ok := fields["rows"].([]any); !ok || len(rows) != 0 {
		t.Fatalf("want empty rows got %#v", fields["rows"])
	}
}

func TestRun_SQLiteDefaultExecOptionsCommit(t *testing.T) {
	t.Parallel()

	if !DefaultExecOptions().AutoCommit {
		t.Fatal("default options must auto commit")
	}

	dsn := newTestDB(t)
	r := NewRunner(NewSQLAcquirer("sqlite3", nil, nil, nil), DefaultConfig(), nil)
	_, err := r.Run(context.Background(), Request{
		SQL:         "DELETE FROM items WHERE id = :id",
		Params:      []Param{NewNumberParam("id", "1")},
		Credentials: Credentials{ConnectString: dsn},
		Options:     DefaultExecOptions(),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	db := sqlx.MustConnect("sqlite3", dsn)
	defer db.Close()
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM items"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("delete not committed, %d rows left", count)
	}
}
