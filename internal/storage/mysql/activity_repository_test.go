package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync/atomic"
	"testing"
)

func TestMemoryActivityRepositorySaveAndList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemoryActivityRepository(dir)
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	first := &ActivityRecord{Kind: KindTokenCreated, Ledger: "solana", Reference: "mint-1", Signatures: []string{"sig-1"}, Success: true, CreatedAt: 10}
	second := &ActivityRecord{Kind: KindFundsDistributed, Ledger: "solana", Signatures: []string{"a", "b"}, Amount: 1.5, Success: true, CreatedAt: 20}
	for _, rec := range []*ActivityRecord{first, second} {
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("unexpected ids: %d %d", first.ID, second.ID)
	}

	list, err := repo.ListLatest(ctx, 10)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].Kind != KindFundsDistributed || list[1].Reference != "mint-1" {
		t.Fatalf("unexpected list result: %+v", list)
	}

	limited, _ := repo.ListLatest(ctx, 1)
	if len(limited) != 1 || limited[0].ID != 2 {
		t.Fatalf("unexpected limited list: %+v", limited)
	}

	reopened, err := NewMemoryActivityRepository(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	restored, _ := reopened.ListLatest(ctx, 0)
	if len(restored) != 2 || restored[0].Amount != 1.5 || len(restored[0].Signatures) != 2 {
		t.Fatalf("history not restored: %+v", restored)
	}

	third := &ActivityRecord{Kind: KindFeesClaimed, CreatedAt: 30}
	if err := reopened.Save(ctx, third); err != nil {
		t.Fatalf("save after reopen failed: %v", err)
	}
	if third.ID != 3 {
		t.Fatalf("expected id sequence to continue, got %d", third.ID)
	}

	if err := repo.Save(ctx, nil); err == nil {
		t.Fatal("expected error for nil record")
	}
}

func TestSQLActivityRepositorySave(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		execOp(insertActivitySQL, mockResult{lastInsertID: 42, rowsAffected: 1}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	repo := &SQLActivityRepository{db: db}
	record := &ActivityRecord{Kind: KindFeesClaimed, Ledger: "solana", Signatures: []string{"sig"}, Amount: 0.2, Success: true, CreatedAt: 1}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if record.ID != 42 {
		t.Fatalf("expected id 42, got %d", record.ID)
	}
	if got := drv.lastArgs[3].Value; got != `["sig"]` {
		t.Fatalf("signatures should be stored as json, got %v", got)
	}
}

func TestSQLActivityRepositoryListLatest(t *testing.T) {
	t.Parallel()

	rows := mockRowsData{
		columns: []string{"id", "kind", "ledger", "reference", "signatures", "amount", "success", "error_message", "created_at"},
		values: [][]driver.Value{
			{int64(2), KindFundsDistributed, "solana", "", `["a","b"]`, float64(2), int64(0), "Distribution failed: boom", int64(20)},
			{int64(1), KindTokenCreated, "solana", "mint", `["s"]`, float64(0), int64(1), nil, int64(10)},
		},
	}

	db, drv := newMockDB(t, []mockOperation{
		queryOp(listActivitySQL, rows),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	repo := &SQLActivityRepository{db: db}
	list, err := repo.ListLatest(context.Background(), 2)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[0].Success || len(list[0].Signatures) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].Error != "Distribution failed: boom" || list[1].Error != "" || !list[1].Success {
		t.Fatalf("unexpected error columns: %+v", list)
	}
}

func TestRunMigrations(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationsTable, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{columns: []string{"version"}}),
		beginOp(),
		execOp(readMigrationStatement(), mockResult{rowsAffected: 0}),
		execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, mockResult{rowsAffected: 1}),
		commitOp(),
	}
	db, drv := newMockDB(t, ops)
	defer drv.assertConsumed(t)
	defer db.Close()

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestRunMigrationsSkipsApplied(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationsTable, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{
			columns: []string{"version"},
			values:  [][]driver.Value{{"0001"}},
		}),
	}
	db, drv := newMockDB(t, ops)
	defer drv.assertConsumed(t)
	defer db.Close()

	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("user:pass@tcp(127.0.0.1:3306)/creator")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("expected parseTime in %q", dsn)
	}
	if _, err := normalizeDSN("  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestMigrationVersion(t *testing.T) {
	cases := map[string]string{
		"0001_create_activity.sql": "0001",
		"0002.sql":                 "0002",
		"plain":                    "plain",
	}
	for name, want := range cases {
		if got := migrationVersion(name); got != want {
			t.Fatalf("migrationVersion(%q) = %q, want %q", name, got, want)
		}
	}
}

func readMigrationStatement() string {
	content, err := fs.ReadFile(embeddedMigrations, "0001_create_activity.sql")
	if err != nil {
		panic(fmt.Sprintf("failed to read migration: %v", err))
	}
	statements := splitStatements(string(content))
	if len(statements) == 0 {
		panic("no statements in migration")
	}
	return statements[0]
}

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops      []mockOperation
	idx      int32
	lastArgs []driver.NamedValue
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func beginOp() mockOperation { return mockOperation{typ: opBegin} }

func commitOp() mockOperation { return mockOperation{typ: opCommit} }

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *mockConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	op, err := c.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.next(opExec, query)
	if err != nil {
		return nil, err
	}
	c.driver.lastArgs = args
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	c.driver.lastArgs = args
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(ctx context.Context) error { return nil }

func (c *mockConn) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&c.driver.idx))
	if idx >= len(c.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &c.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&c.driver.idx, 1)
	if op.query != "" {
		expectedSQL := normalizeSQL(op.query)
		actualSQL := normalizeSQL(query)
		if expectedSQL != actualSQL {
			return nil, fmt.Errorf("unexpected query. want %q got %q", expectedSQL, actualSQL)
		}
	}
	return op, nil
}

type mockTx struct {
	driver *queueDriver
}

func (t *mockTx) Commit() error {
	op, err := t.next(opCommit)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) Rollback() error {
	op, err := t.next(opRollback)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) next(expected operationType) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&t.driver.idx))
	if idx >= len(t.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &t.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&t.driver.idx, 1)
	return op, nil
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func normalizeSQL(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}
