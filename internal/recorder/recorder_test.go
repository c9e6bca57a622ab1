package recorder

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"KabuSentinel/internal/model"
)

func openTemp(t *testing.T) *SQLRecorder {
	t.Helper()
	r, err := Open("sqlite", filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLRecorder_RunAndSignals(t *testing.T) {
	r := openTemp(t)
	start := time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)
	run := &model.RunSummary{
		ID: uuid.NewString(), Mode: model.ModeDay, StartedAt: start, FinishedAt: start.Add(time.Minute),
		Tickers: 3, Skipped: 1, Signals: 2, Sent: true,
	}
	if err := r.RecordRun(run); err != nil {
		t.Fatal(err)
	}
	signals := []model.Signal{
		{Ticker: "7203.T", RuleID: "rsi_oversold", Direction: model.DirectionBuy, Message: "RSI",
			BarTime: start, Snapshot: model.Snapshot{Close: 2345, RSI: 21.5, MACDHist: math.NaN(), RCI9: math.NaN()}},
		{Ticker: "9984.T", RuleID: "ma200_resistance", Direction: model.DirectionSell, Strong: true,
			BarTime: start, Snapshot: model.Snapshot{Close: 9000, RSI: math.NaN(), MACDHist: -1.5, RCI9: 80}},
	}
	if err := r.RecordSignals(run.ID, signals); err != nil {
		t.Fatal(err)
	}

	var mode string
	var sent bool
	if err := r.db.QueryRow(`SELECT mode, sent FROM runs WHERE id = ?`, run.ID).Scan(&mode, &sent); err != nil {
		t.Fatal(err)
	}
	if mode != "DAY" || !sent {
		t.Errorf("run row = %s %v", mode, sent)
	}

	var n, nullRSI int
	if err := r.db.QueryRow(`SELECT COUNT(*), SUM(rsi IS NULL) FROM signals WHERE run_id = ?`, run.ID).Scan(&n, &nullRSI); err != nil {
		t.Fatal(err)
	}
	if n != 2 || nullRSI != 1 {
		t.Errorf("signals = %d, null rsi = %d", n, nullRSI)
	}
}

func TestSQLRecorder_EmptySignals(t *testing.T) {
	r := openTemp(t)
	if err := r.RecordSignals("x", nil); err != nil {
		t.Fatal(err)
	}
}

func TestSQLRecorder_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	r, err := Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RecordRun(&model.RunSummary{ID: "a", Mode: model.ModeSwing, Closed: true}); err != nil {
		t.Fatal(err)
	}
	r.Close()

	r, err = Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var n int
	r.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	if n != 1 {
		t.Errorf("runs after reopen = %d", n)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRecorder{driver: "postgres"}
	if got := pg.rebind("VALUES (?,?,?)"); got != "VALUES ($1,$2,$3)" {
		t.Errorf("postgres rebind = %s", got)
	}
	lite := &SQLRecorder{driver: "sqlite"}
	if got := lite.rebind("VALUES (?,?)"); got != "VALUES (?,?)" {
		t.Errorf("sqlite rebind = %s", got)
	}
}

func TestNew_FallsBackToNoop(t *testing.T) {
	if _, ok := New("", "").(*NoopRecorder); !ok {
		t.Error("unconfigured recorder should be noop")
	}
	if _, ok := New("mysql", "dsn").(*NoopRecorder); !ok {
		t.Error("unsupported driver should be noop")
	}
	if _, ok := New("sqlite", filepath.Join(t.TempDir(), "h.db")).(*SQLRecorder); !ok {
		t.Error("sqlite recorder expected")
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "nested", "history.db")
	r, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Open with missing directory: %v", err)
	}
	r.Close()
	if _, err := os.Stat(dsn); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestSQLiteDir(t *testing.T) {
	tests := map[string]string{
		"data/history.db":                   "data",
		"file:data/h.db?_pragma=busy(5000)": "data",
		"history.db":                        "",
		":memory:":                          "",
		"file::memory:?cache=shared":        "",
	}
	for dsn, want := range tests {
		if got := sqliteDir(dsn); got != want {
			t.Errorf("sqliteDir(%q) = %q, want %q", dsn, got, want)
		}
	}
}
