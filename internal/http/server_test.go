package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hisab/internal/config"
	"hisab/internal/printing"
	"hisab/internal/services"
	"hisab/internal/storage"
)

type testServer struct {
	srv       *Server
	book      *services.AccountingService
	backupDir string
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "book.db"))
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC) }
	book := services.NewAccountingService(repo, config.DefaultCompany(), services.WithClock(clock))
	t.Cleanup(func() { book.Close() })

	renderer, err := printing.NewRenderer(nil)
	require.NoError(t, err)
	data, err := storage.NewDataStore(filepath.Join(dir, "store"))
	require.NoError(t, err)

	backupDir := filepath.Join(dir, "backups")
	srv := NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000}, Deps{
		Book:      book,
		Renderer:  renderer,
		Data:      data,
		BackupDir: backupDir,
	})
	return testServer{srv: srv, book: book, backupDir: backupDir}
}

// do sends a JSON request and decodes the envelope.
func (ts testServer) do(t *testing.T, method, path string, body any) (int, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	return rr.Code, env
}

// dataMap returns the envelope payload as an object.
func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return m
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		ts.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing security headers: %v", path, rr.Header())
		}
	}

	code, env := ts.do(t, http.MethodGet, "/api/nope", nil)
	if code != http.StatusNotFound || env.Success {
		t.Fatalf("unknown endpoint: %d %+v", code, env)
	}
}

func TestRejectsNonJSONBody(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/customers", strings.NewReader("name=Ram"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestSaleLedgerAndAging(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/customers", map[string]any{"name": "Ram Traders", "credit_days": 15})
	require.Equal(t, http.StatusCreated, code, env.Error)
	customerID := int64(dataMap(t, env)["id"].(float64))

	code, env = ts.do(t, http.MethodPost, "/api/customers", map[string]any{"name": "  ram   TRADERS "})
	require.Equal(t, http.StatusConflict, code)
	require.False(t, env.Success)

	code, env = ts.do(t, http.MethodPost, "/api/services", map[string]any{"name": "Web design", "rate": "500", "taxable": true})
	require.Equal(t, http.StatusCreated, code, env.Error)
	serviceID := int64(dataMap(t, env)["id"].(float64))

	code, env = ts.do(t, http.MethodGet, "/api/transactions/next-number?type=sale&date=2024-07-16", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "SI-2081/82-0001", dataMap(t, env)["number"])

	code, env = ts.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"type":     "sale",
		"party_id": customerID,
		"date":     "2024-07-16",
		"items":    []map[string]any{{"service_id": serviceID, "quantity": "3"}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	sale := dataMap(t, env)
	require.Equal(t, "SI-2081/82-0001", sale["number"])
	require.Equal(t, "1695.00", sale["total"])
	require.Equal(t, "195.00", sale["vat"])
	require.Equal(t, "credit", sale["payment_mode"])
	require.Equal(t, "2081-04-01", sale["bs_date"])

	for _, path := range []string{
		fmt.Sprintf("/api/customers/%d/ledger", customerID),
		fmt.Sprintf("/api/parties/customers/%d/ledger", customerID),
	} {
		code, env = ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, code, env.Error)
		years := dataMap(t, env)["years"].([]any)
		require.Len(t, years, 1)
		year := years[0].(map[string]any)
		require.Equal(t, "2081/82", year["fiscal_year"])
		require.Equal(t, map[string]any{"amount": "1695.00", "type": "DR"}, year["closing"])
	}

	code, env = ts.do(t, http.MethodGet, "/api/reports/aging?kind=customer&as_of=2024-09-01", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	aging := dataMap(t, env)
	require.Equal(t, "1695.00", aging["total"])
	require.Equal(t, "1695.00", aging["totals"].(map[string]any)["31-60"])

	code, env = ts.do(t, http.MethodGet, "/api/reports/summary?type=sale&group=fiscal_year", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	require.Len(t, env.Data.([]any), 1)

	code, _ = ts.do(t, http.MethodGet, "/api/reports/summary?group=weekly", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, env = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/customers/%d", customerID), nil)
	require.Equal(t, http.StatusConflict, code)
	require.False(t, env.Success)

	code, env = ts.do(t, http.MethodGet, "/api/transactions?party_kind=customer&items=1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, env.Data.([]any), 1)
}

func TestTransactionValidation(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/transactions", map[string]any{"type": "gift", "total": "10"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Error, "type must be one of")
	require.Contains(t, env.Error, "party_id is required")

	code, env = ts.do(t, http.MethodPost, "/api/transactions", map[string]any{"type": "payment_in", "party_id": 99, "total": "10"})
	require.Equal(t, http.StatusNotFound, code, env.Error)

	code, _ = ts.do(t, http.MethodGet, "/api/transactions?from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestBridgeQueryAndUpdate(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/db-update", map[string]any{
		"sql":    "INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)",
		"params": []any{"theme", "dark", "2024-09-01T00:00:00Z"},
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.Equal(t, float64(1), dataMap(t, env)["changes"])

	code, env = ts.do(t, http.MethodPost, "/api/db-query", map[string]any{
		"sql":    "SELECT value FROM settings WHERE key = ?",
		"params": []any{"theme"},
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	rows := env.Data.([]any)
	require.Len(t, rows, 1)
	require.Equal(t, "dark", rows[0].(map[string]any)["value"])

	for _, stmt := range []string{"DELETE FROM settings", "SELECT 1; DROP TABLE settings"} {
		code, env = ts.do(t, http.MethodPost, "/api/db-query", map[string]any{"sql": stmt})
		require.Equal(t, http.StatusBadRequest, code, stmt)
		require.False(t, env.Success)
	}

	code, _ = ts.do(t, http.MethodPost, "/api/db-update", map[string]any{"sql": "DROP TABLE settings"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestSaveAndLoadData(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/save-data", map[string]any{"key": "drafts", "data": map[string]any{"open": []int{1, 2}}})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = ts.do(t, http.MethodPost, "/api/load-data", map[string]any{"key": "drafts"})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.Equal(t, []any{float64(1), float64(2)}, dataMap(t, env)["open"])

	code, _ = ts.do(t, http.MethodPost, "/api/load-data", map[string]any{"key": "missing"})
	require.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, http.MethodPost, "/api/save-data", map[string]any{"key": "../etc", "data": 1})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestBackupAndRestore(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/customers", map[string]any{"name": "Sita Stores"})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = ts.do(t, http.MethodPost, "/api/db-backup", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	path := dataMap(t, env)["path"].(string)
	require.Equal(t, ts.backupDir, filepath.Dir(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	code, _ = ts.do(t, http.MethodPost, "/api/db-backup", map[string]any{"path": path})
	require.Equal(t, http.StatusConflict, code)

	code, env = ts.do(t, http.MethodPost, "/api/customers", map[string]any{"name": "Hari Suppliers"})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = ts.do(t, http.MethodPost, "/api/db-restore", map[string]any{"path": path})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = ts.do(t, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, env.Data.([]any), 1)

	bogus := filepath.Join(t.TempDir(), "notes.db")
	require.NoError(t, os.WriteFile(bogus, []byte("not a database"), 0o644))
	code, _ = ts.do(t, http.MethodPost, "/api/db-restore", map[string]any{"path": bogus})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestPrintInvoice(t *testing.T) {
	ts := newTestServer(t)

	_, env := ts.do(t, http.MethodPost, "/api/customers", map[string]any{"name": "Ram Traders"})
	customerID := dataMap(t, env)["id"]
	code, env := ts.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"type":     "sale",
		"party_id": customerID,
		"date":     "2024-07-16",
		"total":    "1000",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	txID := dataMap(t, env)["id"]

	code, env = ts.do(t, http.MethodPost, "/api/print-to-pdf", map[string]any{
		"document":       "invoice",
		"transaction_id": txID,
		"format":         "html",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.Contains(t, dataMap(t, env)["html"], "SI-2081/82-0001")

	code, env = ts.do(t, http.MethodPost, "/api/print-to-pdf", map[string]any{"document": "aging", "format": "pdf"})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.False(t, env.Success)

	code, _ = ts.do(t, http.MethodPost, "/api/print-to-pdf", map[string]any{"document": "invoice"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestSettingsAndActivity(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPut, "/api/settings/vat_rate", map[string]any{"value": "15"})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = ts.do(t, http.MethodPut, "/api/settings/sequence.sale.2081%2F82", map[string]any{"value": "9"})
	require.Equal(t, http.StatusBadRequest, code)

	code, env = ts.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "15", dataMap(t, env)["vat_rate"])

	code, env = ts.do(t, http.MethodGet, "/api/activity?page=1&size=10", nil)
	require.Equal(t, http.StatusOK, code)
	entries := dataMap(t, env)["entries"].([]any)
	require.NotEmpty(t, entries)
}

func TestShutdownIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ctx := t.Context()
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := ts.srv.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
