package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	ports "finview/internal/sheets"
)

const testSheetID = "sheet-123"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, srv *httptest.Server, sheet string, retries int) *Client {
	t.Helper()
	c, err := New(Options{
		SpreadsheetID: testSheetID,
		SheetName:     sheet,
		MaxRetries:    retries,
		RetryWait:     time.Millisecond,
		Endpoint:      srv.URL + "/",
		HTTPClient:    srv.Client(),
		Logger:        quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func batchGetBody(totals []interface{}, rows [][]interface{}) map[string]interface{} {
	tv := [][]interface{}{}
	if totals != nil {
		tv = append(tv, totals)
	}
	return map[string]interface{}{
		"spreadsheetId": testSheetID,
		"valueRanges": []map[string]interface{}{
			{"range": "Ledger!I5:K5", "majorDimension": "ROWS", "values": tv},
			{"range": "Ledger!A3:D999", "majorDimension": "ROWS", "values": rows},
		},
	}
}

func TestReadLedger(t *testing.T) {
	var gotAuth string
	var gotRanges []string
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRanges = r.URL.Query()["ranges"]
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batchGetBody(
			[]interface{}{"$1,250.00", "$8,400.10", "$310.00"},
			[][]interface{}{
				{"Paycheck", "$500.00", "$250.00", "$50.00"},
				{"Target", "-$42.50"},
				{},
				{"Church", "", "", 20},
			},
		))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "Ledger", 0)
	raw, err := c.ReadLedger(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("ReadLedger() error: %v", err)
	}

	if gotAuth != "Bearer tok-abc" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotPath != "/v4/spreadsheets/"+testSheetID+"/values:batchGet" {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotRanges) != 2 || gotRanges[0] != "Ledger!I5:K5" || gotRanges[1] != "Ledger!A3:D999" {
		t.Errorf("ranges = %v", gotRanges)
	}

	if len(raw.Totals) != 3 || raw.Totals[1] != "$8,400.10" {
		t.Errorf("totals = %v", raw.Totals)
	}
	if len(raw.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(raw.Rows))
	}
	if raw.Rows[0][0] != "Paycheck" || raw.Rows[1][1] != "-$42.50" {
		t.Errorf("unexpected rows: %v", raw.Rows)
	}
	if len(raw.Rows[2]) != 0 {
		t.Errorf("empty row should stay empty, got %v", raw.Rows[2])
	}
	if raw.Rows[3][3] != "20" {
		t.Errorf("numeric cells are stringified, got %q", raw.Rows[3][3])
	}
}

func TestReadLedger_EmptySheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batchGetBody(nil, nil))
	}))
	defer srv.Close()

	raw, err := newTestClient(t, srv, "Ledger", 0).ReadLedger(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ReadLedger() error: %v", err)
	}
	if len(raw.Totals) != 0 || len(raw.Rows) != 0 {
		t.Errorf("expected empty ledger, got %+v", raw)
	}
}

func TestReadLedger_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials.","status":"UNAUTHENTICATED"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "Ledger", 3).ReadLedger(context.Background(), "expired")
	if !errors.Is(err, ports.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestReadLedger_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a token")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "Ledger", 0).ReadLedger(context.Background(), "  ")
	if !errors.Is(err, ports.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestReadLedger_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(batchGetBody([]interface{}{"1", "2", "3"}, nil))
	}))
	defer srv.Close()

	raw, err := newTestClient(t, srv, "Ledger", 2).ReadLedger(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ReadLedger() error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if len(raw.Totals) != 3 {
		t.Errorf("totals = %v", raw.Totals)
	}
}

func TestReadLedger_ServerErrorAbortsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
	}))
	defer srv.Close()

	raw, err := newTestClient(t, srv, "Ledger", 0).ReadLedger(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ports.ErrUnauthorized) {
		t.Errorf("server errors must not look like auth failures: %v", err)
	}
	if raw.Totals != nil || raw.Rows != nil {
		t.Errorf("no partial ledger on failure, got %+v", raw)
	}
}

func TestNew_RequiresSpreadsheetID(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestA1Range(t *testing.T) {
	tests := []struct {
		sheet, rng, want string
	}{
		{"", "I5:K5", "I5:K5"},
		{"Ledger", "I5:K5", "Ledger!I5:K5"},
		{"My Budget", "A3:D999", "'My Budget'!A3:D999"},
		{"Bob's", "A3:D999", "'Bob''s'!A3:D999"},
		{"  Sheet1 ", "A1", "Sheet1!A1"},
	}
	for _, tt := range tests {
		if got := a1Range(tt.sheet, tt.rng); got != tt.want {
			t.Errorf("a1Range(%q, %q) = %q, want %q", tt.sheet, tt.rng, got, tt.want)
		}
	}
}
