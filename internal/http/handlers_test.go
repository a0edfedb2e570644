package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fireledger/internal/core"
	"fireledger/internal/services"
)

type fakePipeline struct {
	lastRequest services.ProcessRequest
	result      services.ProcessResult
	err         error
}

func (f *fakePipeline) Process(_ context.Context, req services.ProcessRequest) (services.ProcessResult, error) {
	f.lastRequest = req
	return f.result, f.err
}

func newTestServer(t *testing.T, pipeline *fakePipeline, csvDir string) *Server {
	t.Helper()
	srv := NewServer(":0", pipeline, csvDir)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, t.TempDir())
	rec := doRequest(srv, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHandleCSVFiles(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "april.csv")
	newer := filepath.Join(dir, "may.csv")
	if err := os.WriteFile(older, []byte("Date,Amount,Description,Category\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte("Date,Amount,Description,Category\n"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}
	// Non-CSV files are not listed.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, &fakePipeline{}, dir)
	rec := doRequest(srv, http.MethodGet, "/api/csv-files", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var files []csvFileInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("listed %d files, want 2", len(files))
	}
	if files[0].Name != "may.csv" || !files[0].Default {
		t.Errorf("first entry = %+v, want may.csv as default", files[0])
	}
	if files[1].Default {
		t.Error("older file flagged as default")
	}
}

func TestHandleProcess_Inline(t *testing.T) {
	dir := t.TempDir()
	pipeline := &fakePipeline{
		result: services.ProcessResult{
			Period:       core.Period{Year: 2024, Month: time.May},
			Transactions: 3,
		},
	}
	srv := newTestServer(t, pipeline, dir)

	rec := doRequest(srv, http.MethodPost, "/api/process",
		`{"csv_file": "may.csv", "shadow": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if got, want := pipeline.lastRequest.CSVPath, filepath.Join(dir, "may.csv"); got != want {
		t.Errorf("CSVPath = %q, want %q", got, want)
	}
	if !pipeline.lastRequest.AutoDate {
		t.Error("AutoDate should default to true")
	}
	if !pipeline.lastRequest.Shadow {
		t.Error("Shadow flag was not forwarded")
	}

	var resp processResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "shadow" || resp.Period != "May, 24" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleProcess_RejectsPathTraversal(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, t.TempDir())
	rec := doRequest(srv, http.MethodPost, "/api/process",
		`{"csv_file": "../secrets.csv"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleProcess_MonthWithoutYear(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, t.TempDir())
	rec := doRequest(srv, http.MethodPost, "/api/process",
		`{"csv_file": "may.csv", "month": 5}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleProcess_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing period", core.ErrMissingPeriod, http.StatusUnprocessableEntity},
		{"expected period missing", core.ErrExpectedPeriodMissing, http.StatusUnprocessableEntity},
		{"schema mismatch", core.ErrSchemaMismatch, http.StatusConflict},
		{"store unreachable", core.ErrStoreUnreachable, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakePipeline{err: tt.err}, t.TempDir())
			rec := doRequest(srv, http.MethodPost, "/api/process",
				`{"csv_file": "may.csv"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleProcess_AsyncWithoutPublisher(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, t.TempDir())
	rec := doRequest(srv, http.MethodPost, "/api/process",
		`{"csv_file": "may.csv", "async": true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleAnalytics_WithoutArchive(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, t.TempDir())
	rec := doRequest(srv, http.MethodGet, "/api/analytics", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
