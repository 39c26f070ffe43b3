package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/pkg/models"
)

const twelveDataBody = `{"data": [
  {"symbol": "IRCTC", "name": "Indian Railway Catering And Tourism Corporation Limited", "exchange": "NSE"},
  {"symbol": "TCS", "name": "Tata Consultancy Services Limited"},
  {"symbol": "TATAMOTORS", "name": "Tata Motors Limited"},
  {"symbol": "", "name": "blank"}
]}`

func newDirectoryServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeDirectoryFile(t *testing.T, path string, listings []models.Listing, age time.Duration) {
	t.Helper()
	data, _ := json.Marshal(listings)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	mod := time.Now().Add(-age)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestDirectoryLoadDownloadsAndSaves(t *testing.T) {
	srv, _ := newDirectoryServer(t, twelveDataBody, http.StatusOK)
	path := filepath.Join(t.TempDir(), "nse", "symbols.json")

	d := NewDirectory(path, srv.URL, time.Hour, zerolog.Nop())
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Len() != 3 {
		t.Errorf("Len = %d, want 3 (blank symbol dropped)", d.Len())
	}
	if !d.Has("tcs") || d.Has("INFY") {
		t.Error("Has mismatch")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("directory file not written: %v", err)
	}
}

func TestDirectoryLoadUsesFreshFile(t *testing.T) {
	srv, hits := newDirectoryServer(t, twelveDataBody, http.StatusOK)
	path := filepath.Join(t.TempDir(), "symbols.json")
	writeDirectoryFile(t, path, []models.Listing{{Symbol: "INFY", Name: "Infosys Limited"}}, time.Minute)

	d := NewDirectory(path, srv.URL, time.Hour, zerolog.Nop())
	if err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 0 {
		t.Error("fresh file should not trigger a download")
	}
	if !d.Has("INFY") {
		t.Error("file contents not loaded")
	}
}

func TestDirectoryStaleFileFallback(t *testing.T) {
	srv, hits := newDirectoryServer(t, "", http.StatusServiceUnavailable)
	path := filepath.Join(t.TempDir(), "symbols.json")
	writeDirectoryFile(t, path, []models.Listing{{Symbol: "INFY", Name: "Infosys Limited"}}, 48*time.Hour)

	d := NewDirectory(path, srv.URL, time.Hour, zerolog.Nop())
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load should fall back to the stale file: %v", err)
	}
	if hits.Load() != 1 || !d.Has("INFY") {
		t.Errorf("hits=%d Has(INFY)=%v", hits.Load(), d.Has("INFY"))
	}
}

func TestDirectoryUnavailable(t *testing.T) {
	srv, _ := newDirectoryServer(t, `{"data": []}`, http.StatusOK)
	d := NewDirectory(filepath.Join(t.TempDir(), "none.json"), srv.URL, time.Hour, zerolog.Nop())

	if err := d.Load(context.Background()); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Errorf("err = %v, want ErrDirectoryUnavailable", err)
	}
	if got := d.Search("tata"); got == nil || len(got) != 0 {
		t.Errorf("Search on empty directory = %#v, want empty slice", got)
	}
}

func TestDirectoryRefreshKeepsPreviousOnFailure(t *testing.T) {
	srv, _ := newDirectoryServer(t, twelveDataBody, http.StatusOK)
	d := NewDirectory("", srv.URL, time.Hour, zerolog.Nop())
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	d.url = "http://127.0.0.1:1/unreachable"
	if err := d.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if d.Len() != 3 {
		t.Errorf("Len = %d, previous copy lost", d.Len())
	}
}

func TestDirectorySearch(t *testing.T) {
	srv, _ := newDirectoryServer(t, twelveDataBody, http.StatusOK)
	d := NewDirectory("", srv.URL, time.Hour, zerolog.Nop())
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"tata", []string{"TCS", "TATAMOTORS"}},
		{"Tata Motors Ltd.", []string{"TATAMOTORS"}},
		{"indian railway catering", []string{"IRCTC"}},
		{"   ", nil},
		{"nothing like this", nil},
	}
	for _, tt := range tests {
		got := d.Search(tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("Search(%q) = %+v, want %v", tt.query, got, tt.want)
			continue
		}
		for i, sym := range tt.want {
			if got[i].Symbol != sym {
				t.Errorf("Search(%q)[%d] = %s, want %s", tt.query, i, got[i].Symbol, sym)
			}
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Tata Motors Limited", "tata motors ltd"},
		{"ABC Private Ltd.", "abc pvt ltd"},
		{"Larsen & Toubro Co.", "larsen & toubro company"},
		{"Dr. Reddy's Laboratories", "dr reddys laboratories"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDirectoryStartRefresh(t *testing.T) {
	srv, _ := newDirectoryServer(t, twelveDataBody, http.StatusOK)
	d := NewDirectory("", srv.URL, time.Hour, zerolog.Nop())
	if err := d.StartRefresh(context.Background()); err != nil {
		t.Fatalf("StartRefresh: %v", err)
	}
	d.Stop()
	d.Stop()
}
