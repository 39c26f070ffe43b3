package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/seenimoa/stockai/pkg/models"
)

const (
	// DefaultDirectoryURL lists every NSE equity.
	DefaultDirectoryURL = "https://api.twelvedata.com/stocks?exchange=XNSE"
	// DefaultDirectoryRefresh is how long a downloaded directory stays fresh.
	DefaultDirectoryRefresh = 24 * time.Hour
)

// ErrDirectoryUnavailable is returned when neither a file nor a download
// produced a directory.
var ErrDirectoryUnavailable = errors.New("symbol directory unavailable")

// Directory maps company names to NSE symbols. It is kept in memory and
// mirrored to a JSON file so restarts do not need the network.
type Directory struct {
	path    string
	url     string
	refresh time.Duration
	client  *http.Client
	log     zerolog.Logger

	mu       sync.RWMutex
	listings []models.Listing
	symbols  map[string]struct{}
	loadedAt time.Time

	cron *cron.Cron
}

// NewDirectory creates a directory backed by path and refreshed from url.
func NewDirectory(path, url string, refresh time.Duration, log zerolog.Logger) *Directory {
	if url == "" {
		url = DefaultDirectoryURL
	}
	if refresh <= 0 {
		refresh = DefaultDirectoryRefresh
	}
	return &Directory{
		path:    path,
		url:     url,
		refresh: refresh,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
		symbols: make(map[string]struct{}),
	}
}

// Load reads the file when it is fresh, otherwise downloads a new copy.
// A failed download falls back to a stale file.
func (d *Directory) Load(ctx context.Context) error {
	info, statErr := os.Stat(d.path)
	if statErr == nil && time.Since(info.ModTime()) < d.refresh {
		if err := d.loadFile(); err == nil {
			return nil
		}
	}

	err := d.Refresh(ctx)
	if err == nil {
		return nil
	}
	if statErr == nil {
		if ferr := d.loadFile(); ferr == nil {
			d.log.Warn().Err(err).Str("path", d.path).Msg("directory refresh failed, using stale copy")
			return nil
		}
	}
	return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
}

// Refresh downloads the listing and replaces the in-memory copy and file.
// On failure the previous copy is kept.
func (d *Directory) Refresh(ctx context.Context) error {
	body, err := doGet(ctx, d.client, DefaultUserAgent, d.url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return fmt.Errorf("download directory: %w", err)
	}
	defer body.Close()

	var resp struct {
		Data []models.Listing `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fmt.Errorf("decode directory: %w", err)
	}
	if len(resp.Data) == 0 {
		return fmt.Errorf("download directory: empty listing")
	}

	listings := make([]models.Listing, 0, len(resp.Data))
	for _, l := range resp.Data {
		if l.Symbol != "" {
			listings = append(listings, models.Listing{Symbol: l.Symbol, Name: l.Name})
		}
	}
	d.set(listings)

	if d.path != "" {
		if err := d.saveFile(listings); err != nil {
			d.log.Warn().Err(err).Str("path", d.path).Msg("could not write directory file")
		}
	}
	d.log.Info().Int("listings", len(listings)).Msg("symbol directory refreshed")
	return nil
}

// StartRefresh re-downloads the directory on the refresh interval.
func (d *Directory) StartRefresh(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", d.refresh), func() {
		if err := d.Refresh(ctx); err != nil {
			d.log.Warn().Err(err).Msg("scheduled directory refresh failed, keeping previous copy")
		}
	})
	if err != nil {
		return err
	}
	d.cron = c
	c.Start()
	return nil
}

// Stop halts the refresh job.
func (d *Directory) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
		d.cron = nil
	}
}

// Search returns every listing whose normalized name contains the
// normalized query. An empty query matches nothing.
func (d *Directory) Search(name string) []models.Listing {
	q := normalizeName(name)
	if q == "" {
		return []models.Listing{}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	matches := make([]models.Listing, 0)
	for _, l := range d.listings {
		if strings.Contains(normalizeName(l.Name), q) {
			matches = append(matches, l)
		}
	}
	return matches
}

// Has reports whether symbol is a known listing.
func (d *Directory) Has(symbol string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.symbols[strings.ToUpper(symbol)]
	return ok
}

// Len returns the number of listings.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listings)
}

// LoadedAt returns when the current copy was installed.
func (d *Directory) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt
}

// --- Internal helpers ---

func (d *Directory) set(listings []models.Listing) {
	symbols := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		symbols[strings.ToUpper(l.Symbol)] = struct{}{}
	}
	d.mu.Lock()
	d.listings = listings
	d.symbols = symbols
	d.loadedAt = time.Now()
	d.mu.Unlock()
}

func (d *Directory) loadFile() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return err
	}
	var listings []models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return fmt.Errorf("decode %s: %w", d.path, err)
	}
	if len(listings) == 0 {
		return fmt.Errorf("%s: empty directory", d.path)
	}
	d.set(listings)
	d.log.Debug().Int("listings", len(listings)).Str("path", d.path).Msg("symbol directory loaded from file")
	return nil
}

func (d *Directory) saveFile(listings []models.Listing) error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return err
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}

var (
	reLimited = regexp.MustCompile(`\blimited\b`)
	rePrivate = regexp.MustCompile(`\bprivate\b`)
	reCo      = regexp.MustCompile(`\bco\b`)
	rePunct   = regexp.MustCompile(`[.,']`)
)

// normalizeName folds a company name for matching: lower case,
// "limited"→"ltd", "private"→"pvt", "co"→"company", punctuation removed.
func normalizeName(name string) string {
	s := strings.ToLower(name)
	s = reLimited.ReplaceAllString(s, "ltd")
	s = rePrivate.ReplaceAllString(s, "pvt")
	s = reCo.ReplaceAllString(s, "company")
	s = rePunct.ReplaceAllString(s, "")
	return strings.TrimSpace(norm.NFC.String(s))
}
