// Package universe loads the monitored tickers and mode from a spreadsheet export.
package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"KabuSentinel/internal/model"
)

// Source locates the sheet. Location is an http(s) URL or a local path.
type Source struct {
	Location string `yaml:"location"`
	Encoding string `yaml:"encoding"` // "utf-8" (default) or "shift_jis"
}

// SheetURL builds the CSV export URL of a Google Sheet.
func SheetURL(sheetID string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", sheetID)
}

// Universe is the parsed sheet: the mode from cell B1 and the tickers from column A, row 3 on.
type Universe struct {
	Mode    model.Mode
	Tickers []string
}

// Load fetches and parses the sheet.
func Load(ctx context.Context, client *http.Client, src Source) (*Universe, error) {
	rc, err := open(ctx, client, src.Location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	switch strings.ToLower(strings.ReplaceAll(src.Encoding, "-", "_")) {
	case "", "utf8", "utf_8":
	case "shift_jis", "sjis", "cp932":
		r = transform.NewReader(rc, japanese.ShiftJIS.NewDecoder())
	default:
		return nil, fmt.Errorf("unsupported sheet encoding %q", src.Encoding)
	}
	return Parse(r)
}

// LoadOrDefault loads the sheet and falls back to the given tickers in SWING mode on any failure.
func LoadOrDefault(ctx context.Context, client *http.Client, src Source, fallback []string) *Universe {
	if src.Location == "" {
		return &Universe{Mode: model.ModeSwing, Tickers: Normalize(fallback)}
	}
	u, err := Load(ctx, client, src)
	if err != nil {
		log.Warn().Err(err).Str("component", "universe").Msg("sheet unavailable, using configured tickers")
		return &Universe{Mode: model.ModeSwing, Tickers: Normalize(fallback)}
	}
	return u
}

func open(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open sheet: %w", err)
		}
		return f, nil
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch sheet: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Parse reads the sheet layout from CSV.
func Parse(r io.Reader) (*Universe, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}

	u := &Universe{Mode: model.ModeSwing}
	if len(rows) > 0 && len(rows[0]) > 1 {
		u.Mode = model.ParseMode(rows[0][1])
	}
	var raw []string
	for i := 2; i < len(rows); i++ {
		if len(rows[i]) > 0 {
			raw = append(raw, rows[i][0])
		}
	}
	u.Tickers = Normalize(raw)
	return u, nil
}

// NormalizeTicker turns a bare TSE code into its Yahoo symbol ("7203" -> "7203.T").
func NormalizeTicker(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return strings.ToUpper(s)
		}
	}
	return s + ".T"
}

// Normalize normalizes every ticker, dropping blanks and duplicates while keeping order.
func Normalize(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := NormalizeTicker(r)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
