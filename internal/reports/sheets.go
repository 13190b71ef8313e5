// Package reports reads precomputed monthly aggregates from a Google
// Spreadsheet, as an alternative to the SQLite report tables.
package reports

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendrag/internal/core"
	"spendrag/internal/log"
	"spendrag/internal/router"
)

const (
	tabMonthlyTotal      = "monthly_total"
	tabMonthlyByCategory = "monthly_by_category"
	tabTopItems          = "top_items"

	tabRange = "A1:H"

	DefaultCacheDuration = 5 * time.Minute
	topItemsLimit        = 20
)

// valuesReader reads one A1 range of the spreadsheet.
type valuesReader interface {
	ReadRange(ctx context.Context, rng string) ([][]interface{}, error)
}

type sheetsValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s sheetsValues) ReadRange(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// SheetsSource serves monthly reports from the spreadsheet tabs
// monthly_total, monthly_by_category and top_items. The three tabs are read
// together and kept for cacheValidDuration.
type SheetsSource struct {
	values             valuesReader
	logger             *log.Logger
	cacheValidDuration time.Duration
	now                func() time.Time

	mu             sync.Mutex
	cacheExpiresAt time.Time
	totals         [][]interface{}
	categories     [][]interface{}
	topItems       [][]interface{}
}

var _ router.ReportSource = (*SheetsSource)(nil)

// SheetsConfig selects the spreadsheet and its credentials. A service
// account wins over an OAuth client and token.
type SheetsConfig struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenFile     string
	CacheDuration      time.Duration
}

// NewSheetsSource creates a source backed by a service account. Missing
// configuration wraps core.ErrCapabilityUnavailable.
func NewSheetsSource(ctx context.Context, cfg SheetsConfig, logger *log.Logger) (*SheetsSource, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("missing GOOGLE_SPREADSHEET_ID: %w", core.ErrCapabilityUnavailable)
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newSource(sheetsValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.CacheDuration, logger), nil
}

func newSource(values valuesReader, cacheDuration time.Duration, logger *log.Logger) *SheetsSource {
	if cacheDuration <= 0 {
		cacheDuration = DefaultCacheDuration
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SheetsSource{
		values:             values,
		logger:             logger.WithComponent(log.ComponentReports),
		cacheValidDuration: cacheDuration,
		now:                time.Now,
	}
}

// newSheetsService initializes a Sheets Service using service account
// credentials, inline JSON first, then a file. Without a service account it
// falls back to a user token saved by Authorize.
func newSheetsService(ctx context.Context, cfg SheetsConfig) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	case strings.TrimSpace(cfg.OAuthTokenFile) != "":
		ts, err := userTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		service, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return service, nil
	default:
		return nil, fmt.Errorf("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE): %w",
			core.ErrCapabilityUnavailable)
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// MonthlyReport reads the report for month. An empty totals tab wraps
// core.ErrCapabilityUnavailable; a month without a totals row wraps
// core.ErrNoMatch.
func (s *SheetsSource) MonthlyReport(ctx context.Context, month string) (core.MonthlyReport, error) {
	if _, err := core.ParseMonth(month); err != nil {
		return core.MonthlyReport{}, err
	}
	totals, categories, top, err := s.tabs(ctx)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	if len(totals) < 2 {
		return core.MonthlyReport{}, fmt.Errorf("%s tab is empty: %w", tabMonthlyTotal, core.ErrCapabilityUnavailable)
	}
	report, ok, err := parseReport(month, totals, categories, top, topItemsLimit)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	if !ok {
		return core.MonthlyReport{}, fmt.Errorf("month %s: %w", month, core.ErrNoMatch)
	}
	return report, nil
}

// Invalidate drops the cached tabs so the next read goes to the API.
func (s *SheetsSource) Invalidate() {
	s.mu.Lock()
	s.cacheExpiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *SheetsSource) tabs(ctx context.Context) (totals, categories, top [][]interface{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Before(s.cacheExpiresAt) {
		return s.totals, s.categories, s.topItems, nil
	}

	read := func(tab string) ([][]interface{}, error) {
		v, err := s.values.ReadRange(ctx, tab+"!"+tabRange)
		if err != nil {
			return nil, fmt.Errorf("read %s tab: %w", tab, err)
		}
		return v, nil
	}
	if totals, err = read(tabMonthlyTotal); err != nil {
		return nil, nil, nil, err
	}
	if categories, err = read(tabMonthlyByCategory); err != nil {
		return nil, nil, nil, err
	}
	if top, err = read(tabTopItems); err != nil {
		return nil, nil, nil, err
	}

	s.totals, s.categories, s.topItems = totals, categories, top
	s.cacheExpiresAt = s.now().Add(s.cacheValidDuration)
	s.logger.DebugContext(ctx, "Report tabs refreshed",
		log.FieldOperation, log.OpRead,
		"months", max(len(totals)-1, 0))
	return totals, categories, top, nil
}
