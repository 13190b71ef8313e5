package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DateLayout is the ISO calendar layout used for every stored date.
	DateLayout = "2006-01-02"
	// MonthLayout is the year-month label used by reports and budgets.
	MonthLayout = "2006-01"

	DefaultCategory = "diger"
	UnknownMerchant = "UNKNOWN"
	DefaultCurrency = "TRY"
)

type (
	// LedgerItem is one purchased line joined with the receipt fields
	// (date, merchant, source) the question path needs.
	LedgerItem struct {
		ID         string
		ReceiptID  string
		NameRaw    string
		NameNorm   string
		Qty        *float64
		Unit       *string
		Amount     *float64
		Category   string
		LineNo     int
		Date       *string
		Merchant   *string
		SourcePath string
	}

	Receipt struct {
		ID          string
		SourcePath  string
		Merchant    *string
		Date        *string
		Currency    string
		TotalAmount *float64
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty item name")
	ErrEmptySourcePath = errors.New("empty source path")
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// CategoryOrDefault returns the category tag, or the default bucket when missing.
func (i LedgerItem) CategoryOrDefault() string {
	if c := strings.TrimSpace(i.Category); c != "" {
		return c
	}
	return DefaultCategory
}

// MerchantOrUnknown returns the merchant, or the unknown bucket when missing.
func (i LedgerItem) MerchantOrUnknown() string {
	if i.Merchant != nil && strings.TrimSpace(*i.Merchant) != "" {
		return *i.Merchant
	}
	return UnknownMerchant
}

func (i LedgerItem) DateOrEmpty() string {
	if i.Date == nil {
		return ""
	}
	return *i.Date
}

func (i LedgerItem) Validate() error {
	if strings.TrimSpace(i.NameRaw) == "" {
		return ErrEmptyName
	}
	if i.Amount != nil && *i.Amount < 0 {
		return ErrInvalidAmount
	}
	if i.Date != nil {
		if _, err := ParseDate(*i.Date); err != nil {
			return err
		}
	}
	return nil
}

func (r Receipt) Validate() error {
	if strings.TrimSpace(r.SourcePath) == "" {
		return ErrEmptySourcePath
	}
	if r.TotalAmount != nil && *r.TotalAmount < 0 {
		return ErrInvalidAmount
	}
	if r.Date != nil {
		if _, err := ParseDate(*r.Date); err != nil {
			return err
		}
	}
	return nil
}

// ParseDate parses an ISO calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthBounds returns the first and last ISO day of the given year-month.
func MonthBounds(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return FormatDate(first), FormatDate(last)
}

// ParseMonth validates a "YYYY-MM" label.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidMonth
	}
	return t, nil
}
