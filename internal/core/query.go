package core

// DateRange is an inclusive ISO date window; both ends are always set.
type DateRange struct {
	From string
	To   string
}

// Contains reports whether the ISO date d lies inside the window.
// Dates compare lexically.
func (r DateRange) Contains(d string) bool {
	return d >= r.From && d <= r.To
}

// QuerySpec is the structured reading of one question. The zero value means
// nothing was recognised.
type QuerySpec struct {
	Category string
	Dates    *DateRange
	Term     string
	// Month holds the explicit year-month token ("2025-12") when present.
	Month string

	Count    bool
	Quantity bool
	Volume   bool
	Report   bool
}

// AsksMeasure reports whether the question asks how many times, how many
// units, or how much volume.
func (q QuerySpec) AsksMeasure() bool {
	return q.Count || q.Quantity || q.Volume
}

func (q QuerySpec) HasFilters() bool {
	return q.Category != "" || q.Dates != nil
}

// ItemFilter narrows a ledger read. Empty fields do not filter.
type ItemFilter struct {
	IDs      []string
	Category string
	DateFrom string
	DateTo   string
}

// FilterFromSpec builds the category/date part of a ledger filter.
func FilterFromSpec(q QuerySpec) ItemFilter {
	f := ItemFilter{Category: q.Category}
	if q.Dates != nil {
		f.DateFrom = q.Dates.From
		f.DateTo = q.Dates.To
	}
	return f
}

// Match applies the category and date parts of the filter to one item.
// An item without a date never passes a date bound.
func (f ItemFilter) Match(item LedgerItem) bool {
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.DateFrom != "" || f.DateTo != "" {
		if item.Date == nil {
			return false
		}
		d := *item.Date
		if f.DateFrom != "" && d < f.DateFrom {
			return false
		}
		if f.DateTo != "" && d > f.DateTo {
			return false
		}
	}
	return true
}
