package core

// Bucket is an amount aggregated under one key (category or merchant).
type Bucket struct {
	Key    string  `json:"key"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// ResultSummary holds the statistics computed over one candidate set.
// TotalQty and TotalVolume are nil when no item carried the measure.
type ResultSummary struct {
	MatchedCount    int                `json:"matched_count"`
	TotalAmount     float64            `json:"total_amount"`
	TotalQty        *float64           `json:"total_qty,omitempty"`
	TotalVolume     *float64           `json:"total_liters_est,omitempty"`
	VolumeBreakdown map[string]float64 `json:"liters_breakdown,omitempty"`
	ByCategory      []Bucket           `json:"by_category"`
	ByMerchant      []Bucket           `json:"by_merchant"`
}

// ReportItem is one row of the precomputed top-items table.
type ReportItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Qty      float64 `json:"qty"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
}

// MonthlyReport is the precomputed aggregate for one year-month.
type MonthlyReport struct {
	Month      string       `json:"month"`
	Total      float64      `json:"total"`
	ItemCount  int          `json:"item_count"`
	ByCategory []Bucket     `json:"by_category"`
	TopItems   []ReportItem `json:"top_items"`
}
