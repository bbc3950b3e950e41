package models

// ItemStats aggregates quantity and revenue for a single item name.
type ItemStats struct {
	Quantity int   `json:"qty"`
	Revenue  int64 `json:"rev"`
}

// CategoryStats aggregates a category's totals and the per-item breakdown
// within it. Orders whose snapshot carries no category slug land under the
// "uncategorized" bucket.
type CategoryStats struct {
	Name     string                `json:"name"`
	Quantity int                   `json:"qty"`
	Revenue  int64                 `json:"rev"`
	Items    map[string]*ItemStats `json:"items"`
}

// PeriodStats is the rollup for one reporting window (today / this month).
type PeriodStats struct {
	Revenue    int64                     `json:"revenue"`
	OrderCount int                       `json:"orders"`
	Categories map[string]*CategoryStats `json:"categories"`
}

// DashboardStats is the reporting endpoint payload.
type DashboardStats struct {
	StoreName  string      `json:"store_name"`
	Today      PeriodStats `json:"today"`
	Monthly    PeriodStats `json:"monthly"`
	UpdateTime string      `json:"update_time"`
}

// ResetDailyResult summarizes one end-of-day reset run.
type ResetDailyResult struct {
	CancelledOrders int `json:"cancelled_orders"`
	ArchivedOrders  int `json:"archived_orders"`
	ReleasedUnits   int `json:"released_units"`
}
