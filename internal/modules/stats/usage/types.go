package usage

import "time"

// Entry is one usage record waiting to be written. Optional fields stay nil
// when the discovery did not produce them.
type Entry struct {
	UserID          string
	SourceURL       string
	ProductCategory *string
	CompetitorBrand *string
	CompetitorURL   *string
}

// usageQuery holds optional filters for the admin usage queries.
type usageQuery struct {
	StartAt  *time.Time `form:"start_at" time_format:"2006-01-02"`
	EndAt    *time.Time `form:"end_at"   time_format:"2006-01-02"`
	From     *time.Time `form:"from"     time_format:"2006-01-02"`
	To       *time.Time `form:"to"       time_format:"2006-01-02"`
	UserID   string     `form:"user_id"`
	Category string     `form:"category"`
	Brand    string     `form:"brand"`
}

// totalStat aggregates the all-time discovery count and distinct-user count.
type totalStat struct {
	Discoveries int64 `json:"discoveries"`
	Users       int64 `json:"users"`
}

// labelCount is a single aggregation row returned by GROUP BY queries.
type labelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}
