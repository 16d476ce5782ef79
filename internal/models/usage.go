package models

// UsageLogModel records one competitor discovery per user. Rows are written
// asynchronously after a successful discovery and never block request
// handling; analysis-only calls are not logged.
type UsageLogModel struct {
	Base
	UserID          string  `json:"user_id"          gorm:"type:char(36);index"`
	SourceURL       string  `json:"source_url"       gorm:"type:varchar(2048)"`
	ProductCategory *string `json:"product_category" gorm:"type:varchar(191);index"`
	CompetitorBrand *string `json:"competitor_brand" gorm:"type:varchar(191);index"`
	CompetitorURL   *string `json:"competitor_url"   gorm:"type:varchar(2048)"`
}

func (UsageLogModel) TableName() string { return "usage_logs" }
