package model

// AnalysisResult holds one stock's scored output for one analysis date.
// Reruns upsert on the (code, date) key rather than duplicating rows.
type AnalysisResult struct {
	Code         string   `gorm:"primaryKey;type:char(6)" json:"code"`
	Date         string   `gorm:"primaryKey;type:date" json:"date"`
	Name         string   `gorm:"type:varchar(64);not null;default:''" json:"name"`
	LatestPrice  float64  `gorm:"column:latest_price;type:decimal(20,3)" json:"latestPrice"`
	PEDynamic    *float64 `gorm:"column:pe_dynamic;type:decimal(20,3)" json:"peDynamic"`
	PB           *float64 `gorm:"column:pb;type:decimal(20,3)" json:"pb"`
	Volatility   float64  `gorm:"type:decimal(20,3)" json:"volatility"`
	Volatility60 float64  `gorm:"column:volatility_60;type:decimal(20,3)" json:"volatility60"`
	DivYield     float64  `gorm:"column:div_yield;type:decimal(20,3)" json:"divYield"`
	ROE          float64  `gorm:"column:roe;type:decimal(20,3)" json:"roe"`
	Growth       float64  `gorm:"type:decimal(20,3)" json:"growth"`

	VolScore   int    `gorm:"column:vol_score" json:"volScore"`
	DivScore   int    `gorm:"column:div_score" json:"divScore"`
	GrowScore  int    `gorm:"column:grow_score" json:"growScore"`
	ValScore   int    `gorm:"column:val_score" json:"valScore"`
	TotalScore int    `gorm:"column:total_score" json:"totalScore"`
	Tier       string `gorm:"type:varchar(16);not null;default:''" json:"tier"`
}

func (AnalysisResult) TableName() string { return "stock_analysis_result" }
