package model

// HistBar is one daily OHLC K-line bar (forward adjusted).
// A stock's bars are always replaced as a whole set, never merged.
type HistBar struct {
	Date      string  `gorm:"primaryKey;type:date" json:"date"`
	Code      string  `gorm:"primaryKey;type:char(6)" json:"code"`
	Open      float64 `gorm:"type:decimal(20,3)" json:"open"`
	High      float64 `gorm:"type:decimal(20,3)" json:"high"`
	Low       float64 `gorm:"type:decimal(20,3)" json:"low"`
	Close     float64 `gorm:"type:decimal(20,3)" json:"close"`
	Volume    int64   `json:"volume"`
	Amount    float64 `gorm:"type:decimal(24,2)" json:"amount"`
	ChangePct float64 `gorm:"column:change_pct;type:decimal(20,3)" json:"changePct"`
	Turnover  float64 `gorm:"type:decimal(20,3)" json:"turnover"`
}

func (HistBar) TableName() string { return "stock_hist_daily" }
