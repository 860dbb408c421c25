package model

// MarketQuote is one stock's snapshot row for one trading date.
//
// Table schema constraints (see migrations/0001_init.sql):
// - primary key (date, code); a snapshot is replaced wholesale per date
// - pe_dynamic/pb are nullable: upstream reports sentinel garbage for
//   loss-making stocks, normalized to NULL instead of 0
//
// NOTE: keep field names and tags consistent with migrations.
type MarketQuote struct {
	Date         string   `gorm:"primaryKey;type:date" json:"date"`
	Code         string   `gorm:"primaryKey;type:char(6);not null" json:"code"`
	Name         string   `gorm:"type:varchar(64);not null;default:''" json:"name"`
	LatestPrice  float64  `gorm:"column:latest_price;type:decimal(20,3)" json:"latestPrice"`
	ChangePct    float64  `gorm:"column:change_pct;type:decimal(20,3)" json:"changePct"`
	ChangeAmt    float64  `gorm:"column:change_amt;type:decimal(20,3)" json:"changeAmt"`
	Open         float64  `gorm:"type:decimal(20,3)" json:"open"`
	High         float64  `gorm:"type:decimal(20,3)" json:"high"`
	Low          float64  `gorm:"type:decimal(20,3)" json:"low"`
	PrevClose    float64  `gorm:"column:prev_close;type:decimal(20,3)" json:"prevClose"`
	TurnoverRate float64  `gorm:"column:turnover_rate;type:decimal(20,3)" json:"turnoverRate"`
	PEDynamic    *float64 `gorm:"column:pe_dynamic;type:decimal(20,3)" json:"peDynamic"`
	PB           *float64 `gorm:"column:pb;type:decimal(20,3)" json:"pb"`
	TotalMktCap  float64  `gorm:"column:total_mkt_cap;type:decimal(24,2)" json:"totalMktCap"`
	CircMktCap   float64  `gorm:"column:circ_mkt_cap;type:decimal(24,2)" json:"circMktCap"`
	Volume       int64    `json:"volume"`
	Amount       float64  `gorm:"type:decimal(24,2)" json:"amount"`
	Provider     string   `gorm:"type:varchar(16);not null;default:''" json:"provider"`
}

func (MarketQuote) TableName() string { return "daily_market_quote" }

// MarketQuoteFilters provides optional list query conditions.
type MarketQuoteFilters struct {
	Date  string
	Code  string
	Codes []string
	Name  string
}
