package model

// DividendEvent records one cash/stock distribution per (code, ex-date).
//
// Plan stays free-text (e.g. "10派5.2") because the upstream format
// varies; it is pattern-matched into a per-share amount at scoring
// time, never pre-normalized into a numeric column.
type DividendEvent struct {
	Code   string `gorm:"primaryKey;type:char(6)" json:"code"`
	ExDate string `gorm:"primaryKey;column:ex_date;type:date" json:"exDate"`
	Plan   string `gorm:"type:varchar(128);not null;default:''" json:"plan"`
	Source string `gorm:"type:varchar(16);not null;default:''" json:"source"`
}

func (DividendEvent) TableName() string { return "dividend_event" }
