package model

// WatchEntry is one tracked stock. Priority entries (held positions,
// past high scorers) are analyzed before the rest of the batch.
type WatchEntry struct {
	Code     string `gorm:"primaryKey;type:char(6)" json:"code"`
	Name     string `gorm:"type:varchar(64);not null;default:''" json:"name"`
	Priority bool   `gorm:"not null;default:0" json:"priority"`
	Note     string `gorm:"type:varchar(255);not null;default:''" json:"note"`
}

func (WatchEntry) TableName() string { return "stock_watchlist" }
