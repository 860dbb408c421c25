package dao

import (
	"context"
	"fmt"
	"strings"

	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"gorm.io/gorm"

	mg "github.com/grand-thief-cash/valuetrack/application/components/mysqlgorm"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/model"
)

type MarketQuoteDao interface {
	// Embed component so registry builders can return it where core.Component is required.
	core.Component

	// ReplaceForDate deletes the date's snapshot and inserts rows inside one
	// transaction. Quotes are never merged: a partial snapshot would corrupt
	// downstream percentile/score calculations.
	ReplaceForDate(ctx context.Context, date string, rows []*model.MarketQuote, chunkSize int) (int64, error)
	CountForDate(ctx context.Context, date string) (int64, error)
	// GetLatest returns the most recent snapshot row for one code.
	GetLatest(ctx context.Context, code string) (*model.MarketQuote, error)
	ListFiltered(ctx context.Context, f *model.MarketQuoteFilters, limit, offset int) ([]*model.MarketQuote, error)
	CountFiltered(ctx context.Context, f *model.MarketQuoteFilters) (int64, error)
}

type marketQuoteDaoImpl struct {
	*core.BaseComponent
	GormComp *mg.GormComponent `infra:"dep:mysql_gorm"`
	db       *gorm.DB
	dsName   string
}

func NewMarketQuoteDao(dsName string) MarketQuoteDao {
	return &marketQuoteDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_MARKET_QUOTE, consts.COMPONENT_LOGGING),
		dsName:        dsName,
	}
}

func (d *marketQuoteDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	db, err := d.GormComp.GetDB(d.dsName)
	if err != nil {
		return fmt.Errorf("get gorm db %s failed: %w", d.dsName, err)
	}
	d.db = db
	return nil
}

func (d *marketQuoteDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func normalizeCode(s string) string {
	return strings.TrimSpace(s)
}

func (d *marketQuoteDaoImpl) ReplaceForDate(ctx context.Context, date string, rows []*model.MarketQuote, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	for _, q := range rows {
		q.Code = normalizeCode(q.Code)
		q.Date = date
	}

	var affected int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM daily_market_quote WHERE date=?", date).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		res := tx.CreateInBatches(rows, chunkSize)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		logging.Error(ctx, fmt.Sprintf("MarketQuoteDao ReplaceForDate %s: %v", date, err))
		return 0, err
	}
	return affected, nil
}

func (d *marketQuoteDaoImpl) CountForDate(ctx context.Context, date string) (int64, error) {
	var cnt int64
	err := d.db.WithContext(ctx).Model(&model.MarketQuote{}).Where("date=?", date).Count(&cnt).Error
	return cnt, err
}

func (d *marketQuoteDaoImpl) GetLatest(ctx context.Context, code string) (*model.MarketQuote, error) {
	code = normalizeCode(code)
	var q model.MarketQuote
	err := d.db.WithContext(ctx).
		Where("code=?", code).
		Order("date DESC").
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (d *marketQuoteDaoImpl) ListFiltered(ctx context.Context, f *model.MarketQuoteFilters, limit, offset int) ([]*model.MarketQuote, error) {
	var list []*model.MarketQuote
	q := d.db.WithContext(ctx).Model(&model.MarketQuote{}).Order("code ASC")
	q = applyQuoteFilters(q, f)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (d *marketQuoteDaoImpl) CountFiltered(ctx context.Context, f *model.MarketQuoteFilters) (int64, error) {
	q := d.db.WithContext(ctx).Model(&model.MarketQuote{})
	q = applyQuoteFilters(q, f)
	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// applyQuoteFilters applies common list/count filters:
// - date exact match (defaults to nothing; callers usually pass today)
// - code exact match or codes IN
// - name LIKE match
func applyQuoteFilters(q *gorm.DB, f *model.MarketQuoteFilters) *gorm.DB {
	if f == nil {
		return q
	}
	if strings.TrimSpace(f.Date) != "" {
		q = q.Where("date=?", strings.TrimSpace(f.Date))
	}
	if strings.TrimSpace(f.Name) != "" {
		q = q.Where("name LIKE ?", "%"+strings.TrimSpace(f.Name)+"%")
	}
	if len(f.Codes) > 0 {
		q = q.Where("code IN ?", f.Codes)
	} else if strings.TrimSpace(f.Code) != "" {
		q = q.Where("code=?", normalizeCode(f.Code))
	}
	return q
}
