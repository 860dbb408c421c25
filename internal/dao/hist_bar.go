package dao

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	mg "github.com/grand-thief-cash/valuetrack/application/components/mysqlgorm"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/model"
)

type HistBarDao interface {
	core.Component

	// ReplaceForCode swaps out the stock's whole bar set in one transaction.
	// History is full-replace by contract: old adjusted bars go stale when the
	// upstream re-adjusts past prices.
	ReplaceForCode(ctx context.Context, code string, bars []*model.HistBar) error
	CountForCode(ctx context.Context, code string) (int64, error)
	// ListRecent returns the most recent n bars in ascending date order.
	ListRecent(ctx context.Context, code string, n int) ([]*model.HistBar, error)
	ListRange(ctx context.Context, code, startDate, endDate string, limit, offset int) ([]*model.HistBar, error)
}

type histBarDaoImpl struct {
	*core.BaseComponent
	GormComp *mg.GormComponent `infra:"dep:mysql_gorm"`
	db       *gorm.DB
	dsName   string
}

func NewHistBarDao(dsName string) HistBarDao {
	return &histBarDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_HIST_BAR, consts.COMPONENT_LOGGING),
		dsName:        dsName,
	}
}

func (d *histBarDaoImpl) Start(ctx context.Context) error {
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

func (d *histBarDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func (d *histBarDaoImpl) ReplaceForCode(ctx context.Context, code string, bars []*model.HistBar) error {
	code = normalizeCode(code)
	for _, b := range bars {
		b.Code = code
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM stock_hist_daily WHERE code=?", code).Error; err != nil {
			return err
		}
		if len(bars) == 0 {
			return nil
		}
		return tx.CreateInBatches(bars, 1000).Error
	})
}

func (d *histBarDaoImpl) CountForCode(ctx context.Context, code string) (int64, error) {
	var cnt int64
	err := d.db.WithContext(ctx).Model(&model.HistBar{}).
		Where("code=?", normalizeCode(code)).
		Count(&cnt).Error
	return cnt, err
}

func (d *histBarDaoImpl) ListRecent(ctx context.Context, code string, n int) ([]*model.HistBar, error) {
	var bars []*model.HistBar
	q := d.db.WithContext(ctx).Model(&model.HistBar{}).
		Where("code=?", normalizeCode(code)).
		Order("date DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Find(&bars).Error; err != nil {
		return nil, err
	}
	// query is newest-first; callers want chronological order
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func (d *histBarDaoImpl) ListRange(ctx context.Context, code, startDate, endDate string, limit, offset int) ([]*model.HistBar, error) {
	var bars []*model.HistBar
	q := d.db.WithContext(ctx).Model(&model.HistBar{}).
		Where("code = ? AND date >= ? AND date <= ?", normalizeCode(code), startDate, endDate).
		Order("date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&bars).Error; err != nil {
		return nil, err
	}
	return bars, nil
}
