package dao

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	mg "github.com/grand-thief-cash/valuetrack/application/components/mysqlgorm"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/model"
)

type DividendDao interface {
	core.Component

	// BatchUpsert inserts events; on an existing (code, ex_date) key it
	// refreshes plan/source instead of duplicating.
	BatchUpsert(ctx context.Context, events []*model.DividendEvent, chunkSize int) (int64, error)
	// ListSince returns a code's events with ex_date >= sinceDate, oldest first.
	ListSince(ctx context.Context, code, sinceDate string) ([]*model.DividendEvent, error)
	DeleteForCode(ctx context.Context, code string) (int64, error)
}

type dividendDaoImpl struct {
	*core.BaseComponent
	GormComp *mg.GormComponent `infra:"dep:mysql_gorm"`
	db       *gorm.DB
	dsName   string
}

func NewDividendDao(dsName string) DividendDao {
	return &dividendDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_DIVIDEND, consts.COMPONENT_LOGGING),
		dsName:        dsName,
	}
}

func (d *dividendDaoImpl) Start(ctx context.Context) error {
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

func (d *dividendDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func (d *dividendDaoImpl) BatchUpsert(ctx context.Context, events []*model.DividendEvent, chunkSize int) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = 200
	}
	for _, e := range events {
		e.Code = normalizeCode(e.Code)
	}

	var affected int64
	for i := 0; i < len(events); i += chunkSize {
		end := i + chunkSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[i:end]
		res := d.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "code"}, {Name: "ex_date"}},
				DoUpdates: clause.Assignments(map[string]any{
					"plan":   gorm.Expr("VALUES(plan)"),
					"source": gorm.Expr("VALUES(source)"),
				}),
			}).
			Create(&batch)
		if res.Error != nil {
			return affected, res.Error
		}
		affected += res.RowsAffected
	}
	return affected, nil
}

func (d *dividendDaoImpl) ListSince(ctx context.Context, code, sinceDate string) ([]*model.DividendEvent, error) {
	var list []*model.DividendEvent
	err := d.db.WithContext(ctx).Model(&model.DividendEvent{}).
		Where("code = ? AND ex_date >= ?", normalizeCode(code), sinceDate).
		Order("ex_date ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (d *dividendDaoImpl) DeleteForCode(ctx context.Context, code string) (int64, error) {
	res := d.db.WithContext(ctx).Exec("DELETE FROM dividend_event WHERE code=?", normalizeCode(code))
	return res.RowsAffected, res.Error
}
