package dao

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	mg "github.com/grand-thief-cash/valuetrack/application/components/mysqlgorm"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/model"
)

type WatchlistDao interface {
	core.Component

	Upsert(ctx context.Context, e *model.WatchEntry) error
	Remove(ctx context.Context, code string) (int64, error)
	List(ctx context.Context) ([]*model.WatchEntry, error)
	// CodesByPriority returns priority codes first, then the rest, each set
	// sorted by code. The batch analyzer feeds them to workers in this order.
	CodesByPriority(ctx context.Context) (priority []string, rest []string, err error)
}

type watchlistDaoImpl struct {
	*core.BaseComponent
	GormComp *mg.GormComponent `infra:"dep:mysql_gorm"`
	db       *gorm.DB
	dsName   string
}

func NewWatchlistDao(dsName string) WatchlistDao {
	return &watchlistDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_WATCHLIST, consts.COMPONENT_LOGGING),
		dsName:        dsName,
	}
}

func (d *watchlistDaoImpl) Start(ctx context.Context) error {
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

func (d *watchlistDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func (d *watchlistDaoImpl) Upsert(ctx context.Context, e *model.WatchEntry) error {
	e.Code = normalizeCode(e.Code)
	if strings.TrimSpace(e.Code) == "" {
		return fmt.Errorf("watch entry requires code")
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.Assignments(map[string]any{
				"name":     gorm.Expr("VALUES(name)"),
				"priority": gorm.Expr("VALUES(priority)"),
				"note":     gorm.Expr("VALUES(note)"),
			}),
		}).
		Create(e).Error
}

func (d *watchlistDaoImpl) Remove(ctx context.Context, code string) (int64, error) {
	res := d.db.WithContext(ctx).Exec("DELETE FROM stock_watchlist WHERE code=?", normalizeCode(code))
	return res.RowsAffected, res.Error
}

func (d *watchlistDaoImpl) List(ctx context.Context) ([]*model.WatchEntry, error) {
	var list []*model.WatchEntry
	err := d.db.WithContext(ctx).Model(&model.WatchEntry{}).
		Order("priority DESC, code ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (d *watchlistDaoImpl) CodesByPriority(ctx context.Context) ([]string, []string, error) {
	list, err := d.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	var priority, rest []string
	for _, e := range list {
		if e.Priority {
			priority = append(priority, e.Code)
		} else {
			rest = append(rest, e.Code)
		}
	}
	return priority, rest, nil
}
