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

type AnalysisResultDao interface {
	core.Component

	// Upsert writes one scored result; a rerun for the same (code, date)
	// overwrites rather than duplicating.
	Upsert(ctx context.Context, r *model.AnalysisResult) error
	Get(ctx context.Context, code, date string) (*model.AnalysisResult, error)
	// LatestList returns results for the most recent analysis date ordered by
	// total score descending.
	LatestList(ctx context.Context, limit, offset int) ([]*model.AnalysisResult, error)
	LatestDate(ctx context.Context) (string, error)
}

type analysisResultDaoImpl struct {
	*core.BaseComponent
	GormComp *mg.GormComponent `infra:"dep:mysql_gorm"`
	db       *gorm.DB
	dsName   string
}

func NewAnalysisResultDao(dsName string) AnalysisResultDao {
	return &analysisResultDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_ANALYSIS, consts.COMPONENT_LOGGING),
		dsName:        dsName,
	}
}

func (d *analysisResultDaoImpl) Start(ctx context.Context) error {
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

func (d *analysisResultDaoImpl) Stop(ctx context.Context) error {
	return d.BaseComponent.Stop(ctx)
}

func (d *analysisResultDaoImpl) Upsert(ctx context.Context, r *model.AnalysisResult) error {
	r.Code = normalizeCode(r.Code)
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}, {Name: "date"}},
			UpdateAll: true,
		}).
		Create(r).Error
}

func (d *analysisResultDaoImpl) Get(ctx context.Context, code, date string) (*model.AnalysisResult, error) {
	var r model.AnalysisResult
	err := d.db.WithContext(ctx).
		Where("code = ? AND date = ?", normalizeCode(code), date).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *analysisResultDaoImpl) LatestDate(ctx context.Context) (string, error) {
	var date string
	err := d.db.WithContext(ctx).Model(&model.AnalysisResult{}).
		Select("MAX(date)").
		Scan(&date).Error
	return date, err
}

func (d *analysisResultDaoImpl) LatestList(ctx context.Context, limit, offset int) ([]*model.AnalysisResult, error) {
	date, err := d.LatestDate(ctx)
	if err != nil {
		return nil, err
	}
	if date == "" {
		return []*model.AnalysisResult{}, nil
	}
	var list []*model.AnalysisResult
	q := d.db.WithContext(ctx).Model(&model.AnalysisResult{}).
		Where("date=?", date).
		Order("total_score DESC, code ASC")
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
