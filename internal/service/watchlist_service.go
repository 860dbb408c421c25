package service

import (
	"context"

	"github.com/grand-thief-cash/valuetrack/application/core"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/dao"
	"github.com/grand-thief-cash/valuetrack/internal/model"
)

// WatchlistService is a thin layer delegating to WatchlistDao.
type WatchlistService struct {
	*core.BaseComponent
	Dao dao.WatchlistDao `infra:"dep:dao_watchlist"`
}

func NewWatchlistService() *WatchlistService {
	return &WatchlistService{BaseComponent: core.NewBaseComponent(bizConsts.COMP_SVC_WATCHLIST)}
}

func (s *WatchlistService) Start(ctx context.Context) error { return s.BaseComponent.Start(ctx) }
func (s *WatchlistService) Stop(ctx context.Context) error  { return s.BaseComponent.Stop(ctx) }

func (s *WatchlistService) Upsert(ctx context.Context, e *model.WatchEntry) error {
	return s.Dao.Upsert(ctx, e)
}

func (s *WatchlistService) Remove(ctx context.Context, code string) (int64, error) {
	return s.Dao.Remove(ctx, code)
}

func (s *WatchlistService) List(ctx context.Context) ([]*model.WatchEntry, error) {
	return s.Dao.List(ctx)
}
