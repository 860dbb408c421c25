package registry_ext

import (
	"github.com/grand-thief-cash/valuetrack/application/config"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/application/registry"
	bizConfig "github.com/grand-thief-cash/valuetrack/internal/config"
	"github.com/grand-thief-cash/valuetrack/internal/scheduler"
	"github.com/grand-thief-cash/valuetrack/internal/service"
	"github.com/grand-thief-cash/valuetrack/internal/source"
)

func init() {
	biz := bizConfig.GetBizConfig()

	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, source.NewSessionManager(biz.Source), nil
	})

	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, service.NewMarketSyncService(biz), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, service.NewHistorySyncService(biz), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, service.NewFinancialService(biz), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, service.NewAnalysisService(biz), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, service.NewWatchlistService(), nil
	})

	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return biz.Scheduler.Enabled, scheduler.NewEngine(biz.Scheduler), nil
	})
}
