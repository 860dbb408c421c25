package registry_ext

import (
	"github.com/grand-thief-cash/valuetrack/application/config"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/application/registry"
	"github.com/grand-thief-cash/valuetrack/internal/dao"
)

// datasource name comes from config.yaml -> mysql_gorm.data_sources
const dsSecurity = "security"

func init() {
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, dao.NewMarketQuoteDao(dsSecurity), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, dao.NewHistBarDao(dsSecurity), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, dao.NewDividendDao(dsSecurity), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, dao.NewAnalysisResultDao(dsSecurity), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, dao.NewWatchlistDao(dsSecurity), nil
	})
}
