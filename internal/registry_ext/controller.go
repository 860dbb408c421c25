package registry_ext

import (
	"github.com/grand-thief-cash/valuetrack/application/config"
	appconsts "github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
	"github.com/grand-thief-cash/valuetrack/application/registry"
	bizConsts "github.com/grand-thief-cash/valuetrack/internal/consts"
	"github.com/grand-thief-cash/valuetrack/internal/controller"
)

func init() {
	// Ensure http_server starts after the controllers it routes to.
	registry.ExtendRuntimeDependencies(appconsts.COMPONENT_HTTP_SERVER,
		bizConsts.COMP_CTRL_MARKET, bizConsts.COMP_CTRL_ANALYSIS, bizConsts.COMP_CTRL_WATCHLIST)

	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, controller.NewMarketController(), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, controller.NewAnalysisController(), nil
	})
	registry.RegisterAuto(func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		return true, controller.NewWatchlistController(), nil
	})
}
