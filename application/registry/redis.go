package registry

import (
	"github.com/grand-thief-cash/valuetrack/application/components/redis"
	"github.com/grand-thief-cash/valuetrack/application/config"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
)

func init() {
	Register(consts.COMPONENT_REDIS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.Redis == nil || !cfg.Redis.Enabled {
			return false, nil, nil
		}
		factory := redis.NewFactory()
		comp, err := factory.Create(cfg.Redis)
		if err != nil {
			return true, nil, err
		}
		return true, comp, nil
	})
}
