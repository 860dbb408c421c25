package registry

import (
	"github.com/grand-thief-cash/valuetrack/application/components/http_client"
	"github.com/grand-thief-cash/valuetrack/application/config"
	"github.com/grand-thief-cash/valuetrack/application/consts"
	"github.com/grand-thief-cash/valuetrack/application/core"
)

func init() {
	Register(consts.COMPONENT_HTTP_CLIENTS, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.HTTPClients == nil || !cfg.HTTPClients.Enabled {
			return false, nil, nil
		}
		factory := http_client.NewFactory()
		comp, err := factory.Create(cfg.HTTPClients)
		if err != nil {
			return true, nil, err
		}
		return true, comp, nil
	})
}
