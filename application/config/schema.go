// config/schema.go
package config

import (
	"github.com/grand-thief-cash/valuetrack/application/components/http_client"
	"github.com/grand-thief-cash/valuetrack/application/components/http_server"
	"github.com/grand-thief-cash/valuetrack/application/components/logging"
	"github.com/grand-thief-cash/valuetrack/application/components/mysqlgorm"
	"github.com/grand-thief-cash/valuetrack/application/components/postgresgorm"
	"github.com/grand-thief-cash/valuetrack/application/components/prometheus"
	"github.com/grand-thief-cash/valuetrack/application/components/redis"
	"github.com/grand-thief-cash/valuetrack/application/components/telemetry"
)

// AppConfig 应用程序配置结构
type AppConfig struct {
	APPInfo      *APPInfo                       `yaml:"app_info" json:"app_info"`
	Logging      *logging.LoggingConfig         `yaml:"logging" json:"logging"`
	HTTPServer   *http_server.HTTPServerConfig  `yaml:"http_server" json:"http_server"`
	HTTPClients  *http_client.HTTPClientsConfig `yaml:"http_clients" json:"http_clients"`
	MySQLGORM    *mysqlgorm.Config              `yaml:"mysql_gorm" json:"mysql_gorm"`
	PostgresGORM *postgresgorm.Config           `yaml:"postgres_gorm" json:"postgres_gorm"`
	Redis        *redis.Config                  `yaml:"redis" json:"redis"`
	Prometheus   *prometheus.Config             `yaml:"prometheus" json:"prometheus"`
	Telemetry    *telemetry.Config              `yaml:"telemetry" json:"telemetry"`

	// BizConfig: 业务自定义配置子树, 由业务方通过 SetBizConfig 提供指针二次解码
	BizConfig any `yaml:"biz_config" json:"biz_config"`
}

type APPInfo struct {
	APPName string `yaml:"app_name" json:"app_name"`
	ENV     string `yaml:"env" json:"env"`
}
