package config

import (
	"net"
	"strconv"
)

// HTTPConfig конфигурация служебного HTTP сервера: метрики и пробы.
type HTTPConfig struct {
	Enabled     bool   `yaml:"enabled" env:"USERS_HTTP_ENABLED" env-default:"true"`
	Host        string `yaml:"host" env:"USERS_HTTP_HOST" env-default:"0.0.0.0"`
	Port        int    `yaml:"port" env:"USERS_HTTP_PORT" env-default:"8081"`
	MetricsPath string `yaml:"metrics_path" env:"USERS_HTTP_METRICS_PATH" env-default:"/metrics"`
}

// GetAddress возвращает адрес для HTTP сервера.
func (h *HTTPConfig) GetAddress() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}
