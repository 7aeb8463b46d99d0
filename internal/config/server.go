package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	NATSURL  string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://127.0.0.1:6379"`

	MCPEnabled bool `env:"MCP_ENABLED" envDefault:"false"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
