package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Gateway struct {
		Env          string `yaml:"env"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"gateway"`
	Orders struct {
		FeePercent    int64  `yaml:"fee_percent"`
		TTLMinutes    int    `yaml:"ttl_minutes"`
		Currency      string `yaml:"currency"`
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"orders"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Gateway.Env != "sandbox" && cfg.Gateway.Env != "live" {
		return nil, fmt.Errorf("gateway.env must be sandbox or live, got %q", cfg.Gateway.Env)
	}
	if cfg.Gateway.ClientID == "" || cfg.Gateway.ClientSecret == "" {
		return nil, errors.New("gateway credentials are required")
	}
	if cfg.Orders.FeePercent < 0 || cfg.Orders.FeePercent > 100 {
		return nil, fmt.Errorf("orders.fee_percent must be between 0 and 100, got %d", cfg.Orders.FeePercent)
	}
	if cfg.Orders.PublicBaseURL == "" {
		return nil, errors.New("orders.public_base_url is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Env == "" {
		cfg.Gateway.Env = "sandbox"
	}
	if cfg.Orders.TTLMinutes <= 0 {
		cfg.Orders.TTLMinutes = 30
	}
	if cfg.Orders.Currency == "" {
		cfg.Orders.Currency = "USD"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("GATEWAY_ENV"); v != "" {
		cfg.Gateway.Env = v
	}
	if v := os.Getenv("GATEWAY_CLIENT_ID"); v != "" {
		cfg.Gateway.ClientID = v
	}
	if v := os.Getenv("GATEWAY_CLIENT_SECRET"); v != "" {
		cfg.Gateway.ClientSecret = v
	}
	if v := os.Getenv("ORDER_FEE_PERCENT"); v != "" {
		cfg.Orders.FeePercent = atoi64Or(cfg.Orders.FeePercent, v)
	}
	if v := os.Getenv("ORDER_TTL_MINUTES"); v != "" {
		cfg.Orders.TTLMinutes = atoiOr(cfg.Orders.TTLMinutes, v)
	}
	if v := os.Getenv("ORDER_CURRENCY"); v != "" {
		cfg.Orders.Currency = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Orders.PublicBaseURL = v
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
