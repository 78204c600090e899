package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        string
	DatabaseURL     string
	RedisConn       string
	DarajaBaseURL   string
	CallbackBaseURL string
	LogLevel        string
	RecentWindow    time.Duration
	GatewayTimeout  time.Duration
}

func LoadConfig() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_CONN", "")
	v.SetDefault("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke")
	v.SetDefault("CALLBACK_BASE_URL", "https://sautipesa-bridge.onrender.com")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("RECENT_WINDOW_SECONDS", 60)
	v.SetDefault("GATEWAY_TIMEOUT_SECONDS", 5)

	return Config{
		HTTPPort:        v.GetString("HTTP_PORT"),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		RedisConn:       v.GetString("REDIS_CONN"),
		DarajaBaseURL:   v.GetString("DARAJA_BASE_URL"),
		CallbackBaseURL: v.GetString("CALLBACK_BASE_URL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		RecentWindow:    time.Duration(v.GetInt("RECENT_WINDOW_SECONDS")) * time.Second,
		GatewayTimeout:  time.Duration(v.GetInt("GATEWAY_TIMEOUT_SECONDS")) * time.Second,
	}
}
