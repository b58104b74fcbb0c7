package config

import (
	"os"
	"strconv"
)

type Config struct {
	AppPort           string
	DBDSN             string
	RedisAddr         string
	RedisPassword     string
	JWTSecret         string
	AccessExpiresMin  int
	RefreshExpiresMin int
	FrontendBaseURL   string
}

func Load() Config {
	access, _ := strconv.Atoi(get("JWT_ACCESS_EXPIRES_MIN", "30"))
	refresh, _ := strconv.Atoi(get("JWT_REFRESH_EXPIRES_MIN", "10080"))
	return Config{
		AppPort:           get("APP_PORT", "8080"),
		DBDSN:             must("DB_DSN"),
		RedisAddr:         get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     get("REDIS_PASSWORD", ""),
		JWTSecret:         must("JWT_SECRET"),
		AccessExpiresMin:  access,
		RefreshExpiresMin: refresh,
		FrontendBaseURL:   get("FRONTEND_BASE_URL", "http://localhost:3000"),
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
