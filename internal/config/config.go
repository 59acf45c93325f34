package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabaseURL   string
	SessionSecret string
	GinMode       string
	Location      *time.Location
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 工作目录下存在 .env 时先加载它，已设置的环境变量不会被覆盖。
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] failed to load .env: %v", err)
	}

	port := getEnv("PORT", "8080")

	listenAddr := getEnv("LISTEN_ADDR", "")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	// DATABASE_URL 优先，兼容仅配置 SQLite 路径的 DATABASE_PATH
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		databaseURL = getEnv("DATABASE_PATH", "yearpace.db")
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabaseURL:   databaseURL,
		SessionSecret: getEnv("SESSION_SECRET", "yearpace-dev-secret"),
		GinMode:       getEnv("GIN_MODE", "release"),
		Location:      loadLocation(getEnv("TIMEZONE", "Local")),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[config] unknown TIMEZONE %q, falling back to local time: %v", name, err)
		return time.Local
	}
	return loc
}
