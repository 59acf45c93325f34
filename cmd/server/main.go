package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/yearpace/internal/config"
	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/router"
)

func main() {
	cfg := config.Load()

	// 初始化数据库
	if err := db.Init(cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	gin.SetMode(cfg.GinMode)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(db.DB, cfg.SessionSecret, cfg.Location)
	log.Printf("[server] listening on %s (timezone %s)", cfg.ListenAddr, cfg.Location)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
