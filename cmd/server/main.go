//go:build !stdio

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dashweaver/service/internal/api"
	"github.com/dashweaver/service/internal/config"
	"github.com/dashweaver/service/internal/utils"
)

func main() {
	log.Println("启动 Dash-Weaver 看板生成服务 (HTTP模式)...")

	// HTTP模式：日志直接输出到标准输出，便于容器环境查看
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 初始化TraceID系统
	utils.InitTraceIDSystem()

	// 加载配置
	cfg := config.Load()
	log.Printf("配置加载完成: %s", cfg.String())

	// 组装流水线 - 全部依赖在组合根显式构造
	orchestrator, factory, queryLog, providers := buildPipeline(cfg)
	defer factory.Close()
	if queryLog != nil {
		defer queryLog.Close()
	}

	// 设置Gin模式
	if cfg.GinMode == "debug" || cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建Gin路由器
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(utils.TraceIDMiddleware())

	// 配置CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", "X-Trace-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// 注册路由
	handler := api.NewHandler(orchestrator, cfg.ServiceName, providers)
	handler.RegisterRoutes(router)

	// 创建HTTP服务器 - 超时放宽以容纳慢速LLM调用
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  5 * time.Minute,
	}

	// 优雅关闭处理
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("正在关闭服务器...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("服务器关闭时出错: %v", err)
		}
		log.Println("服务器已关闭")
	}()

	log.Printf("Dash-Weaver 服务启动在 %s", addr)
	log.Printf("健康检查: http://localhost%s/health", addr)
	log.Printf("生成端点: http://localhost%s/api/dashboard/generate", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP服务器启动失败: %v", err)
	}
}
