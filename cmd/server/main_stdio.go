//go:build stdio

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dashweaver/service/internal/config"
	"github.com/dashweaver/service/internal/models"
	"github.com/dashweaver/service/internal/pipeline"
)

func main() {
	// stdio模式下stdout是协议通道，日志必须走stderr
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("启动 Dash-Weaver 看板生成服务 (stdio模式)...")

	cfg := config.Load()
	log.Printf("配置加载完成: %s", cfg.String())

	orchestrator, factory, queryLog, _ := buildPipeline(cfg)
	defer factory.Close()
	if queryLog != nil {
		defer queryLog.Close()
	}

	s := server.NewMCPServer(
		cfg.ServiceName,
		"1.0.0",
		server.WithLogging(),
	)

	registerTools(s, orchestrator)

	log.Println("MCP stdio服务器就绪，等待客户端连接...")
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("stdio服务器运行失败: %v", err)
	}
}

// registerTools 注册MCP工具
func registerTools(s *server.MCPServer, orchestrator *pipeline.Orchestrator) {
	generateTool := mcp.NewTool("generate_dashboard",
		mcp.WithDescription("Generate a validated dashboard document from a free-text query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("自由文本查询"),
		),
		mcp.WithString("callerId",
			mcp.Description("调用者身份，缺省为anonymous"),
		),
		mcp.WithBoolean("useMemory",
			mcp.Description("是否启用个人记忆检索"),
		),
	)
	s.AddTool(generateTool, generateDashboardHandler(orchestrator))

	typesTool := mcp.NewTool("list_dashboard_types",
		mcp.WithDescription("List the renderable dashboard output types"),
	)
	s.AddTool(typesTool, listTypesHandler(orchestrator))
}

// generateDashboardHandler 处理看板生成请求
func generateDashboardHandler(orchestrator *pipeline.Orchestrator) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		// 验证参数
		query, ok := request.Params.Arguments["query"].(string)
		if !ok || query == "" {
			errMsg := "错误: query必须是非空字符串"
			log.Println(errMsg)
			return mcp.NewToolResultText(errMsg), nil
		}

		callerID, _ := request.Params.Arguments["callerId"].(string)
		useMemory, _ := request.Params.Arguments["useMemory"].(bool)

		log.Printf("生成看板: query=%s, callerId=%s, useMemory=%v", query, callerID, useMemory)

		document, err := orchestrator.Process(ctx, &models.GenerateDashboardRequest{
			Query:     query,
			CallerID:  callerID,
			UseMemory: useMemory,
		})
		if err != nil {
			errMsg := fmt.Sprintf("看板生成失败: %v", err)
			log.Println(errMsg)
			return mcp.NewToolResultText(errMsg), nil
		}

		payload, err := json.Marshal(document)
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("文档序列化失败: %v", err)), nil
		}

		log.Printf("看板生成成功: 类型=%s (耗时%v)", document.Type, time.Since(startTime))
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// listTypesHandler 返回可渲染类型白名单
func listTypesHandler(orchestrator *pipeline.Orchestrator) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		registry := orchestrator.Registry()

		types := make([]string, 0)
		for _, t := range registry.Types() {
			if registry.IsRenderable(t) {
				types = append(types, string(t))
			}
		}

		payload, err := json.Marshal(models.TypesResponse{Types: types})
		if err != nil {
			return mcp.NewToolResultText(fmt.Sprintf("类型列表序列化失败: %v", err)), nil
		}

		return mcp.NewToolResultText(string(payload)), nil
	}
}
