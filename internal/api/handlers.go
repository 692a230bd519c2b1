package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dashweaver/service/internal/models"
	"github.com/dashweaver/service/internal/pipeline"
)

// =============================================================================
// 🌐 HTTP API处理器
// 错误映射: ConfigurationError→500, UpstreamServiceError→502, ValidationError→422
// =============================================================================

// Handler HTTP处理器
type Handler struct {
	orchestrator *pipeline.Orchestrator
	serviceName  string
	providers    []string // 已配置的生成后端，用于健康检查展示
	startTime    time.Time
}

// NewHandler 创建HTTP处理器
func NewHandler(orchestrator *pipeline.Orchestrator, serviceName string, providers []string) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		serviceName:  serviceName,
		providers:    providers,
		startTime:    time.Now(),
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/dashboard/generate", h.GenerateDashboard)
		apiGroup.GET("/dashboard/types", h.ListTypes)
	}
}

// GenerateDashboard 看板生成端点
// 调用方永远拿到合法文档或结构化错误，绝不会收到残缺文档
func (h *Handler) GenerateDashboard(c *gin.Context) {
	var req models.GenerateDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Details: err.Error(),
		})
		return
	}

	document, err := h.orchestrator.Process(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, document)
}

// writeError 把类型化流水线错误映射为HTTP响应
func (h *Handler) writeError(c *gin.Context, err error) {
	var configErr *pipeline.ConfigurationError
	var upstreamErr *pipeline.UpstreamServiceError
	var validationErr *pipeline.ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:  "validation_failed",
			Errors: validationErr.Errors,
		})
	case errors.As(err, &configErr):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "configuration_error",
			Details: configErr.Message,
		})
	case errors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "upstream_error",
			Details: upstreamErr.Error(),
		})
	default:
		log.Printf("❌ 【API】未分类错误: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Details: err.Error(),
		})
	}
}

// Health 健康检查端点
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Service:   h.serviceName,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Providers: h.providers,
	})
}

// ListTypes 可渲染类型列表端点 - 供外部前端自省白名单
func (h *Handler) ListTypes(c *gin.Context) {
	registered := h.orchestrator.Registry().Types()

	types := make([]string, 0, len(registered))
	for _, t := range registered {
		if h.orchestrator.Registry().IsRenderable(t) {
			types = append(types, string(t))
		}
	}

	c.JSON(http.StatusOK, models.TypesResponse{Types: types})
}
