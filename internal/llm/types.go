package llm

import (
	"context"
	"time"

	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 核心类型定义
// =============================================================================

// LLMProvider LLM提供商类型
type LLMProvider string

const (
	ProviderOpenAI     LLMProvider = "openai"
	ProviderGemini     LLMProvider = "gemini"
	ProviderPerplexity LLMProvider = "perplexity"
)

// GenerateRequest 统一的生成请求结构
type GenerateRequest struct {
	Prompt       string  `json:"prompt"`
	Instructions string  `json:"instructions,omitempty"` // 系统指令
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	Format       string  `json:"format,omitempty"` // "json", "text"
	Model        string  `json:"model,omitempty"`
}

// GenerateResult 统一的生成响应结构
type GenerateResult struct {
	Content    string            `json:"content"`
	Citations  []models.Citation `json:"citations,omitempty"` // 检索型后端附带引用
	TokensUsed int               `json:"tokens_used"`
	Model      string            `json:"model"`
	Provider   LLMProvider       `json:"provider"`
	Duration   time.Duration     `json:"duration"`
}

// LLMConfig LLM配置
type LLMConfig struct {
	Provider  LLMProvider   `json:"provider"`
	APIKey    string        `json:"api_key"`
	BaseURL   string        `json:"base_url"`
	Model     string        `json:"model"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit int           `json:"rate_limit"` // requests per minute
}

// LLMError LLM错误类型
type LLMError struct {
	Provider  LLMProvider `json:"provider"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

func (e *LLMError) Error() string {
	return e.Message
}

// LLMClient 生成后端的统一接口 - 每个提供商一个实现，签名一致
type LLMClient interface {
	// 单次生成 - 每次请求至多调用一次，不在客户端内部重试
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 获取提供商信息
	GetProvider() LLMProvider

	// 获取模型名称
	GetModel() string

	// 关闭客户端
	Close() error
}
