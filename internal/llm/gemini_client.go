package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// Gemini客户端实现 - auxiliary通道
// =============================================================================

// GeminiClient Gemini适配器
type GeminiClient struct {
	*BaseAdapter
	apiKey  string
	baseURL string
	model   string
}

// GeminiRequest Gemini请求格式
type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiContent Gemini消息格式
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart 消息片段
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiGenerationConfig 生成参数
type GeminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"` // "application/json"
}

// GeminiResponse Gemini响应格式
type GeminiResponse struct {
	Candidates []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// GeminiErrorResponse Gemini错误响应
type GeminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient 创建Gemini客户端
func NewGeminiClient(config *LLMConfig) (LLMClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := config.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	return &GeminiClient{
		BaseAdapter: NewBaseAdapter(ProviderGemini, config),
		apiKey:      config.APIKey,
		baseURL:     baseURL,
		model:       model,
	}, nil
}

// Generate 单次生成
func (gc *GeminiClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	startTime := time.Now()

	// 1. 检查限流
	if err := gc.CheckRateLimit(ctx); err != nil {
		return nil, err
	}

	// 2. 检查熔断器
	if err := gc.CheckCircuitBreaker(); err != nil {
		return nil, err
	}

	// 3. 转换请求格式
	geminiReq := gc.convertToGeminiFormat(req)

	// 4. 发送请求
	model := req.Model
	if model == "" {
		model = gc.model
	}
	resp, err := gc.sendRequest(ctx, model, geminiReq)
	if err != nil {
		gc.RecordFailure()
		return nil, err
	}

	// 5. 转换响应格式
	gc.RecordSuccess()
	return gc.convertFromGeminiFormat(resp, time.Since(startTime)), nil
}

// HealthCheck 健康检查
func (gc *GeminiClient) HealthCheck(ctx context.Context) error {
	req := &GenerateRequest{
		Prompt:      "Hello",
		MaxTokens:   1,
		Temperature: 0,
	}

	_, err := gc.Generate(ctx, req)
	return err
}

// GetModel 获取模型名称
func (gc *GeminiClient) GetModel() string {
	return gc.model
}

// convertToGeminiFormat 转换为Gemini格式
func (gc *GeminiClient) convertToGeminiFormat(req *GenerateRequest) *GeminiRequest {
	geminiReq := &GeminiRequest{
		Contents: []GeminiContent{
			{
				Role:  "user",
				Parts: []GeminiPart{{Text: req.Prompt}},
			},
		},
		GenerationConfig: &GeminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}

	// Gemini使用单独的systemInstruction字段
	if req.Instructions != "" {
		geminiReq.SystemInstruction = &GeminiContent{
			Parts: []GeminiPart{{Text: req.Instructions}},
		}
	}

	if req.Format == "json" {
		geminiReq.GenerationConfig.ResponseMimeType = "application/json"
	}

	return geminiReq
}

// convertFromGeminiFormat 转换Gemini响应格式
func (gc *GeminiClient) convertFromGeminiFormat(resp *GeminiResponse, duration time.Duration) *GenerateResult {
	content := ""
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		content = resp.Candidates[0].Content.Parts[0].Text
	}

	model := resp.ModelVersion
	if model == "" {
		model = gc.model
	}

	return &GenerateResult{
		Content:    content,
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
		Model:      model,
		Provider:   ProviderGemini,
		Duration:   duration,
	}
}

// sendRequest 发送HTTP请求
func (gc *GeminiClient) sendRequest(ctx context.Context, model string, req *GeminiRequest) (*GeminiResponse, error) {
	// 序列化请求
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	// 创建HTTP请求
	url := fmt.Sprintf("%s/models/%s:generateContent", gc.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	// 设置请求头
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", gc.apiKey)

	// 发送请求
	httpResp, err := gc.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer httpResp.Body.Close()

	// 读取响应
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	// 检查HTTP状态码
	if httpResp.StatusCode != http.StatusOK {
		var errorResp GeminiErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, &LLMError{
				Provider:  ProviderGemini,
				Code:      errorResp.Error.Status,
				Message:   errorResp.Error.Message,
				Retryable: httpResp.StatusCode >= 500,
			}
		}
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(respBody))
	}

	// 解析响应
	var resp GeminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	return &resp, nil
}
