package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// Perplexity客户端实现 - research_current通道，响应自带检索引用
// =============================================================================

// PerplexityClient Perplexity适配器（OpenAI兼容的chat接口 + citations扩展）
type PerplexityClient struct {
	*BaseAdapter
	apiKey  string
	baseURL string
	model   string
}

// PerplexityRequest Perplexity请求格式
type PerplexityRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// PerplexityResponse Perplexity响应格式
type PerplexityResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	// 引用来源 - 两种形态：带标题的检索结果，或纯URL列表
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"search_results"`
	Citations []string `json:"citations"`
	Usage     struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// PerplexityErrorResponse Perplexity错误响应
type PerplexityErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewPerplexityClient 创建Perplexity客户端
func NewPerplexityClient(config *LLMConfig) (LLMClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Perplexity API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}

	model := config.Model
	if model == "" {
		model = "sonar"
	}

	return &PerplexityClient{
		BaseAdapter: NewBaseAdapter(ProviderPerplexity, config),
		apiKey:      config.APIKey,
		baseURL:     baseURL,
		model:       model,
	}, nil
}

// Generate 单次生成
func (pc *PerplexityClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	startTime := time.Now()

	// 1. 检查限流
	if err := pc.CheckRateLimit(ctx); err != nil {
		return nil, err
	}

	// 2. 检查熔断器
	if err := pc.CheckCircuitBreaker(); err != nil {
		return nil, err
	}

	// 3. 转换请求格式
	pplxReq := pc.convertToPerplexityFormat(req)

	// 4. 发送请求
	resp, err := pc.sendRequest(ctx, pplxReq)
	if err != nil {
		pc.RecordFailure()
		return nil, err
	}

	// 5. 转换响应格式
	pc.RecordSuccess()
	return pc.convertFromPerplexityFormat(resp, time.Since(startTime)), nil
}

// HealthCheck 健康检查
func (pc *PerplexityClient) HealthCheck(ctx context.Context) error {
	req := &GenerateRequest{
		Prompt:      "Hello",
		MaxTokens:   1,
		Temperature: 0,
	}

	_, err := pc.Generate(ctx, req)
	return err
}

// GetModel 获取模型名称
func (pc *PerplexityClient) GetModel() string {
	return pc.model
}

// convertToPerplexityFormat 转换为Perplexity格式
func (pc *PerplexityClient) convertToPerplexityFormat(req *GenerateRequest) *PerplexityRequest {
	messages := []OpenAIMessage{}

	if req.Instructions != "" {
		messages = append(messages, OpenAIMessage{
			Role:    "system",
			Content: req.Instructions,
		})
	}

	messages = append(messages, OpenAIMessage{
		Role:    "user",
		Content: req.Prompt,
	})

	model := req.Model
	if model == "" {
		model = pc.model
	}

	return &PerplexityRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// convertFromPerplexityFormat 转换Perplexity响应格式
func (pc *PerplexityClient) convertFromPerplexityFormat(resp *PerplexityResponse, duration time.Duration) *GenerateResult {
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	// 优先使用带标题的search_results，退化到纯URL的citations
	var citations []models.Citation
	if len(resp.SearchResults) > 0 {
		for _, sr := range resp.SearchResults {
			if sr.URL == "" {
				continue
			}
			title := sr.Title
			if title == "" {
				title = titleFromURL(sr.URL)
			}
			citations = append(citations, models.Citation{Title: title, URL: sr.URL})
		}
	} else {
		for _, u := range resp.Citations {
			if u == "" {
				continue
			}
			citations = append(citations, models.Citation{Title: titleFromURL(u), URL: u})
		}
	}

	return &GenerateResult{
		Content:    content,
		Citations:  citations,
		TokensUsed: resp.Usage.TotalTokens,
		Model:      resp.Model,
		Provider:   ProviderPerplexity,
		Duration:   duration,
	}
}

// titleFromURL 引用缺少标题时用主机名兜底
func titleFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	return parsed.Host
}

// sendRequest 发送HTTP请求
func (pc *PerplexityClient) sendRequest(ctx context.Context, req *PerplexityRequest) (*PerplexityResponse, error) {
	// 序列化请求
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	// 创建HTTP请求
	httpReq, err := http.NewRequestWithContext(ctx, "POST", pc.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	// 设置请求头
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+pc.apiKey)

	// 发送请求
	httpResp, err := pc.httpClient.Do(httpReq)
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
		var errorResp PerplexityErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, &LLMError{
				Provider:  ProviderPerplexity,
				Code:      errorResp.Error.Type,
				Message:   errorResp.Error.Message,
				Retryable: httpResp.StatusCode >= 500,
			}
		}
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(respBody))
	}

	// 解析响应
	var resp PerplexityResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	return &resp, nil
}
