package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 个人记忆存储HTTP客户端
// 只消费外部记忆服务的查询契约，不触碰其持久化/向量化/淘汰机制
// =============================================================================

// Client 记忆存储客户端 - 每进程构造一次，只持有配置，跨请求只读复用
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient 创建记忆存储客户端
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

// searchRequest 相似度检索请求
type searchRequest struct {
	CallerID      string  `json:"caller_id"`
	Query         string  `json:"query"`
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
}

// recentRequest 最近记忆请求
type recentRequest struct {
	CallerID string `json:"caller_id"`
	Limit    int    `json:"limit"`
}

// chunksResponse 记忆服务的统一响应
type chunksResponse struct {
	Chunks []struct {
		Text     string  `json:"text"`
		SourceID string  `json:"source_id"`
		Score    float64 `json:"score"`
	} `json:"chunks"`
}

// Search 在调用者的私有分区做相似度检索
func (c *Client) Search(ctx context.Context, callerID, query string, topK int, minSimilarity float64) ([]models.ContextChunk, error) {
	req := &searchRequest{
		CallerID:      callerID,
		Query:         query,
		TopK:          topK,
		MinSimilarity: minSimilarity,
	}

	startTime := time.Now()
	chunks, err := c.post(ctx, "/api/memory/search", req)
	if err != nil {
		return nil, err
	}

	log.Printf("🧠 [记忆存储] 检索返回%d个片段 (耗时%v)", len(chunks), time.Since(startTime))
	return chunks, nil
}

// Recent 取调用者最近的记忆片段
func (c *Client) Recent(ctx context.Context, callerID string, limit int) ([]models.ContextChunk, error) {
	req := &recentRequest{
		CallerID: callerID,
		Limit:    limit,
	}

	return c.post(ctx, "/api/memory/recent", req)
}

// post 发送JSON请求并解析片段响应
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]models.ContextChunk, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memory store HTTP %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp chunksResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	chunks := make([]models.ContextChunk, 0, len(resp.Chunks))
	for _, chunk := range resp.Chunks {
		chunks = append(chunks, models.ContextChunk{
			Text:     chunk.Text,
			SourceID: chunk.SourceID,
			Score:    chunk.Score,
		})
	}

	return chunks, nil
}
