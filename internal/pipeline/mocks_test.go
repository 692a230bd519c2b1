package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dashweaver/service/internal/llm"
	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 测试用手工Mock - 生成后端、记忆存储、查询日志
// =============================================================================

// mockLLMClient 可编程的生成后端Mock
type mockLLMClient struct {
	provider llm.LLMProvider
	model    string

	// response固定返回值；respond优先，可按请求动态生成
	response *llm.GenerateResult
	respond  func(req *llm.GenerateRequest) (*llm.GenerateResult, error)
	err      error
	delay    time.Duration // 模拟慢后端，期间尊重ctx取消

	mu    sync.Mutex
	calls []*llm.GenerateRequest
}

func newMockLLMClient(content string) *mockLLMClient {
	return &mockLLMClient{
		provider: "mock",
		model:    "mock-model",
		response: &llm.GenerateResult{Content: content, Provider: "mock", Model: "mock-model"},
	}
}

func (m *mockLLMClient) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.respond != nil {
		return m.respond(req)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockLLMClient) HealthCheck(ctx context.Context) error { return m.err }
func (m *mockLLMClient) GetProvider() llm.LLMProvider          { return m.provider }
func (m *mockLLMClient) GetModel() string                      { return m.model }
func (m *mockLLMClient) Close() error                          { return nil }

func (m *mockLLMClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockMemoryStore 可编程的记忆存储Mock
type mockMemoryStore struct {
	chunks []models.ContextChunk
	err    error

	mu          sync.Mutex
	searchCalls int
}

func (m *mockMemoryStore) Search(ctx context.Context, callerID, query string, topK int, minSimilarity float64) ([]models.ContextChunk, error) {
	m.mu.Lock()
	m.searchCalls++
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.chunks, nil
}

func (m *mockMemoryStore) Recent(ctx context.Context, callerID string, limit int) ([]models.ContextChunk, error) {
	return m.chunks, m.err
}

func (m *mockMemoryStore) searchCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls
}

// mockQueryLog 记录审计调用的Mock
type mockQueryLog struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (m *mockQueryLog) Log(record models.AuditRecord) {
	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
}

func (m *mockQueryLog) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var errMockUpstream = errors.New("mock upstream unavailable")

// float64Ptr 测试辅助
func float64Ptr(v float64) *float64 { return &v }
