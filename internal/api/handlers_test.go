package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dashweaver/service/internal/llm"
	"github.com/dashweaver/service/internal/models"
	"github.com/dashweaver/service/internal/pipeline"
)

// stubLLM 固定响应的生成后端
type stubLLM struct {
	content string
	err     error
}

func (s *stubLLM) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.GenerateResult{Content: s.content, Provider: "stub", Model: "stub-model"}, nil
}

func (s *stubLLM) HealthCheck(ctx context.Context) error { return s.err }
func (s *stubLLM) GetProvider() llm.LLMProvider           { return "stub" }
func (s *stubLLM) GetModel() string                       { return "stub-model" }
func (s *stubLLM) Close() error                           { return nil }

// newTestRouter 用给定的分类/汇总stub组装一个完整HTTP栈
func newTestRouter(classifier, summarizer llm.LLMClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry := pipeline.NewDefaultTypeRegistry()

	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewClassifier(classifier, registry),
		pipeline.NewRetriever(nil, nil, pipeline.RetrieverOptions{TopK: 5, SimilarityThreshold: 0.3, BranchTimeout: time.Second}),
		pipeline.NewAggregator([]pipeline.SourceBackend{
			{Kind: models.SourceBroadKnowledge, Client: summarizer, Priority: 0},
		}, time.Second),
		pipeline.NewSummarizer(summarizer, 0),
		pipeline.NewValidator(registry),
		registry,
		nil,
		true,
	)

	router := gin.New()
	handler := NewHandler(orchestrator, "dash-weaver-test", []string{"stub"})
	handler.RegisterRoutes(router)
	return router
}

func postGenerate(router *gin.Engine, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/dashboard/generate", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateDashboardEndpoint(t *testing.T) {
	t.Run("成功返回文档", func(t *testing.T) {
		router := newTestRouter(
			&stubLLM{content: `{"output_type":"table","complexity":"simple","confidence":0.9}`},
			&stubLLM{content: `{"type":"table","title":"Results","data":[{"label":"row 1"}]}`},
		)

		w := postGenerate(router, `{"query":"show results"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("期望200, 实际%d: %s", w.Code, w.Body.String())
		}

		var document models.DashboardDocument
		if err := json.Unmarshal(w.Body.Bytes(), &document); err != nil {
			t.Fatalf("响应解析失败: %v", err)
		}
		if document.Type != models.OutputTypeTable {
			t.Errorf("期望table, 实际: %s", document.Type)
		}
		t.Logf("✅ 成功路径正常")
	})

	t.Run("缺少query返回400", func(t *testing.T) {
		router := newTestRouter(&stubLLM{}, &stubLLM{})

		w := postGenerate(router, `{"useMemory":true}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("期望400, 实际%d", w.Code)
		}
		t.Logf("✅ 请求校验正常")
	})

	t.Run("上游失败返回502", func(t *testing.T) {
		router := newTestRouter(
			&stubLLM{err: errors.New("backend down")},
			&stubLLM{},
		)

		w := postGenerate(router, `{"query":"anything"}`)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("期望502, 实际%d: %s", w.Code, w.Body.String())
		}

		var resp models.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("错误响应解析失败: %v", err)
		}
		if resp.Error != "upstream_error" {
			t.Errorf("错误码错误: %s", resp.Error)
		}
		t.Logf("✅ 上游错误映射正常")
	})

	t.Run("未配置后端返回500", func(t *testing.T) {
		router := newTestRouter(nil, &stubLLM{})

		w := postGenerate(router, `{"query":"anything"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("期望500, 实际%d: %s", w.Code, w.Body.String())
		}
		t.Logf("✅ 配置错误映射正常")
	})

	t.Run("不可修正文档返回422", func(t *testing.T) {
		router := newTestRouter(
			&stubLLM{content: `{"output_type":"pie_chart","complexity":"simple","confidence":0.9}`},
			&stubLLM{content: `{"type":"pie_chart","title":"Broken","data":[{"label":"A"}]}`},
		)

		w := postGenerate(router, `{"query":"broken"}`)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("期望422, 实际%d: %s", w.Code, w.Body.String())
		}

		var resp models.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("错误响应解析失败: %v", err)
		}
		if resp.Error != "validation_failed" || len(resp.Errors) == 0 {
			t.Errorf("校验拒绝载荷错误: %+v", resp)
		}
		t.Logf("✅ 校验拒绝映射正常")
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&stubLLM{}, &stubLLM{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望200, 实际%d", w.Code)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "dash-weaver-test" {
		t.Errorf("健康响应错误: %+v", resp)
	}
	t.Logf("✅ 健康检查正常")
}

func TestTypesEndpoint(t *testing.T) {
	router := newTestRouter(&stubLLM{}, &stubLLM{})

	req := httptest.NewRequest("GET", "/api/dashboard/types", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望200, 实际%d", w.Code)
	}

	var resp models.TypesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if len(resp.Types) != 8 {
		t.Errorf("期望8个可渲染类型, 实际%d: %v", len(resp.Types), resp.Types)
	}
	t.Logf("✅ 类型列表正常")
}
