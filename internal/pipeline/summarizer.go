package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dashweaver/service/internal/llm"
	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 📝 汇总器 - {查询, 分类意图, 合并上下文} → 看板文档草稿
// 单点调用：失败即请求失败，组件内不做JSON畸形重试
// =============================================================================

// MaxTitleRunes 标题长度上限，超出部分在校验前硬截断
const MaxTitleRunes = 120

// Summarizer 结构化汇总器
type Summarizer struct {
	client    llm.LLMClient
	maxTokens int
}

// NewSummarizer 创建汇总器
func NewSummarizer(client llm.LLMClient, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 4000
	}

	return &Summarizer{
		client:    client,
		maxTokens: maxTokens,
	}
}

const summarizerInstructions = `You are a dashboard document generator.
Fold the provided context into ONE dashboard document. Respond with ONLY a JSON object, no prose:
{
  "type": "<the requested output type>",
  "title": "short descriptive title",
  "data": [{"label": "...", "category": "...", "value": 123.4}],
  "config": {"responsive": true, "x_axis_label": "...", "y_axis_label": "..."},
  "sublinks": [{"label": "...", "route": "/..."}],
  "summary": "one-paragraph summary",
  "citations": [{"title": "...", "url": "https://..."}]
}
Rules:
- Every data point in pie/bar charts needs a non-empty "label" and a numeric "value".
- Provide between 1 and 100 data points.
- Sublink routes must start with "/".
- Omit optional fields you cannot fill; never invent citations.`

// Summarize 单次结构化生成，产出未经校验的文档草稿
func (s *Summarizer) Summarize(ctx context.Context, query *models.Query, classification *models.ClassificationResult, compositeContext string, retrieval *models.RetrievalContext) (*models.DashboardDocument, error) {
	if s.client == nil {
		return nil, &ConfigurationError{
			Component: "summarizer",
			Message:   "未配置汇总器使用的生成后端",
		}
	}

	startTime := time.Now()
	log.Printf("📝 【汇总器】开始生成文档: 类型=%s 复杂度=%s", classification.OutputType, classification.Complexity)

	result, err := s.client.Generate(ctx, &llm.GenerateRequest{
		Prompt:       s.buildPrompt(query, classification, compositeContext, retrieval),
		Instructions: summarizerInstructions,
		MaxTokens:    s.tokenBudget(classification.Complexity),
		Temperature:  0.2,
		Format:       "json",
	})
	if err != nil {
		return nil, &UpstreamServiceError{
			Source:  "summarizer",
			Message: "汇总后端调用失败",
			Err:     err,
		}
	}

	draft, err := s.parseDraft(result.Content)
	if err != nil {
		return nil, &UpstreamServiceError{
			Source:  "summarizer",
			Message: "汇总响应解析失败",
			Err:     err,
		}
	}

	// 标题超长是已记录的宽容策略：截断带省略号，而不是直接拒绝
	draft.Title = TruncateTitle(draft.Title)

	log.Printf("✅ 【汇总器】草稿生成完成: 标题=%q 数据点=%d (耗时%v)",
		truncateForLog(draft.Title, 40), len(draft.Data), time.Since(startTime))

	return draft, nil
}

// tokenBudget 按复杂度调节输出预算 - 复杂度只影响预算，不改变控制流
func (s *Summarizer) tokenBudget(complexity models.Complexity) int {
	if complexity == models.ComplexitySimple {
		return s.maxTokens / 2
	}
	return s.maxTokens
}

// buildPrompt 组装汇总提示词
func (s *Summarizer) buildPrompt(query *models.Query, classification *models.ClassificationResult, compositeContext string, retrieval *models.RetrievalContext) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("User query: %s\n", query.Text))
	sb.WriteString(fmt.Sprintf("Requested output type: %s\n", classification.OutputType))
	sb.WriteString(fmt.Sprintf("Complexity: %s\n\n", classification.Complexity))

	if !retrieval.IsEmpty() {
		sb.WriteString("# Retrieved context\n")
		for _, chunk := range retrieval.Chunks {
			sb.WriteString(fmt.Sprintf("- [%s, score %.2f] %s\n", chunk.SourceID, chunk.Score, chunk.Text))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("# Merged source content\n")
	sb.WriteString(compositeContext)

	return sb.String()
}

// parseDraft 防御性解析草稿文档
func (s *Summarizer) parseDraft(content string) (*models.DashboardDocument, error) {
	jsonStr, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	var draft models.DashboardDocument
	if err := json.Unmarshal([]byte(jsonStr), &draft); err != nil {
		return nil, fmt.Errorf("文档JSON解析失败: %w", err)
	}

	return &draft, nil
}

// TruncateTitle 标题超出上限时截断并追加省略号，未超限原样返回
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleRunes {
		return title
	}
	return string(runes[:MaxTitleRunes-1]) + "…"
}
