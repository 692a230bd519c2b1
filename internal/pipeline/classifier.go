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
// 🎯 分类器 - 查询文本 → 结构化意图对象
// 每次查询只发起一次后端调用，输出供下游只读消费
// =============================================================================

// Classifier 查询分类器
type Classifier struct {
	client   llm.LLMClient
	registry *TypeRegistry
}

// NewClassifier 创建分类器
func NewClassifier(client llm.LLMClient, registry *TypeRegistry) *Classifier {
	return &Classifier{
		client:   client,
		registry: registry,
	}
}

const classifierInstructions = `You are a query classifier for a dashboard generation service.
Analyze the user query and respond with ONLY a JSON object, no prose, in this exact shape:
{
  "output_type": "pie_chart|bar_chart|line_chart|table|timeline|gauge|metric_card|dashboard",
  "complexity": "simple|multi_chart|dashboard",
  "needs_personal_context": true|false,
  "needs_external_context": true|false,
  "needs_image": true|false,
  "confidence": 0.0-1.0
}
Rules:
- "needs_personal_context" is true when the query refers to the user's own data (my spending, my tasks, what did I...).
- "needs_external_context" is true when the query needs current/live information from the web.
- Pick the single most suitable visualization for the query.`

// Classify 对查询做一次意图分类
// 后端即使被指示只输出JSON也可能附带说明文字，解析采用防御性提取；
// 解析失败视为上游服务错误，不做客户端内重试
func (c *Classifier) Classify(ctx context.Context, query *models.Query) (*models.ClassificationResult, error) {
	if c.client == nil {
		return nil, &ConfigurationError{
			Component: "classifier",
			Message:   "未配置分类器使用的生成后端",
		}
	}

	startTime := time.Now()
	log.Printf("🎯 【分类器】开始分析查询: %s", truncateForLog(query.Text, 60))

	result, err := c.client.Generate(ctx, &llm.GenerateRequest{
		Prompt:       fmt.Sprintf("Classify this query: %s", query.Text),
		Instructions: classifierInstructions,
		MaxTokens:    300,
		Temperature:  0.1,
		Format:       "json",
	})
	if err != nil {
		return nil, &UpstreamServiceError{
			Source:  "classifier",
			Message: "分类后端调用失败",
			Err:     err,
		}
	}

	classification, err := c.parseResponse(result.Content)
	if err != nil {
		return nil, &UpstreamServiceError{
			Source:  "classifier",
			Message: "分类响应解析失败",
			Err:     err,
		}
	}

	classification.Provider = string(result.Provider)
	classification.Model = result.Model
	c.normalize(classification, query)

	log.Printf("✅ 【分类器】完成: 类型=%s 复杂度=%s 个人上下文=%v 外部检索=%v 置信度=%.2f (耗时%v)",
		classification.OutputType, classification.Complexity,
		classification.NeedsPersonalContext, classification.NeedsExternalContext,
		classification.Confidence, time.Since(startTime))

	return classification, nil
}

// parseResponse 防御性解析后端响应
func (c *Classifier) parseResponse(content string) (*models.ClassificationResult, error) {
	jsonStr, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	var result models.ClassificationResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("JSON解析失败: %w", err)
	}

	return &result, nil
}

// normalize 清洗分类结果 - 越界字段回退到保守默认值
func (c *Classifier) normalize(result *models.ClassificationResult, query *models.Query) {
	if _, ok := c.registry.Rule(result.OutputType); !ok {
		log.Printf("⚠️ 【分类器】未知输出类型 %q，回退到启发式推断", result.OutputType)
		result.OutputType = c.guessOutputType(query.Text)
	}

	switch result.Complexity {
	case models.ComplexitySimple, models.ComplexityMultiChart, models.ComplexityDashboard:
	default:
		result.Complexity = models.ComplexitySimple
	}

	if result.Confidence < 0 || result.Confidence > 1 {
		result.Confidence = 0.5
	}
}

// guessOutputType 关键词启发式兜底 - 仅在后端给出未知类型时使用
func (c *Classifier) guessOutputType(text string) models.OutputType {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "trend") || strings.Contains(lower, "over time") ||
		strings.Contains(lower, "趋势"):
		return models.OutputTypeLineChart
	case strings.Contains(lower, "proportion") || strings.Contains(lower, "breakdown") ||
		strings.Contains(lower, "占比") || strings.Contains(lower, "分布"):
		return models.OutputTypePieChart
	case strings.Contains(lower, "compare") || strings.Contains(lower, "对比"):
		return models.OutputTypeBarChart
	case strings.Contains(lower, "timeline") || strings.Contains(lower, "history") ||
		strings.Contains(lower, "时间线"):
		return models.OutputTypeTimeline
	case strings.Contains(lower, "list") || strings.Contains(lower, "列表") ||
		strings.Contains(lower, "明细"):
		return models.OutputTypeTable
	default:
		return models.OutputTypeTable
	}
}

// truncateForLog 日志用截断，避免长查询刷屏
func truncateForLog(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
