package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/dashweaver/service/internal/models"
)

func TestClassifier(t *testing.T) {
	registry := NewDefaultTypeRegistry()

	t.Run("解析标准分类响应", func(t *testing.T) {
		client := newMockLLMClient(`{"output_type":"pie_chart","complexity":"simple","needs_personal_context":true,"needs_external_context":false,"needs_image":false,"confidence":0.92}`)
		classifier := NewClassifier(client, registry)

		result, err := classifier.Classify(context.Background(), &models.Query{Text: "What did I spend last month?", CallerID: "u1"})
		if err != nil {
			t.Fatalf("分类失败: %v", err)
		}
		if result.OutputType != models.OutputTypePieChart {
			t.Errorf("期望pie_chart, 实际: %s", result.OutputType)
		}
		if !result.NeedsPersonalContext || result.NeedsExternalContext {
			t.Error("上下文标记解析错误")
		}
		if result.Confidence != 0.92 {
			t.Errorf("置信度解析错误: %v", result.Confidence)
		}
		if client.callCount() != 1 {
			t.Errorf("分类应恰好调用一次后端, 实际%d次", client.callCount())
		}
		t.Logf("✅ 标准响应解析正常")
	})

	t.Run("容忍JSON外包裹的说明文字", func(t *testing.T) {
		client := newMockLLMClient("Sure! Here is the classification:\n```json\n{\"output_type\":\"table\",\"complexity\":\"simple\",\"confidence\":0.8}\n```")
		classifier := NewClassifier(client, registry)

		result, err := classifier.Classify(context.Background(), testQuery())
		if err != nil {
			t.Fatalf("分类失败: %v", err)
		}
		if result.OutputType != models.OutputTypeTable {
			t.Errorf("期望table, 实际: %s", result.OutputType)
		}
		t.Logf("✅ 包裹文字容忍正常")
	})

	t.Run("未配置后端返回配置错误", func(t *testing.T) {
		classifier := NewClassifier(nil, registry)

		_, err := classifier.Classify(context.Background(), testQuery())
		var configErr *ConfigurationError
		if !errors.As(err, &configErr) {
			t.Fatalf("期望ConfigurationError, 实际: %v", err)
		}
		t.Logf("✅ 配置错误快速失败正常")
	})

	t.Run("后端调用失败返回上游错误", func(t *testing.T) {
		client := newMockLLMClient("")
		client.err = errMockUpstream
		classifier := NewClassifier(client, registry)

		_, err := classifier.Classify(context.Background(), testQuery())
		var upstreamErr *UpstreamServiceError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("期望UpstreamServiceError, 实际: %v", err)
		}
		t.Logf("✅ 上游错误传播正常")
	})

	t.Run("畸形响应是上游错误不是崩溃", func(t *testing.T) {
		client := newMockLLMClient("I don't know how to classify that.")
		classifier := NewClassifier(client, registry)

		_, err := classifier.Classify(context.Background(), testQuery())
		var upstreamErr *UpstreamServiceError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("期望UpstreamServiceError, 实际: %v", err)
		}
		t.Logf("✅ 畸形响应错误化正常")
	})

	t.Run("未知输出类型回退到启发式推断", func(t *testing.T) {
		client := newMockLLMClient(`{"output_type":"hologram","complexity":"weird","confidence":5}`)
		classifier := NewClassifier(client, registry)

		result, err := classifier.Classify(context.Background(), &models.Query{Text: "Show me the spending trend over time"})
		if err != nil {
			t.Fatalf("分类失败: %v", err)
		}
		if result.OutputType != models.OutputTypeLineChart {
			t.Errorf("趋势查询应推断为line_chart, 实际: %s", result.OutputType)
		}
		if result.Complexity != models.ComplexitySimple {
			t.Errorf("非法复杂度应回退为simple, 实际: %s", result.Complexity)
		}
		if result.Confidence != 0.5 {
			t.Errorf("越界置信度应回退为0.5, 实际: %v", result.Confidence)
		}
		t.Logf("✅ 越界字段归一化正常")
	})
}
