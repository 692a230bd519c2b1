package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dashweaver/service/internal/llm"
	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 🌊 内容源聚合器 - 并行扇出到多个生成/检索后端
// 全分支落定才汇合：任何单个上游故障绝不中断整个请求
// =============================================================================

// FallbackContent 全部分支失败时的确定性兜底内容
// 下游拿到的是明确的"无内容"贡献，不是异常也不是空串
const FallbackContent = "No content sources are currently available for this query."

// SourceBackend 一个可聚合的内容源
type SourceBackend struct {
	Kind     models.SourceKind
	Client   llm.LLMClient
	Priority int // 合并顺序，越小越靠前
}

// Aggregator 内容源聚合器
type Aggregator struct {
	backends      []SourceBackend
	branchTimeout time.Duration
}

// NewAggregator 创建聚合器 - 后端集合在组合根装配，缺失的后端不注册即可
func NewAggregator(backends []SourceBackend, branchTimeout time.Duration) *Aggregator {
	sorted := make([]SourceBackend, len(backends))
	copy(sorted, backends)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return &Aggregator{
		backends:      sorted,
		branchTimeout: branchTimeout,
	}
}

// Aggregate 并发调用全部已注册后端，等待所有分支落定后按固定优先级合并
// 单个分支失败或超时记为空贡献，错误只记日志不向上传播
func (a *Aggregator) Aggregate(ctx context.Context, query *models.Query, classification *models.ClassificationResult) []models.GenerationContribution {
	if len(a.backends) == 0 {
		log.Printf("⚠️ 【聚合器】没有可用的内容后端，返回兜底内容")
		return []models.GenerationContribution{fallbackContribution()}
	}

	startTime := time.Now()
	log.Printf("🌊 【聚合器】开始扇出: %d个后端并行", len(a.backends))

	var wg sync.WaitGroup
	results := make(chan models.GenerationContribution, len(a.backends))

	for _, backend := range a.backends {
		wg.Add(1)
		go func(b SourceBackend) {
			defer wg.Done()
			results <- a.callBranch(ctx, b, query, classification)
		}(backend)
	}

	wg.Wait()
	close(results)

	// 按注册的优先级顺序重排 - 通道到达顺序不稳定
	byKind := make(map[models.SourceKind]models.GenerationContribution, len(a.backends))
	for contribution := range results {
		byKind[contribution.Source] = contribution
	}

	contributions := make([]models.GenerationContribution, 0, len(a.backends))
	successCount := 0
	for _, backend := range a.backends {
		contribution := byKind[backend.Kind]
		contributions = append(contributions, contribution)
		if contribution.Success {
			successCount++
		}
	}

	// 全部失败：给下游一个确定性的兜底贡献
	if successCount == 0 {
		log.Printf("❌ 【聚合器】全部%d个分支失败，使用兜底内容 (耗时%v)", len(a.backends), time.Since(startTime))
		return []models.GenerationContribution{fallbackContribution()}
	}

	log.Printf("✅ 【聚合器】扇出完成: %d/%d个分支成功 (耗时%v)", successCount, len(a.backends), time.Since(startTime))
	return contributions
}

// callBranch 执行单个分支 - 每个分支有独立的硬超时，超时即视为分支失败
func (a *Aggregator) callBranch(ctx context.Context, backend SourceBackend, query *models.Query, classification *models.ClassificationResult) models.GenerationContribution {
	branchCtx, cancel := context.WithTimeout(ctx, a.branchTimeout)
	defer cancel()

	startTime := time.Now()

	result, err := backend.Client.Generate(branchCtx, &llm.GenerateRequest{
		Prompt:       query.Text,
		Instructions: branchInstructions(backend.Kind, classification),
		MaxTokens:    1024,
		Temperature:  0.3,
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Printf("⚠️ 【聚合器】分支失败 [%s]: %v (耗时%v)", backend.Kind, err, duration)
		return models.GenerationContribution{
			Source:   backend.Kind,
			Success:  false,
			Content:  "",
			Duration: duration,
			Err:      err,
		}
	}

	log.Printf("📥 【聚合器】分支成功 [%s]: %d字符, %d条引用 (耗时%v)",
		backend.Kind, len(result.Content), len(result.Citations), duration)

	return models.GenerationContribution{
		Source:    backend.Kind,
		Success:   true,
		Content:   result.Content,
		Citations: result.Citations,
		Duration:  duration,
	}
}

// branchInstructions 按来源类型生成分支指令
func branchInstructions(kind models.SourceKind, classification *models.ClassificationResult) string {
	base := fmt.Sprintf("The user wants a %s visualization. Provide factual content that could populate it. Be concise and data-oriented.", classification.OutputType)

	switch kind {
	case models.SourceBroadKnowledge:
		return "You provide broad background knowledge. " + base
	case models.SourceResearchCurrent:
		return "You provide current, up-to-date information with sources. " + base
	case models.SourceAuxiliary:
		return "You provide supplementary perspectives. " + base
	default:
		return base
	}
}

// fallbackContribution 构造兜底贡献
func fallbackContribution() models.GenerationContribution {
	return models.GenerationContribution{
		Source:  models.SourceBroadKnowledge,
		Success: false,
		Content: FallbackContent,
	}
}

// BuildCompositeContext 把多个贡献拼成带来源标注的复合上下文
// 固定优先级顺序拼接，每段带明确的来源小节头，绝不无署名地混合
func BuildCompositeContext(contributions []models.GenerationContribution) string {
	var sb strings.Builder

	for _, contribution := range contributions {
		if contribution.Content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("## Source: %s\n", contribution.Source))
		sb.WriteString(contribution.Content)
	}

	if sb.Len() == 0 {
		return FallbackContent
	}

	return sb.String()
}

// CollectCitations 汇总全部贡献的引用，保持优先级顺序
func CollectCitations(contributions []models.GenerationContribution) []models.Citation {
	var citations []models.Citation
	for _, contribution := range contributions {
		citations = append(citations, contribution.Citations...)
	}
	return citations
}
