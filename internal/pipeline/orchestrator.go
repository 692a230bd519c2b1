package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 🚀 流水线编排器 - 唯一知道完整阶段序列的组件
// 状态机: Started → Classified → ContextGathered → Drafted → Validated
//         → {Delivered | Rejected}，每个阶段每请求恰好执行一次，无重试状态
// =============================================================================

// QueryLog 查询日志协作方的生产契约 - 尽力而为，失败绝不影响请求
type QueryLog interface {
	Log(record models.AuditRecord)
}

// Orchestrator 流水线编排器
type Orchestrator struct {
	classifier *Classifier
	retriever  *Retriever
	aggregator *Aggregator
	summarizer *Summarizer
	validator  *Validator
	registry   *TypeRegistry
	queryLog   QueryLog // 可为nil - 未配置时跳过审计

	enableMemory bool // 记忆功能总开关
}

// NewOrchestrator 创建编排器 - 全部依赖由组合根装配注入
func NewOrchestrator(
	classifier *Classifier,
	retriever *Retriever,
	aggregator *Aggregator,
	summarizer *Summarizer,
	validator *Validator,
	registry *TypeRegistry,
	queryLog QueryLog,
	enableMemory bool,
) *Orchestrator {
	return &Orchestrator{
		classifier:   classifier,
		retriever:    retriever,
		aggregator:   aggregator,
		summarizer:   summarizer,
		validator:    validator,
		registry:     registry,
		queryLog:     queryLog,
		enableMemory: enableMemory,
	}
}

// Registry 暴露类型注册表，供API层的类型列表端点使用
func (o *Orchestrator) Registry() *TypeRegistry {
	return o.registry
}

// Process 处理一次看板生成请求
// 成功返回通过校验的文档；分类/汇总失败或修正后仍有残留错误时返回类型化错误
func (o *Orchestrator) Process(ctx context.Context, req *models.GenerateDashboardRequest) (*models.DashboardDocument, error) {
	requestID := uuid.New().String()
	startTime := time.Now()

	callerID := req.CallerID
	if callerID == "" {
		callerID = models.AnonymousCaller
	}

	query := &models.Query{
		Text:      req.Query,
		CallerID:  callerID,
		UseMemory: req.UseMemory,
		CreatedAt: time.Now(),
	}

	log.Printf("🚀 【编排器】[%s] Started: caller=%s useMemory=%v", requestID, callerID, req.UseMemory)

	// 阶段1: 分类 - 单点调用，失败即请求失败
	classification, err := o.classifier.Classify(ctx, query)
	if err != nil {
		log.Printf("❌ 【编排器】[%s] 分类阶段失败: %v", requestID, err)
		return nil, err
	}
	log.Printf("🚀 【编排器】[%s] Classified: 类型=%s", requestID, classification.OutputType)

	// 记忆参与条件：调用者已认证 且 请求开启 且 功能开关打开
	// 不满足时屏蔽个人上下文标记，检索器据此完全跳过记忆查询
	memoryEngaged := query.UseMemory && !query.IsAnonymous() && o.enableMemory
	if !memoryEngaged {
		classification.NeedsPersonalContext = false
	}

	// 阶段2: 检索与内容聚合并行执行
	var wg sync.WaitGroup
	var retrieval *models.RetrievalContext
	var contributions []models.GenerationContribution

	wg.Add(2)
	go func() {
		defer wg.Done()
		retrieval = o.retriever.Retrieve(ctx, query, callerID, classification)
	}()
	go func() {
		defer wg.Done()
		contributions = o.aggregator.Aggregate(ctx, query, classification)
	}()
	wg.Wait()

	compositeContext := BuildCompositeContext(contributions)
	log.Printf("🚀 【编排器】[%s] ContextGathered: %d个片段, %d字符复合上下文",
		requestID, len(retrieval.Chunks), len(compositeContext))

	// 阶段3: 汇总 - 单点调用，失败即请求失败
	draft, err := o.summarizer.Summarize(ctx, query, classification, compositeContext, retrieval)
	if err != nil {
		log.Printf("❌ 【编排器】[%s] 汇总阶段失败: %v", requestID, err)
		return nil, err
	}
	log.Printf("🚀 【编排器】[%s] Drafted: 标题=%q", requestID, truncateForLog(draft.Title, 40))

	// 草稿没带引用时，把召回阶段收集的引用补进去
	if len(draft.Citations) == 0 {
		draft.Citations = append(draft.Citations, retrieval.Citations...)
		draft.Citations = append(draft.Citations, CollectCitations(contributions)...)
	}

	// 阶段4: 校验 + 至多一次自动修正
	result := o.validator.Validate(draft, classification)
	log.Printf("🚀 【编排器】[%s] Validated: valid=%v errors=%d warnings=%d",
		requestID, result.IsValid, len(result.Errors), len(result.Warnings))

	final := draft
	if !result.IsValid {
		if result.CorrectedOutput == nil {
			log.Printf("❌ 【编排器】[%s] Rejected: 无可用修正 (耗时%v)", requestID, time.Since(startTime))
			return nil, &ValidationError{Errors: result.Errors}
		}

		// 对修正候选重新校验一次 - 只看是否通过，绝不二次修正
		recheck := o.validator.Validate(result.CorrectedOutput, classification)
		if !recheck.IsValid {
			log.Printf("❌ 【编排器】[%s] Rejected: 修正后仍有%d个错误 (耗时%v)",
				requestID, len(recheck.Errors), time.Since(startTime))
			return nil, &ValidationError{Errors: result.Errors}
		}

		log.Printf("🔧 【编排器】[%s] 自动修正生效: 原始错误%d个已解决", requestID, len(result.Errors))
		final = result.CorrectedOutput
	}

	// 审计记录 - 尽力而为，失败只记日志
	o.emitAudit(requestID, callerID, query.Text, final.Type)

	log.Printf("✅ 【编排器】[%s] Delivered: 类型=%s (总耗时%v)", requestID, final.Type, time.Since(startTime))
	return final, nil
}

// emitAudit 发出审计记录，任何异常都不能影响请求本身
func (o *Orchestrator) emitAudit(requestID, userID, queryText string, responseType models.OutputType) {
	if o.queryLog == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ 【编排器】[%s] 审计记录写入异常（已忽略）: %v", requestID, r)
		}
	}()

	o.queryLog.Log(models.AuditRecord{
		ID:           requestID,
		UserID:       userID,
		Query:        queryText,
		ResponseType: string(responseType),
		Timestamp:    time.Now(),
	})
}
