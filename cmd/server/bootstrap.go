package main

import (
	"log"

	"github.com/dashweaver/service/internal/config"
	"github.com/dashweaver/service/internal/llm"
	"github.com/dashweaver/service/internal/models"
	"github.com/dashweaver/service/internal/pipeline"
	"github.com/dashweaver/service/internal/store"
	"github.com/dashweaver/service/pkg/memstore"
)

// buildPipeline 组合根 - 按配置装配LLM客户端与流水线各组件
// HTTP与stdio两种模式共用同一套装配逻辑；
// 缺少API密钥的后端直接不注册，对应扇出分支不存在而非运行期失败
func buildPipeline(cfg *config.Config) (*pipeline.Orchestrator, *llm.LLMFactory, *store.FileQueryLog, []string) {
	factory := llm.NewLLMFactory()

	if cfg.OpenAIAPIKey != "" {
		factory.SetConfig(llm.ProviderOpenAI, &llm.LLMConfig{
			Provider:  llm.ProviderOpenAI,
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIModel,
			Timeout:   cfg.LLMTimeout,
			RateLimit: cfg.LLMRateLimit,
		})
	}
	if cfg.GeminiAPIKey != "" {
		factory.SetConfig(llm.ProviderGemini, &llm.LLMConfig{
			Provider:  llm.ProviderGemini,
			APIKey:    cfg.GeminiAPIKey,
			BaseURL:   cfg.GeminiBaseURL,
			Model:     cfg.GeminiModel,
			Timeout:   cfg.LLMTimeout,
			RateLimit: cfg.LLMRateLimit,
		})
	}
	if cfg.PerplexityAPIKey != "" {
		factory.SetConfig(llm.ProviderPerplexity, &llm.LLMConfig{
			Provider:  llm.ProviderPerplexity,
			APIKey:    cfg.PerplexityAPIKey,
			BaseURL:   cfg.PerplexityBaseURL,
			Model:     cfg.PerplexityModel,
			Timeout:   cfg.LLMTimeout,
			RateLimit: cfg.LLMRateLimit,
		})
	}

	// 内容后端扇出集合 - 固定优先级：通用知识 → 时事检索 → 辅助
	createClient := func(provider llm.LLMProvider, kind string) llm.LLMClient {
		client, err := factory.CreateClient(provider)
		if err != nil {
			log.Printf("⚠️ [组装] %s后端不可用（%s通道跳过）: %v", provider, kind, err)
			return nil
		}
		log.Printf("✅ [组装] %s后端就绪（%s通道, 模型%s）", provider, kind, client.GetModel())
		return client
	}

	openaiClient := createClient(llm.ProviderOpenAI, "broad_knowledge")
	perplexityClient := createClient(llm.ProviderPerplexity, "research_current")
	geminiClient := createClient(llm.ProviderGemini, "auxiliary")

	var backends []pipeline.SourceBackend
	if openaiClient != nil {
		backends = append(backends, pipeline.SourceBackend{
			Kind: models.SourceBroadKnowledge, Client: openaiClient, Priority: 0,
		})
	}
	if perplexityClient != nil {
		backends = append(backends, pipeline.SourceBackend{
			Kind: models.SourceResearchCurrent, Client: perplexityClient, Priority: 1,
		})
	}
	if geminiClient != nil {
		backends = append(backends, pipeline.SourceBackend{
			Kind: models.SourceAuxiliary, Client: geminiClient, Priority: 2,
		})
	}

	// 主后端 - 分类器与汇总器共用，缺失时组件自身返回配置错误
	primaryClient, err := factory.CreateClient(llm.LLMProvider(cfg.PrimaryProvider))
	if err != nil {
		log.Printf("⚠️ [组装] 主后端%s不可用，分类/汇总将快速失败: %v", cfg.PrimaryProvider, err)
		primaryClient = nil
	}

	// 记忆存储客户端 - 外部协作方，未配置时检索器跳过个人记忆分支
	var memory pipeline.MemoryStore
	if cfg.MemoryStoreURL != "" {
		memory = memstore.NewClient(cfg.MemoryStoreURL, cfg.MemoryStoreAPIKey)
		log.Printf("✅ [组装] 记忆存储就绪: %s", cfg.MemoryStoreURL)
	} else {
		log.Printf("⚠️ [组装] 未配置记忆存储，个人上下文检索不可用")
	}

	// 查询日志 - 尽力而为，初始化失败不阻止服务启动
	queryLog, err := store.NewFileQueryLog(cfg.QueryLogPath)
	if err != nil {
		log.Printf("⚠️ [组装] 查询日志初始化失败，审计记录不可用: %v", err)
		queryLog = nil
	}

	registry := pipeline.NewDefaultTypeRegistry()

	classifier := pipeline.NewClassifier(primaryClient, registry)
	retriever := pipeline.NewRetriever(memory, perplexityClient, pipeline.RetrieverOptions{
		TopK:                cfg.MemoryTopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
		BranchTimeout:       cfg.BranchTimeout,
	})
	aggregator := pipeline.NewAggregator(backends, cfg.BranchTimeout)
	summarizer := pipeline.NewSummarizer(primaryClient, cfg.MaxTokens)
	validator := pipeline.NewValidator(registry)

	// 接口持有nil具体指针会绕过nil判断，这里显式区分
	var auditLog pipeline.QueryLog
	if queryLog != nil {
		auditLog = queryLog
	}

	orchestrator := pipeline.NewOrchestrator(
		classifier, retriever, aggregator, summarizer, validator,
		registry, auditLog, cfg.EnableMemory,
	)

	providers := make([]string, 0, 3)
	for _, p := range factory.ListConfiguredProviders() {
		providers = append(providers, string(p))
	}

	return orchestrator, factory, queryLog, providers
}
