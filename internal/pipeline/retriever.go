package pipeline

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dashweaver/service/internal/llm"
	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 🔍 上下文检索器 - 个人记忆 + 外部检索的并行召回
// 任何一路失败只降级为空贡献，绝不升级为流水线错误
// =============================================================================

// MemoryStore 个人记忆存储的消费契约
// 核心不管理记忆的持久化、向量化与淘汰，只调用这份查询接口
type MemoryStore interface {
	// Search 在调用者的私有记忆分区做相似度检索
	Search(ctx context.Context, callerID, query string, topK int, minSimilarity float64) ([]models.ContextChunk, error)

	// Recent 取调用者最近的记忆片段
	Recent(ctx context.Context, callerID string, limit int) ([]models.ContextChunk, error)
}

// RetrieverOptions 检索参数
type RetrieverOptions struct {
	TopK                int
	SimilarityThreshold float64
	BranchTimeout       time.Duration
}

// Retriever 上下文检索器
type Retriever struct {
	memory   MemoryStore   // 可为nil - 未配置记忆存储时个人检索直接跳过
	research llm.LLMClient // 可为nil - 未配置外部检索后端时外部检索直接跳过
	opts     RetrieverOptions
}

// NewRetriever 创建检索器
func NewRetriever(memory MemoryStore, research llm.LLMClient, opts RetrieverOptions) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.BranchTimeout <= 0 {
		opts.BranchTimeout = 25 * time.Second
	}

	return &Retriever{
		memory:   memory,
		research: research,
		opts:     opts,
	}
}

// Retrieve 按分类结果召回上下文
// needsPersonalContext为false时完全跳过记忆查询（不发调用，省成本省延迟）；
// 两路都触发时并行执行；片段按分数降序稳定排列，低于阈值的直接丢弃
func (r *Retriever) Retrieve(ctx context.Context, query *models.Query, userID string, classification *models.ClassificationResult) *models.RetrievalContext {
	needMemory := classification.NeedsPersonalContext && r.memory != nil
	needResearch := classification.NeedsExternalContext && r.research != nil

	if !needMemory && !needResearch {
		return &models.RetrievalContext{}
	}

	startTime := time.Now()
	log.Printf("🔍 【检索器】开始召回: 个人记忆=%v 外部检索=%v", needMemory, needResearch)

	var wg sync.WaitGroup
	var mu sync.Mutex
	result := &models.RetrievalContext{}

	if needMemory {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks := r.searchMemory(ctx, userID, query.Text)
			mu.Lock()
			result.Chunks = append(result.Chunks, chunks...)
			mu.Unlock()
		}()
	}

	if needResearch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks, citations := r.searchExternal(ctx, query.Text)
			mu.Lock()
			result.Chunks = append(result.Chunks, chunks...)
			result.Citations = append(result.Citations, citations...)
			mu.Unlock()
		}()
	}

	wg.Wait()

	// 分数降序，同分保持到达顺序
	sort.SliceStable(result.Chunks, func(i, j int) bool {
		return result.Chunks[i].Score > result.Chunks[j].Score
	})

	log.Printf("✅ 【检索器】召回完成: %d个片段, %d条引用 (耗时%v)",
		len(result.Chunks), len(result.Citations), time.Since(startTime))

	return result
}

// searchMemory 个人记忆检索分支 - 失败降级为空
func (r *Retriever) searchMemory(ctx context.Context, userID, queryText string) []models.ContextChunk {
	branchCtx, cancel := context.WithTimeout(ctx, r.opts.BranchTimeout)
	defer cancel()

	chunks, err := r.memory.Search(branchCtx, userID, queryText, r.opts.TopK, r.opts.SimilarityThreshold)
	if err != nil {
		log.Printf("⚠️ 【检索器】个人记忆检索失败，降级为空: %v", err)
		return nil
	}

	// 低于阈值的片段直接丢弃，不带零权重标记
	kept := chunks[:0]
	for _, chunk := range chunks {
		if chunk.Score >= r.opts.SimilarityThreshold {
			kept = append(kept, chunk)
		}
	}

	log.Printf("📥 【检索器】个人记忆命中%d个片段（阈值%.2f过滤后）", len(kept), r.opts.SimilarityThreshold)
	return kept
}

// searchExternal 外部检索分支 - 失败降级为空
func (r *Retriever) searchExternal(ctx context.Context, queryText string) ([]models.ContextChunk, []models.Citation) {
	branchCtx, cancel := context.WithTimeout(ctx, r.opts.BranchTimeout)
	defer cancel()

	result, err := r.research.Generate(branchCtx, &llm.GenerateRequest{
		Prompt:       queryText,
		Instructions: "Research current information relevant to the query. Return concise factual findings.",
		MaxTokens:    1024,
		Temperature:  0.2,
	})
	if err != nil {
		log.Printf("⚠️ 【检索器】外部检索失败，降级为空: %v", err)
		return nil, nil
	}

	var chunks []models.ContextChunk
	if result.Content != "" {
		chunks = append(chunks, models.ContextChunk{
			Text:     result.Content,
			SourceID: string(models.SourceResearchCurrent),
			Score:    1.0,
		})
	}

	log.Printf("📥 【检索器】外部检索返回%d字符, %d条引用", len(result.Content), len(result.Citations))
	return chunks, result.Citations
}
