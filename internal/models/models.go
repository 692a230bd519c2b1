package models

import (
	"time"
)

// =============================================================================
// 核心数据模型 - 看板文档生成流水线
// =============================================================================

// OutputType 输出类型 - 可视化看板的种类枚举
type OutputType string

const (
	OutputTypePieChart   OutputType = "pie_chart"   // 饼图
	OutputTypeBarChart   OutputType = "bar_chart"   // 柱状图
	OutputTypeLineChart  OutputType = "line_chart"  // 折线图
	OutputTypeTable      OutputType = "table"       // 表格
	OutputTypeTimeline   OutputType = "timeline"    // 时间线
	OutputTypeGauge      OutputType = "gauge"       // 仪表盘
	OutputTypeMetricCard OutputType = "metric_card" // 指标卡片
	OutputTypeDashboard  OutputType = "dashboard"   // 组合看板
)

// Complexity 查询复杂度
type Complexity string

const (
	ComplexitySimple     Complexity = "simple"      // 单图即可回答
	ComplexityMultiChart Complexity = "multi_chart" // 需要多张图表
	ComplexityDashboard  Complexity = "dashboard"   // 需要完整看板
)

// AnonymousCaller 匿名调用者标识
const AnonymousCaller = "anonymous"

// Query 一次请求的不可变输入
type Query struct {
	Text      string    `json:"text"`       // 原始查询文本
	CallerID  string    `json:"caller_id"`  // 调用者身份，可能为anonymous
	UseMemory bool      `json:"use_memory"` // 是否启用个人记忆
	CreatedAt time.Time `json:"created_at"`
}

// IsAnonymous 判断调用者是否匿名
func (q *Query) IsAnonymous() bool {
	return q.CallerID == "" || q.CallerID == AnonymousCaller
}

// ClassificationResult 分类器输出 - 每次查询只生成一次，下游只读
type ClassificationResult struct {
	OutputType           OutputType `json:"output_type"`            // 期望的输出类型
	Complexity           Complexity `json:"complexity"`             // 查询复杂度
	NeedsPersonalContext bool       `json:"needs_personal_context"` // 是否需要个人记忆
	NeedsExternalContext bool       `json:"needs_external_context"` // 是否需要外部检索
	NeedsImage           bool       `json:"needs_image"`            // 是否需要配图
	Confidence           float64    `json:"confidence"`             // 分类置信度 0~1
	Provider             string     `json:"provider,omitempty"`     // 产生分类的后端
	Model                string     `json:"model,omitempty"`        // 产生分类的模型
}

// ContextChunk 上下文片段 - 检索阶段的最小单元
type ContextChunk struct {
	Text     string  `json:"text"`      // 片段文本
	SourceID string  `json:"source_id"` // 来源标识
	Score    float64 `json:"score"`     // 相关性分数 0~1
}

// Citation 引用信息
type Citation struct {
	Title   string `json:"title"`             // 引用标题
	URL     string `json:"url"`               // 必须是合法的绝对URL
	Snippet string `json:"snippet,omitempty"` // 可选摘录
}

// RetrievalContext 检索上下文 - 按分数降序排列的片段序列 + 引用集合
type RetrievalContext struct {
	Chunks    []ContextChunk `json:"chunks"`
	Citations []Citation     `json:"citations"`
}

// IsEmpty 是否没有召回任何内容
func (rc *RetrievalContext) IsEmpty() bool {
	return rc == nil || (len(rc.Chunks) == 0 && len(rc.Citations) == 0)
}

// SourceKind 内容来源类型 - 聚合器按固定优先级顺序合并
type SourceKind string

const (
	SourceBroadKnowledge  SourceKind = "broad_knowledge"  // 通用知识后端（优先级最高）
	SourceResearchCurrent SourceKind = "research_current" // 时事检索后端
	SourceAuxiliary       SourceKind = "auxiliary"        // 辅助通用后端（优先级最低）
)

// GenerationContribution 单个后端的贡献 - 失败时内容为空，错误不向上传播
type GenerationContribution struct {
	Source    SourceKind    `json:"source"`
	Success   bool          `json:"success"`
	Content   string        `json:"content"` // 失败分支为空字符串
	Citations []Citation    `json:"citations,omitempty"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"` // 仅用于日志，不进入响应
}

// =============================================================================
// 看板文档契约
// =============================================================================

// DataPoint 数据点 - 共享基础形状 + 按图表类型生效的可选字段
type DataPoint struct {
	Label    string                 `json:"label,omitempty"`    // 标签（饼图/柱状图/时间线必填）
	Category string                 `json:"category,omitempty"` // 分组维度
	Value    *float64               `json:"value,omitempty"`    // 数值（饼图/柱状图必填）
	Extra    map[string]interface{} `json:"extra,omitempty"`    // 类型特定的扩展字段
}

// ChartConfig 图表配置 - 按类型生效的可选调优项
type ChartConfig struct {
	Responsive *bool    `json:"responsive,omitempty"`  // 自适应布局，自动修正默认true
	XAxisLabel string   `json:"x_axis_label,omitempty"`
	YAxisLabel string   `json:"y_axis_label,omitempty"`
	Stacked    *bool    `json:"stacked,omitempty"`     // 柱状图堆叠
	Min        *float64 `json:"min,omitempty"`         // 仪表盘最小值
	Max        *float64 `json:"max,omitempty"`         // 仪表盘最大值
	Target     *float64 `json:"target,omitempty"`      // 仪表盘目标值，须在[min,max]内
}

// Sublink 子链接 - 指向更具体的后续查询/视图
type Sublink struct {
	Label   string                 `json:"label"`             // 非空标签
	Route   string                 `json:"route"`             // 必须以"/"开头，且不以"//"开头
	Context map[string]interface{} `json:"context,omitempty"` // 跟随路由的开放上下文
}

// DashboardDocument 看板文档 - 流水线的最终产物契约
type DashboardDocument struct {
	Type        OutputType   `json:"type"`
	Title       string       `json:"title"` // 非空，长度1~120
	Data        []DataPoint  `json:"data"`  // 图表类输出长度须在[1,100]
	Config      *ChartConfig `json:"config,omitempty"`
	Sublinks    []Sublink    `json:"sublinks,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Citations   []Citation   `json:"citations,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	ImagePrompt string       `json:"image_prompt,omitempty"`
}

// Clone 深拷贝文档 - 自动修正在副本上进行，绝不修改原始草稿
func (d *DashboardDocument) Clone() *DashboardDocument {
	if d == nil {
		return nil
	}

	out := *d

	if d.Data != nil {
		out.Data = make([]DataPoint, len(d.Data))
		for i, p := range d.Data {
			cp := p
			if p.Value != nil {
				v := *p.Value
				cp.Value = &v
			}
			if p.Extra != nil {
				cp.Extra = make(map[string]interface{}, len(p.Extra))
				for k, v := range p.Extra {
					cp.Extra[k] = v
				}
			}
			out.Data[i] = cp
		}
	}

	if d.Config != nil {
		cfg := *d.Config
		cfg.Responsive = cloneFloatBool(d.Config.Responsive)
		cfg.Stacked = cloneFloatBool(d.Config.Stacked)
		cfg.Min = cloneFloat(d.Config.Min)
		cfg.Max = cloneFloat(d.Config.Max)
		cfg.Target = cloneFloat(d.Config.Target)
		out.Config = &cfg
	}

	if d.Sublinks != nil {
		out.Sublinks = make([]Sublink, len(d.Sublinks))
		for i, s := range d.Sublinks {
			cp := s
			if s.Context != nil {
				cp.Context = make(map[string]interface{}, len(s.Context))
				for k, v := range s.Context {
					cp.Context[k] = v
				}
			}
			out.Sublinks[i] = cp
		}
	}

	if d.Citations != nil {
		out.Citations = make([]Citation, len(d.Citations))
		copy(out.Citations, d.Citations)
	}

	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloatBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ValidationResult 校验结果 - 每次校验创建一次，绝不跨次合并
type ValidationResult struct {
	IsValid         bool               `json:"is_valid"`
	Errors          []string           `json:"errors"`           // 契约违规，阻断使用
	Warnings        []string           `json:"warnings"`         // 非阻断的质量提示
	Suggestions     []string           `json:"suggestions"`      // 建议性意见
	CorrectedOutput *DashboardDocument `json:"corrected_output,omitempty"` // 单次自动修正的候选
}

// AuditRecord 审计记录 - 发送给外部查询日志协作方
type AuditRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Query        string    `json:"query"`
	ResponseType string    `json:"response_type"`
	Timestamp    time.Time `json:"timestamp"`
}
