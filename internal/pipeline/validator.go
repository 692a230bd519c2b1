package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// ✅ 校验器与自动修正器 - 纯函数，无任何后端调用
// 自动修正只跑一遍，修正清单固定，原始错误列表完整保留
// =============================================================================

// Validator 文档校验器
type Validator struct {
	registry *TypeRegistry
}

// NewValidator 创建校验器
func NewValidator(registry *TypeRegistry) *Validator {
	return &Validator{registry: registry}
}

// Validate 按固定顺序执行契约检查，必要时附带一个修正候选
// 每次调用创建全新的结果对象，绝不跨次合并
func (v *Validator) Validate(draft *models.DashboardDocument, classification *models.ClassificationResult) *models.ValidationResult {
	result := &models.ValidationResult{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	if draft == nil {
		result.Errors = append(result.Errors, "document is missing")
		return result
	}

	rule, known := v.registry.Rule(draft.Type)

	// (1) 结构/契约检查
	v.checkStructure(draft, rule, known, result)

	// (2) 类型一致性 - 汇总器允许选更具体的子类型，不一致只是警告
	if classification != nil && draft.Type != classification.OutputType {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("document type %q differs from classified type %q", draft.Type, classification.OutputType))
	}

	// (3) 类型特定的数据点规则
	if known {
		v.checkDataPoints(draft, rule, result)
	}

	// (4) 配置合理性
	v.checkConfig(draft, result)

	// (5) 子链接完整性
	v.checkSublinks(draft, result)

	// (6) 引用完整性
	v.checkCitations(draft, result)

	// (7) 内容质量启发 - 只产生警告
	v.checkQuality(draft, result)

	// (8) 前端可渲染白名单 - 不在白名单内即错误，与契约合法与否无关
	if !v.registry.IsRenderable(draft.Type) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("type %q is not in the renderable whitelist", draft.Type))
	}

	result.IsValid = len(result.Errors) == 0

	// 有错误时尝试一次修正 - 产出候选或什么都不产出，绝不循环
	if !result.IsValid {
		if corrected, applied := v.autoCorrect(draft, rule, known); applied {
			result.CorrectedOutput = corrected
		}
	}

	return result
}

// checkStructure 基础契约检查
func (v *Validator) checkStructure(draft *models.DashboardDocument, rule TypeRule, known bool, result *models.ValidationResult) {
	if draft.Type == "" {
		result.Errors = append(result.Errors, "document type is empty")
	} else if !known {
		result.Errors = append(result.Errors, fmt.Sprintf("unknown document type %q", draft.Type))
	}

	titleLen := len([]rune(draft.Title))
	if titleLen == 0 {
		result.Errors = append(result.Errors, "title is empty")
	} else if titleLen > MaxTitleRunes {
		result.Errors = append(result.Errors,
			fmt.Sprintf("title exceeds %d characters (got %d)", MaxTitleRunes, titleLen))
	}

	if known && rule.ChartBearing {
		if len(draft.Data) < rule.MinDataPoints {
			result.Errors = append(result.Errors,
				fmt.Sprintf("data requires at least %d point(s) for type %q, got %d",
					rule.MinDataPoints, draft.Type, len(draft.Data)))
		}
		if rule.MaxDataPoints > 0 && len(draft.Data) > rule.MaxDataPoints {
			result.Errors = append(result.Errors,
				fmt.Sprintf("data exceeds %d points for type %q, got %d",
					rule.MaxDataPoints, draft.Type, len(draft.Data)))
		}
	}
}

// checkDataPoints 按类型规则检查每个数据点
func (v *Validator) checkDataPoints(draft *models.DashboardDocument, rule TypeRule, result *models.ValidationResult) {
	for i, point := range draft.Data {
		if rule.RequiresLabel && strings.TrimSpace(point.Label) == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("data point %d requires a non-empty label for type %q", i, draft.Type))
		}
		if rule.RequiresNumericValue && point.Value == nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("data point %d requires a numeric value for type %q", i, draft.Type))
		}
	}
}

// checkConfig 配置合理性 - 目前只有仪表盘有数值边界约束
func (v *Validator) checkConfig(draft *models.DashboardDocument, result *models.ValidationResult) {
	if draft.Config == nil || draft.Type != models.OutputTypeGauge {
		return
	}

	cfg := draft.Config
	if cfg.Min != nil && cfg.Max != nil && *cfg.Min >= *cfg.Max {
		result.Errors = append(result.Errors,
			fmt.Sprintf("gauge config requires min < max (got min=%v, max=%v)", *cfg.Min, *cfg.Max))
	}
	if cfg.Target != nil && cfg.Min != nil && cfg.Max != nil {
		if *cfg.Target < *cfg.Min || *cfg.Target > *cfg.Max {
			result.Errors = append(result.Errors,
				fmt.Sprintf("gauge target %v must be within [%v, %v]", *cfg.Target, *cfg.Min, *cfg.Max))
		}
	}
}

// checkSublinks 子链接完整性
func (v *Validator) checkSublinks(draft *models.DashboardDocument, result *models.ValidationResult) {
	seen := make(map[string]bool, len(draft.Sublinks))

	for i, link := range draft.Sublinks {
		if strings.TrimSpace(link.Label) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("sublink %d has an empty label", i))
		}
		if strings.TrimSpace(link.Route) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("sublink %d has an empty route", i))
			continue
		}
		if !strings.HasPrefix(link.Route, "/") {
			result.Errors = append(result.Errors,
				fmt.Sprintf("sublink %d route %q must start with \"/\"", i, link.Route))
		} else if strings.HasPrefix(link.Route, "//") {
			result.Errors = append(result.Errors,
				fmt.Sprintf("sublink %d route %q must not start with \"//\"", i, link.Route))
		}
		if seen[link.Route] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("duplicate sublink route %q", link.Route))
		}
		seen[link.Route] = true
	}
}

// checkCitations 引用完整性 - URL必须能解析为绝对地址
func (v *Validator) checkCitations(draft *models.DashboardDocument, result *models.ValidationResult) {
	for i, citation := range draft.Citations {
		if strings.TrimSpace(citation.Title) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("citation %d has an empty title", i))
		}
		parsed, err := url.Parse(citation.URL)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("citation %d url %q is not a valid absolute URL", i, citation.URL))
		}
	}
}

// checkQuality 内容质量启发 - 上限超出只给警告，不阻断
func (v *Validator) checkQuality(draft *models.DashboardDocument, result *models.ValidationResult) {
	if len([]rune(draft.Title)) > 80 {
		result.Warnings = append(result.Warnings, "title is longer than 80 characters, consider shortening")
	}
	if len([]rune(draft.Summary)) > 1000 {
		result.Warnings = append(result.Warnings, "summary is longer than 1000 characters, consider shortening")
	}
	if draft.Summary == "" {
		result.Suggestions = append(result.Suggestions, "adding a short summary improves readability")
	}
}

// autoCorrect 单次确定性修正
// 修正清单固定且机械安全：缺标题用类型名合成、缺标签按序号合成（仅限
// 要求标签的类型）、子链接路由补"/"前缀、缺配置注入responsive=true。
// 绝不调用生成后端，绝不循环；清单内无可修项时不产出候选
func (v *Validator) autoCorrect(draft *models.DashboardDocument, rule TypeRule, known bool) (*models.DashboardDocument, bool) {
	corrected := draft.Clone()
	applied := false

	// 标题合成
	if strings.TrimSpace(corrected.Title) == "" && known {
		corrected.Title = rule.DisplayName
		applied = true
	}

	// 序号标签合成 - 仅限要求标签的图表类型
	if known && rule.RequiresLabel {
		for i := range corrected.Data {
			if strings.TrimSpace(corrected.Data[i].Label) == "" {
				corrected.Data[i].Label = fmt.Sprintf("Item %d", i+1)
				applied = true
			}
		}
	}

	// 路由前缀修正
	for i := range corrected.Sublinks {
		route := corrected.Sublinks[i].Route
		if route != "" && !strings.HasPrefix(route, "/") {
			corrected.Sublinks[i].Route = NormalizeRoute(route)
			applied = true
		}
	}

	// 默认图表配置注入
	if corrected.Config == nil {
		responsive := true
		corrected.Config = &models.ChartConfig{Responsive: &responsive}
		applied = true
	}

	if !applied {
		return nil, false
	}

	return corrected, true
}

// NormalizeRoute 路由归一化 - 幂等：已带"/"前缀的路由原样保留
func NormalizeRoute(route string) string {
	if strings.HasPrefix(route, "/") && !strings.HasPrefix(route, "//") {
		return route
	}
	return "/" + strings.TrimLeft(route, "/")
}
