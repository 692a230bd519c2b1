package pipeline

import (
	"sort"

	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 输出类型注册表
// 由组合根显式构造后注入编排器，不做进程级全局懒加载
// =============================================================================

// TypeRule 单个输出类型的结构规则
type TypeRule struct {
	DisplayName          string // 面向外部的展示名
	Renderable           bool   // 是否在前端可渲染白名单内
	ChartBearing         bool   // 是否受data长度[1,100]约束
	RequiresLabel        bool   // 每个数据点是否必须有非空label
	RequiresNumericValue bool   // 每个数据点是否必须有数值value
	MinDataPoints        int
	MaxDataPoints        int
}

// TypeRegistry 输出类型到规则的映射
type TypeRegistry struct {
	rules map[models.OutputType]TypeRule
}

// NewTypeRegistry 创建空注册表
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{rules: make(map[models.OutputType]TypeRule)}
}

// NewDefaultTypeRegistry 创建带默认规则集的注册表
func NewDefaultTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()

	r.Register(models.OutputTypePieChart, TypeRule{
		DisplayName:          "Pie Chart",
		Renderable:           true,
		ChartBearing:         true,
		RequiresLabel:        true,
		RequiresNumericValue: true,
		MinDataPoints:        1,
		MaxDataPoints:        100,
	})

	r.Register(models.OutputTypeBarChart, TypeRule{
		DisplayName:          "Bar Chart",
		Renderable:           true,
		ChartBearing:         true,
		RequiresLabel:        true,
		RequiresNumericValue: true,
		MinDataPoints:        1,
		MaxDataPoints:        100,
	})

	r.Register(models.OutputTypeLineChart, TypeRule{
		DisplayName:          "Line Chart",
		Renderable:           true,
		ChartBearing:         true,
		RequiresNumericValue: true,
		MinDataPoints:        1,
		MaxDataPoints:        100,
	})

	r.Register(models.OutputTypeTable, TypeRule{
		DisplayName:   "Table",
		Renderable:    true,
		ChartBearing:  true,
		MinDataPoints: 1,
		MaxDataPoints: 100,
	})

	r.Register(models.OutputTypeTimeline, TypeRule{
		DisplayName:   "Timeline",
		Renderable:    true,
		ChartBearing:  true,
		RequiresLabel: true,
		MinDataPoints: 1,
		MaxDataPoints: 100,
	})

	r.Register(models.OutputTypeGauge, TypeRule{
		DisplayName:          "Gauge",
		Renderable:           true,
		ChartBearing:         true,
		RequiresNumericValue: true,
		MinDataPoints:        1,
		MaxDataPoints:        100,
	})

	r.Register(models.OutputTypeMetricCard, TypeRule{
		DisplayName:          "Metric Card",
		Renderable:           true,
		ChartBearing:         true,
		RequiresNumericValue: true,
		MinDataPoints:        1,
		MaxDataPoints:        100,
	})

	r.Register(models.OutputTypeDashboard, TypeRule{
		DisplayName:   "Dashboard",
		Renderable:    true,
		ChartBearing:  true,
		MinDataPoints: 1,
		MaxDataPoints: 100,
	})

	return r
}

// Register 注册或覆盖一个类型规则
func (r *TypeRegistry) Register(t models.OutputType, rule TypeRule) {
	r.rules[t] = rule
}

// Rule 查询类型规则
func (r *TypeRegistry) Rule(t models.OutputType) (TypeRule, bool) {
	rule, ok := r.rules[t]
	return rule, ok
}

// IsRenderable 判断类型是否在可渲染白名单内
func (r *TypeRegistry) IsRenderable(t models.OutputType) bool {
	rule, ok := r.rules[t]
	return ok && rule.Renderable
}

// Types 返回全部已注册类型，字典序稳定排列
func (r *TypeRegistry) Types() []models.OutputType {
	types := make([]models.OutputType, 0, len(r.rules))
	for t := range r.rules {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
