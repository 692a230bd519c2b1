package pipeline

import (
	"fmt"
	"strings"
)

// =============================================================================
// 流水线错误分类
// 传播策略：并行/可选分支降级不失败；分类和汇总是单点调用，失败即请求失败；
// 配置错误属于静态问题，立即失败，绝不重试
// =============================================================================

// ConfigurationError 配置错误 - 缺少凭证或必需配置，快速失败
type ConfigurationError struct {
	Component string // 出错的组件名
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %s", e.Component, e.Message)
}

// UpstreamServiceError 上游服务错误 - 单个后端调用失败或返回不可用内容
type UpstreamServiceError struct {
	Source  string // 出错的上游标识
	Message string
	Err     error
}

func (e *UpstreamServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("上游服务错误 [%s]: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("上游服务错误 [%s]: %s", e.Source, e.Message)
}

func (e *UpstreamServiceError) Unwrap() error {
	return e.Err
}

// ValidationError 校验错误 - 自动修正后仍残留契约违规，结构化拒绝
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("文档校验失败: %s", strings.Join(e.Errors, "; "))
}
