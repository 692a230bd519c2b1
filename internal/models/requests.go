package models

// GenerateDashboardRequest 看板生成请求
type GenerateDashboardRequest struct {
	Query     string `json:"query" binding:"required"`
	UseMemory bool   `json:"useMemory"`
	CallerID  string `json:"callerId"`
}

// ErrorResponse 结构化错误响应 - 调用方永远拿到合法文档或结构化错误，二者必居其一
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Errors  []string `json:"errors,omitempty"` // 校验失败时的违规清单
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Uptime    string   `json:"uptime"`
	Providers []string `json:"providers"` // 已配置的生成后端
}

// TypesResponse 可渲染类型列表响应
type TypesResponse struct {
	Types []string `json:"types"`
}
