package llm

import (
	"fmt"
	"strings"
)

// ExtractJSON 从LLM响应中防御性提取JSON内容
// 后端即使被指示只输出JSON，也可能在对象外包裹说明文字或代码块围栏，
// 这里取第一个"{"到最后一个"}"之间的内容，找不到合法边界时返回错误
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)

	// 剥离markdown代码块围栏
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	// 查找JSON开始和结束位置
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")

	if startIdx == -1 || endIdx == -1 || startIdx >= endIdx {
		return "", fmt.Errorf("响应中未找到有效的JSON格式")
	}

	return content[startIdx : endIdx+1], nil
}
