package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	// 服务配置
	ServiceName string
	Port        int
	Debug       bool
	GinMode     string // Gin运行模式

	// 主生成后端 - 分类器与汇总器使用（单点调用，失败即请求失败）
	PrimaryProvider string // openai / gemini / perplexity

	// OpenAI配置（broad_knowledge通道）
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Gemini配置（auxiliary通道）
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// Perplexity配置（research_current通道，带引用）
	PerplexityAPIKey  string
	PerplexityBaseURL string
	PerplexityModel   string

	// LLM调用通用配置
	LLMTimeout   time.Duration // 单次LLM调用超时
	LLMRateLimit int           // 每分钟请求数上限
	MaxTokens    int           // 默认token上限

	// 个人记忆存储配置（外部协作方，只消费其查询契约）
	MemoryStoreURL      string
	MemoryStoreAPIKey   string
	MemoryTopK          int
	SimilarityThreshold float64
	EnableMemory        bool // 记忆功能总开关

	// 并发分支配置
	BranchTimeout time.Duration // 每个扇出分支的硬超时，超时视为分支失败

	// 查询日志配置（尽力而为，失败不影响请求）
	QueryLogPath string
}

// Load 从环境变量加载配置
func Load() *Config {
	// 尝试加载.env文件，优先尝试新的目录结构，然后兼容原来的结构
	envPaths := []string{
		"config/.env",
		".env",
	}

	loaded := false
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				log.Printf("成功加载.env文件: %s", path)
				loaded = true
				break
			}
		}
	}

	if !loaded {
		log.Printf("警告: 未找到.env文件，尝试使用系统环境变量")
	}

	config := &Config{
		// 服务配置默认值
		ServiceName: getEnv("SERVICE_NAME", "dash-weaver"),
		Port:        getEnvAsInt("PORT", 8090),
		Debug:       getEnvAsBool("DEBUG", false),
		GinMode:     getEnv("GIN_MODE", "release"),

		// 主生成后端
		PrimaryProvider: getEnv("PRIMARY_PROVIDER", "openai"),

		// OpenAI
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		// Gemini
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		// Perplexity
		PerplexityAPIKey:  getEnv("PERPLEXITY_API_KEY", ""),
		PerplexityBaseURL: getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
		PerplexityModel:   getEnv("PERPLEXITY_MODEL", "sonar"),

		// LLM通用配置
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		LLMRateLimit: getEnvAsInt("LLM_RATE_LIMIT", 60),
		MaxTokens:    getEnvAsInt("LLM_MAX_TOKENS", 4000),

		// 记忆存储
		MemoryStoreURL:      getEnv("MEMORY_STORE_URL", ""),
		MemoryStoreAPIKey:   getEnv("MEMORY_STORE_API_KEY", ""),
		MemoryTopK:          getEnvAsInt("MEMORY_TOP_K", 5),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.3),
		EnableMemory:        getEnvAsBool("ENABLE_MEMORY", true),

		// 分支超时 - 原始行为缺失显式超时，这里作为加固补上
		BranchTimeout: getEnvAsDuration("BRANCH_TIMEOUT", 25*time.Second),

		// 查询日志
		QueryLogPath: getEnv("QUERY_LOG_PATH", "./data/query_log.jsonl"),
	}

	return config
}

// String 返回配置的字符串表示（密钥做掩码处理）
func (c *Config) String() string {
	return fmt.Sprintf(
		"服务名称: %s, 端口: %d, 调试模式: %v, 主后端: %s, "+
			"OpenAI: %s, Gemini: %s, Perplexity: %s, "+
			"记忆存储: %s, TopK: %d, 相似度阈值: %.2f, 记忆开关: %v, 分支超时: %v",
		c.ServiceName, c.Port, c.Debug, c.PrimaryProvider,
		maskString(c.OpenAIAPIKey), maskString(c.GeminiAPIKey), maskString(c.PerplexityAPIKey),
		maskString(c.MemoryStoreURL), c.MemoryTopK, c.SimilarityThreshold, c.EnableMemory, c.BranchTimeout,
	)
}

// 从环境变量获取字符串值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// 从环境变量获取整数值
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取布尔值
func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取浮点值
func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取时间值
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 掩码字符串，用于日志输出安全
func maskString(input string) string {
	if len(input) <= 8 {
		return "***"
	}
	return input[:4] + "..." + input[len(input)-4:]
}
