package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServiceName != "dash-weaver" {
		t.Errorf("默认服务名错误: %s", cfg.ServiceName)
	}
	if cfg.Port != 8090 {
		t.Errorf("默认端口错误: %d", cfg.Port)
	}
	if cfg.PrimaryProvider != "openai" {
		t.Errorf("默认主后端错误: %s", cfg.PrimaryProvider)
	}
	if cfg.MemoryTopK != 5 {
		t.Errorf("默认TopK错误: %d", cfg.MemoryTopK)
	}
	if cfg.SimilarityThreshold != 0.3 {
		t.Errorf("默认相似度阈值错误: %v", cfg.SimilarityThreshold)
	}
	if cfg.BranchTimeout != 25*time.Second {
		t.Errorf("默认分支超时错误: %v", cfg.BranchTimeout)
	}
	if !cfg.EnableMemory {
		t.Error("记忆功能默认应开启")
	}
	t.Logf("✅ 默认配置正常")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PRIMARY_PROVIDER", "gemini")
	t.Setenv("BRANCH_TIMEOUT", "10s")
	t.Setenv("ENABLE_MEMORY", "false")
	t.Setenv("SIMILARITY_THRESHOLD", "0.55")

	cfg := Load()

	if cfg.Port != 9000 {
		t.Errorf("端口覆盖失败: %d", cfg.Port)
	}
	if cfg.PrimaryProvider != "gemini" {
		t.Errorf("主后端覆盖失败: %s", cfg.PrimaryProvider)
	}
	if cfg.BranchTimeout != 10*time.Second {
		t.Errorf("分支超时覆盖失败: %v", cfg.BranchTimeout)
	}
	if cfg.EnableMemory {
		t.Error("记忆开关覆盖失败")
	}
	if cfg.SimilarityThreshold != 0.55 {
		t.Errorf("阈值覆盖失败: %v", cfg.SimilarityThreshold)
	}
	t.Logf("✅ 环境变量覆盖正常")
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("BRANCH_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Port != 8090 {
		t.Errorf("非法端口应回退默认值: %d", cfg.Port)
	}
	if cfg.BranchTimeout != 25*time.Second {
		t.Errorf("非法超时应回退默认值: %v", cfg.BranchTimeout)
	}
	t.Logf("✅ 非法值回退正常")
}

func TestStringMasksSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-verysecretapikey12345")

	cfg := Load()
	out := cfg.String()

	if strings.Contains(out, "verysecretapikey") {
		t.Errorf("配置输出泄露密钥: %s", out)
	}
	if !strings.Contains(out, "sk-v") {
		t.Errorf("掩码应保留前4位便于核对: %s", out)
	}
	t.Logf("✅ 密钥掩码正常")
}
