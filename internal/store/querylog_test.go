package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dashweaver/service/internal/models"
)

func TestFileQueryLog(t *testing.T) {
	t.Run("记录异步落盘", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit", "query_log.jsonl")

		ql, err := NewFileQueryLog(path)
		if err != nil {
			t.Fatalf("初始化失败: %v", err)
		}

		ql.Log(models.AuditRecord{ID: "r1", UserID: "u1", Query: "q1", ResponseType: "table", Timestamp: time.Now()})
		ql.Log(models.AuditRecord{ID: "r2", UserID: "u2", Query: "q2", ResponseType: "pie_chart", Timestamp: time.Now()})

		// Close等待后台协程写完已入队的记录
		ql.Close()

		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("打开日志文件失败: %v", err)
		}
		defer f.Close()

		var records []models.AuditRecord
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var record models.AuditRecord
			if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
				t.Fatalf("JSON行解析失败: %v", err)
			}
			records = append(records, record)
		}

		if len(records) != 2 {
			t.Fatalf("期望2条记录, 实际%d", len(records))
		}
		if records[0].ID != "r1" || records[1].ID != "r2" {
			t.Errorf("记录顺序错误: %+v", records)
		}
		t.Logf("✅ 异步落盘正常")
	})

	t.Run("重复Close不恐慌", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "query_log.jsonl")
		ql, err := NewFileQueryLog(path)
		if err != nil {
			t.Fatalf("初始化失败: %v", err)
		}

		ql.Close()
		ql.Close()
		t.Logf("✅ 幂等Close正常")
	})

	t.Run("目录不可创建时返回错误", func(t *testing.T) {
		// 以文件占住父路径，使MkdirAll失败
		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
			t.Fatalf("准备失败: %v", err)
		}

		if _, err := NewFileQueryLog(filepath.Join(blocker, "sub", "log.jsonl")); err == nil {
			t.Fatal("期望错误，实际成功")
		}
		t.Logf("✅ 初始化错误路径正常")
	})
}
