package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/dashweaver/service/internal/models"
)

// =============================================================================
// 查询日志存储 - 尽力而为的审计落盘
// 写入走异步通道，调用方绝不因日志失败而阻塞或报错
// =============================================================================

// FileQueryLog 以JSON Lines格式追加审计记录的文件日志
type FileQueryLog struct {
	path    string
	records chan models.AuditRecord
	done    chan struct{}
	once    sync.Once
}

// NewFileQueryLog 创建文件查询日志并启动后台写入协程
func NewFileQueryLog(path string) (*FileQueryLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	ql := &FileQueryLog{
		path:    path,
		records: make(chan models.AuditRecord, 256),
		done:    make(chan struct{}),
	}

	go ql.writeLoop()

	log.Printf("[查询日志] 初始化完成, 路径: %s", path)
	return ql, nil
}

// Log 投递一条审计记录 - 队列满时直接丢弃并记日志，绝不阻塞请求
func (ql *FileQueryLog) Log(record models.AuditRecord) {
	select {
	case ql.records <- record:
	default:
		log.Printf("⚠️ [查询日志] 队列已满，丢弃审计记录: %s", record.ID)
	}
}

// Close 停止接收新记录并等待后台协程把已入队的记录写完
func (ql *FileQueryLog) Close() {
	ql.once.Do(func() {
		close(ql.records)
		<-ql.done
	})
}

// writeLoop 后台写入循环 - 单协程串行追加，无需文件锁
func (ql *FileQueryLog) writeLoop() {
	defer close(ql.done)

	for record := range ql.records {
		if err := ql.append(record); err != nil {
			log.Printf("⚠️ [查询日志] 写入失败（已忽略）: %v", err)
		}
	}
}

// append 追加一行JSON记录
func (ql *FileQueryLog) append(record models.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(ql.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}
