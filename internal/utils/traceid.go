package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"runtime"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TraceIDKey 上下文键名
const TraceIDKey = "traceId"

// goroutine级别的TraceID存储 - 标准log包没有上下文，只能按goroutine挂
var (
	traceIDMap   = make(map[uint64]string)
	traceIDMutex sync.RWMutex
)

// GenerateTraceID 生成16位十六进制TraceID
func GenerateTraceID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return fmt.Sprintf("%x", buf)
}

// currentGoroutineID 从栈帧头解析当前goroutine ID
// 栈帧格式: "goroutine 123 [running]:"
func currentGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]

	var gid uint64
	fmt.Sscanf(string(b), "goroutine %d ", &gid)
	return gid
}

// SetTraceID 绑定TraceID到当前goroutine
func SetTraceID(traceID string) {
	gid := currentGoroutineID()
	traceIDMutex.Lock()
	traceIDMap[gid] = traceID
	traceIDMutex.Unlock()
}

// GetTraceID 读取当前goroutine的TraceID，未绑定返回空串
func GetTraceID() string {
	gid := currentGoroutineID()
	traceIDMutex.RLock()
	traceID := traceIDMap[gid]
	traceIDMutex.RUnlock()
	return traceID
}

// ClearTraceID 请求结束后清理绑定，避免map无界增长
func ClearTraceID() {
	gid := currentGoroutineID()
	traceIDMutex.Lock()
	delete(traceIDMap, gid)
	traceIDMutex.Unlock()
}

// traceWriter 拦截标准log输出，把TraceID插到时间戳后面
type traceWriter struct {
	out       io.Writer
	timeRegex *regexp.Regexp
}

func newTraceWriter(out io.Writer) *traceWriter {
	return &traceWriter{
		out: out,
		// Go标准log时间戳格式：2026/08/23 11:24:30
		timeRegex: regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})\s`),
	}
}

func (w *traceWriter) Write(p []byte) (int, error) {
	line := string(p)

	if traceID := GetTraceID(); traceID != "" && w.timeRegex.MatchString(line) {
		line = w.timeRegex.ReplaceAllString(line, fmt.Sprintf("$1 【%s】", traceID))
	}

	return w.out.Write([]byte(line))
}

// TraceIDHook logrus钩子，给每条结构化日志附加TraceID字段
type TraceIDHook struct{}

func (hook *TraceIDHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *TraceIDHook) Fire(entry *logrus.Entry) error {
	if traceID := GetTraceID(); traceID != "" {
		entry.Data[TraceIDKey] = traceID
	}
	return nil
}

// InitTraceIDSystem 初始化TraceID日志系统 - 标准log与logrus双路输出
func InitTraceIDSystem() {
	writer := newTraceWriter(os.Stdout)

	log.SetOutput(writer)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
		DisableColors:   true,
	})
	logrus.AddHook(&TraceIDHook{})
	logrus.SetOutput(writer)

	log.Printf("TraceID系统初始化完成")
}

// TraceIDMiddleware gin中间件 - 透传或生成TraceID并回写响应头
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}

		SetTraceID(traceID)
		c.Set(TraceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()

		ClearTraceID()
	}
}

// GetTraceIDFromContext 从标准context读取TraceID
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithTraceID 把TraceID写入标准context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}
