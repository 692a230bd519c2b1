package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/schollz/progressbar/v3"
)

// =============================================================================
// 看板生成服务负载基准测试
// 对运行中的服务发射N条合成查询，统计延迟分布与成功率
// =============================================================================

// Result 单次请求的观测结果
type Result struct {
	Duration   time.Duration
	StatusCode int
	Err        error
}

// Report 汇总报告
type Report struct {
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Requests    int           `json:"requests"`
	Concurrency int           `json:"concurrency"`
	SuccessRate float64       `json:"success_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
	P50Latency  time.Duration `json:"p50_latency"`
	P95Latency  time.Duration `json:"p95_latency"`
	MaxLatency  time.Duration `json:"max_latency"`
}

// queryTemplates 合成查询的形态模板 - 覆盖不同的分类走向
var queryTemplates = []func() string{
	func() string { return fmt.Sprintf("What did I spend on %s last month?", gofakeit.ProductCategory()) },
	func() string { return fmt.Sprintf("Show the %s trend over the past year", gofakeit.Word()) },
	func() string { return fmt.Sprintf("Compare %s and %s sales", gofakeit.Company(), gofakeit.Company()) },
	func() string { return fmt.Sprintf("List the recent %s projects", gofakeit.Adjective()) },
	func() string { return gofakeit.Question() },
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8090", "服务地址")
		requests    = flag.Int("n", 50, "总请求数")
		concurrency = flag.Int("c", 5, "并发数")
		useMemory   = flag.Bool("memory", false, "是否启用个人记忆")
	)
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("🚀 开始基准测试: %s, %d个请求, 并发%d", *baseURL, *requests, *concurrency)

	bar := progressbar.NewOptions(*requests,
		progressbar.OptionSetDescription("发送查询"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)

	client := &http.Client{Timeout: 2 * time.Minute}
	jobs := make(chan int)
	results := make([]Result, *requests)
	startTime := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = fireQuery(client, *baseURL, *useMemory)
				bar.Add(1)
			}
		}()
	}

	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	report := buildReport(results, *concurrency, startTime)
	printReport(report)
}

// fireQuery 发送一条合成查询
func fireQuery(client *http.Client, baseURL string, useMemory bool) Result {
	payload := map[string]interface{}{
		"query":     queryTemplates[rand.Intn(len(queryTemplates))](),
		"useMemory": useMemory,
		"callerId":  fmt.Sprintf("bench-user-%d", rand.Intn(20)),
	}
	body, _ := json.Marshal(payload)

	startTime := time.Now()
	resp, err := client.Post(baseURL+"/api/dashboard/generate", "application/json", bytes.NewBuffer(body))
	duration := time.Since(startTime)

	if err != nil {
		return Result{Duration: duration, Err: err}
	}
	defer resp.Body.Close()

	return Result{Duration: duration, StatusCode: resp.StatusCode}
}

// buildReport 统计延迟分布
func buildReport(results []Result, concurrency int, startTime time.Time) Report {
	latencies := make([]time.Duration, 0, len(results))
	success := 0
	var total, max time.Duration

	for _, r := range results {
		latencies = append(latencies, r.Duration)
		total += r.Duration
		if r.Duration > max {
			max = r.Duration
		}
		if r.Err == nil && r.StatusCode == http.StatusOK {
			success++
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	percentile := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		idx := int(float64(len(latencies)-1) * p)
		return latencies[idx]
	}

	return Report{
		StartTime:   startTime,
		EndTime:     time.Now(),
		Requests:    len(results),
		Concurrency: concurrency,
		SuccessRate: float64(success) / float64(len(results)) * 100,
		AvgLatency:  total / time.Duration(len(results)),
		P50Latency:  percentile(0.50),
		P95Latency:  percentile(0.95),
		MaxLatency:  max,
	}
}

// printReport 输出报告
func printReport(report Report) {
	fmt.Println()
	fmt.Println("===== 基准测试报告 =====")
	fmt.Printf("请求数:   %d (并发%d)\n", report.Requests, report.Concurrency)
	fmt.Printf("成功率:   %.1f%%\n", report.SuccessRate)
	fmt.Printf("平均延迟: %v\n", report.AvgLatency)
	fmt.Printf("P50延迟:  %v\n", report.P50Latency)
	fmt.Printf("P95延迟:  %v\n", report.P95Latency)
	fmt.Printf("最大延迟: %v\n", report.MaxLatency)
	fmt.Printf("总耗时:   %v\n", report.EndTime.Sub(report.StartTime))

	if data, err := json.MarshalIndent(report, "", "  "); err == nil {
		_ = os.WriteFile("benchmark_report.json", data, 0o644)
		fmt.Println("报告已写入 benchmark_report.json")
	}
}
