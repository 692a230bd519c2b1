package pipeline

import (
	"strings"
	"testing"

	"github.com/dashweaver/service/internal/models"
)

func validPieDraft() *models.DashboardDocument {
	return &models.DashboardDocument{
		Type:  models.OutputTypePieChart,
		Title: "Monthly Spending Breakdown",
		Data: []models.DataPoint{
			{Label: "Food", Value: float64Ptr(420.5)},
			{Label: "Transport", Value: float64Ptr(130)},
		},
	}
}

func TestValidator(t *testing.T) {
	validator := NewValidator(NewDefaultTypeRegistry())
	classification := &models.ClassificationResult{OutputType: models.OutputTypePieChart}

	t.Run("合法文档通过校验", func(t *testing.T) {
		result := validator.Validate(validPieDraft(), classification)
		if !result.IsValid {
			t.Fatalf("期望通过, 错误: %v", result.Errors)
		}
		if result.CorrectedOutput != nil {
			t.Error("合法文档不应产生修正候选")
		}
		t.Logf("✅ 合法文档校验通过")
	})

	t.Run("空标题是错误且可修正", func(t *testing.T) {
		draft := validPieDraft()
		draft.Title = ""

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("期望校验失败")
		}
		if result.CorrectedOutput == nil {
			t.Fatal("期望产生修正候选")
		}
		if result.CorrectedOutput.Title != "Pie Chart" {
			t.Errorf("期望用类型名合成标题, 实际: %q", result.CorrectedOutput.Title)
		}
		// 原始错误列表必须保留
		if len(result.Errors) == 0 {
			t.Error("原始错误列表不应被清空")
		}
		// 原始草稿不能被修改
		if draft.Title != "" {
			t.Error("修正必须在副本上进行")
		}
		t.Logf("✅ 标题合成修正正常")
	})

	t.Run("饼图数据点缺标签可修正为序号", func(t *testing.T) {
		draft := validPieDraft()
		draft.Data[1].Label = ""

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("期望校验失败")
		}
		if result.CorrectedOutput == nil {
			t.Fatal("期望产生修正候选")
		}
		if result.CorrectedOutput.Data[1].Label != "Item 2" {
			t.Errorf("期望序号标签Item 2, 实际: %q", result.CorrectedOutput.Data[1].Label)
		}
		t.Logf("✅ 序号标签修正正常")
	})

	t.Run("饼图数据点缺数值无法修正", func(t *testing.T) {
		draft := validPieDraft()
		draft.Data[0].Value = nil

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("期望校验失败")
		}
		if result.CorrectedOutput != nil {
			// 修正清单不含数值合成，候选重校验必然仍失败
			recheck := validator.Validate(result.CorrectedOutput, classification)
			if recheck.IsValid {
				t.Error("缺失数值不在修正清单内，候选不应通过")
			}
		}
		t.Logf("✅ 数值缺失拒绝正常")
	})

	t.Run("空数据是错误", func(t *testing.T) {
		draft := validPieDraft()
		draft.Data = nil

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("期望校验失败")
		}
		t.Logf("✅ 空数据检查正常")
	})

	t.Run("数据点超过100个是错误", func(t *testing.T) {
		draft := validPieDraft()
		draft.Data = make([]models.DataPoint, 101)
		for i := range draft.Data {
			draft.Data[i] = models.DataPoint{Label: "x", Value: float64Ptr(1)}
		}

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("期望校验失败")
		}
		t.Logf("✅ 数据点上限检查正常")
	})

	t.Run("类型不一致只是警告", func(t *testing.T) {
		draft := validPieDraft()
		draft.Type = models.OutputTypeBarChart

		result := validator.Validate(draft, &models.ClassificationResult{OutputType: models.OutputTypeDashboard})
		if !result.IsValid {
			t.Fatalf("类型不一致不应阻断: %v", result.Errors)
		}
		if len(result.Warnings) == 0 {
			t.Error("期望产生类型不一致警告")
		}
		t.Logf("✅ 类型一致性降级为警告正常")
	})

	t.Run("未知类型不可渲染", func(t *testing.T) {
		draft := validPieDraft()
		draft.Type = "hologram"

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("白名单外类型必须是错误")
		}
		t.Logf("✅ 可渲染白名单检查正常")
	})

	t.Run("仪表盘配置边界检查", func(t *testing.T) {
		draft := &models.DashboardDocument{
			Type:  models.OutputTypeGauge,
			Title: "CPU Usage",
			Data:  []models.DataPoint{{Value: float64Ptr(72)}},
			Config: &models.ChartConfig{
				Min:    float64Ptr(0),
				Max:    float64Ptr(100),
				Target: float64Ptr(150), // 超出[min,max]
			},
		}

		result := validator.Validate(draft, &models.ClassificationResult{OutputType: models.OutputTypeGauge})
		if result.IsValid {
			t.Fatal("目标值越界必须是错误")
		}
		t.Logf("✅ 仪表盘配置检查正常")
	})

	t.Run("引用URL必须是绝对地址", func(t *testing.T) {
		draft := validPieDraft()
		draft.Citations = []models.Citation{{Title: "Report", URL: "not-a-url"}}

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("非法URL必须是错误")
		}
		t.Logf("✅ 引用完整性检查正常")
	})

	t.Run("重复路由只是警告", func(t *testing.T) {
		draft := validPieDraft()
		draft.Sublinks = []models.Sublink{
			{Label: "Details", Route: "/details"},
			{Label: "More", Route: "/details"},
		}

		result := validator.Validate(draft, classification)
		if !result.IsValid {
			t.Fatalf("重复路由不应阻断: %v", result.Errors)
		}
		if len(result.Warnings) == 0 {
			t.Error("期望产生重复路由警告")
		}
		t.Logf("✅ 重复路由警告正常")
	})
}

func TestSublinkRouteCorrection(t *testing.T) {
	validator := NewValidator(NewDefaultTypeRegistry())
	classification := &models.ClassificationResult{OutputType: models.OutputTypePieChart}

	t.Run("缺少斜杠前缀的路由被修正", func(t *testing.T) {
		draft := validPieDraft()
		draft.Sublinks = []models.Sublink{{Label: "Drill down", Route: "dashboard/x"}}

		result := validator.Validate(draft, classification)
		if result.IsValid {
			t.Fatal("缺前缀路由必须先记为错误")
		}
		if result.CorrectedOutput == nil {
			t.Fatal("期望产生修正候选")
		}
		if result.CorrectedOutput.Sublinks[0].Route != "/dashboard/x" {
			t.Errorf("期望/dashboard/x, 实际: %q", result.CorrectedOutput.Sublinks[0].Route)
		}

		// 修正候选必须能通过重校验
		recheck := validator.Validate(result.CorrectedOutput, classification)
		if !recheck.IsValid {
			t.Errorf("修正候选应通过重校验: %v", recheck.Errors)
		}
		t.Logf("✅ 路由前缀修正正常")
	})

	t.Run("路由归一化幂等", func(t *testing.T) {
		cases := []struct{ in, want string }{
			{"dashboard/x", "/dashboard/x"},
			{"/dashboard/x", "/dashboard/x"},
			{"//dashboard/x", "/dashboard/x"},
		}
		for _, c := range cases {
			got := NormalizeRoute(c.in)
			if got != c.want {
				t.Errorf("NormalizeRoute(%q) = %q, 期望 %q", c.in, got, c.want)
			}
			if again := NormalizeRoute(got); again != got {
				t.Errorf("归一化不幂等: %q → %q", got, again)
			}
		}
		t.Logf("✅ 路由归一化幂等")
	})
}

func TestAutoCorrectionIdempotent(t *testing.T) {
	validator := NewValidator(NewDefaultTypeRegistry())
	classification := &models.ClassificationResult{OutputType: models.OutputTypeBarChart}

	draft := &models.DashboardDocument{
		Type:  models.OutputTypeBarChart,
		Title: "",
		Data: []models.DataPoint{
			{Value: float64Ptr(10)},
			{Value: float64Ptr(20)},
		},
		Sublinks: []models.Sublink{{Label: "More", Route: "more/info"}},
	}

	first := validator.Validate(draft, classification)
	if first.IsValid || first.CorrectedOutput == nil {
		t.Fatalf("期望失败并产生修正候选: valid=%v", first.IsValid)
	}

	// 幂等性：对修正候选再校验，清单内已修的缺陷不再复现
	second := validator.Validate(first.CorrectedOutput, classification)
	if !second.IsValid {
		t.Fatalf("修正候选重校验应通过: %v", second.Errors)
	}
	if second.CorrectedOutput != nil {
		t.Error("通过的候选不应再产生修正")
	}

	if !strings.HasPrefix(first.CorrectedOutput.Sublinks[0].Route, "/") {
		t.Error("路由前缀未修正")
	}
	if first.CorrectedOutput.Config == nil || first.CorrectedOutput.Config.Responsive == nil || !*first.CorrectedOutput.Config.Responsive {
		t.Error("默认responsive=true配置未注入")
	}
	t.Logf("✅ 自动修正幂等性验证通过")
}
