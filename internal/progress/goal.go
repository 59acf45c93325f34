package progress

import (
	"math"
	"time"
)

// Goal 是引擎使用的年度目标记录。StartDate/EndDate 为零值表示未设置。
type Goal struct {
	ID             string
	Title          string
	YearlyTarget   float64
	ActualProgress float64
	Unit           string
	StartDate      time.Time
	EndDate        time.Time
	// MonthlyTargets 按 YYYY-MM 拆分的月度目标，可为空
	MonthlyTargets map[string]float64
	// MonthlyActuals 按 YYYY-MM 记录的月度实际完成量，可为空
	MonthlyActuals map[string]float64
}

// MonthProgress 是目标周期内某个自然月的拆分
type MonthProgress struct {
	Month  string
	Target float64
	Actual float64
	Pct    int
}

// GoalProgress 是目标在 now 时刻的进度推算结果
type GoalProgress struct {
	YearlyProgressPct      int
	QuarterlyProgressPct   int
	MonthlyProgressPct     int
	OnTrack                bool
	ExpectedByNow          float64
	Remaining              float64
	DaysPassed             int
	DaysRemaining          int
	TotalDays              int
	ProjectedCompletionPct int
	DailyRate              float64
	Months                 []MonthProgress
}

// ProjectGoal 按目标实际跨度线性推算 now 时应完成的量并判断是否跟上进度。
// 日期缺失或起止颠倒时返回零值结果（OnTrack 为 false），
// 供编辑中尚未填好日期的目标直接展示。
//
// 季度、月度进度按自 StartDate 起经过的自然季度/月份（含当前）计算累计应完成量，
// 展示用百分比上限为 100；ProjectedCompletionPct 不设上限，超过 100 表示超前。
func ProjectGoal(goal Goal, now time.Time) GoalProgress {
	if goal.StartDate.IsZero() || goal.EndDate.IsZero() {
		return GoalProgress{}
	}

	start := DateOf(goal.StartDate)
	end := DateOf(goal.EndDate)
	today := DateOf(now)
	if end.Before(start) {
		return GoalProgress{}
	}

	target := goal.YearlyTarget
	actual := goal.ActualProgress

	var result GoalProgress
	result.TotalDays = max(1, daysInclusive(start, end))
	if !today.Before(start) {
		result.DaysPassed = min(result.TotalDays, daysBetween(start, today)+1)
	}
	result.DaysRemaining = max(0, daysBetween(today, end))

	result.ExpectedByNow = target * float64(result.DaysPassed) / float64(result.TotalDays)
	result.OnTrack = actual >= result.ExpectedByNow
	result.Remaining = math.Max(0, target-actual)

	result.YearlyProgressPct = percentOf(actual, target)
	result.QuarterlyProgressPct = percentOf(actual, cumulativeQuarterTarget(target, start, end, today))
	result.MonthlyProgressPct = percentOf(actual, cumulativeMonthTarget(goal, start, end, today))

	if result.DaysPassed > 0 {
		result.DailyRate = actual / float64(result.DaysPassed)
	}
	if target > 0 {
		result.ProjectedCompletionPct = int(math.Round(100 * result.DailyRate * float64(result.TotalDays) / target))
	}

	result.Months = monthBreakdown(goal, start, end)
	return result
}

// elapsedPeriods 返回 start 到 today 经过的周期数（含当前周期），限制在目标跨度内
func elapsedPeriods(startIdx, endIdx, todayIdx int, started bool) int {
	if !started {
		return 0
	}
	return min(endIdx, todayIdx) - startIdx + 1
}

func cumulativeQuarterTarget(target float64, start, end, today time.Time) float64 {
	total := quarterIndex(end) - quarterIndex(start) + 1
	elapsed := elapsedPeriods(quarterIndex(start), quarterIndex(end), quarterIndex(today), !today.Before(start))
	return target * float64(elapsed) / float64(total)
}

func cumulativeMonthTarget(goal Goal, start, end, today time.Time) float64 {
	elapsed := elapsedPeriods(monthIndex(start), monthIndex(end), monthIndex(today), !today.Before(start))
	if len(goal.MonthlyTargets) == 0 {
		total := monthIndex(end) - monthIndex(start) + 1
		return goal.YearlyTarget * float64(elapsed) / float64(total)
	}

	sum := 0.0
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < elapsed; i++ {
		sum += monthTarget(goal, start, end, MonthKey(cursor))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return sum
}

// monthTarget 优先使用月度拆分，缺失的月份按总目标平均分配
func monthTarget(goal Goal, start, end time.Time, key string) float64 {
	if value, ok := goal.MonthlyTargets[key]; ok {
		return value
	}
	total := monthIndex(end) - monthIndex(start) + 1
	return goal.YearlyTarget / float64(total)
}

func monthBreakdown(goal Goal, start, end time.Time) []MonthProgress {
	total := monthIndex(end) - monthIndex(start) + 1
	months := make([]MonthProgress, 0, total)

	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < total; i++ {
		key := MonthKey(cursor)
		item := MonthProgress{
			Month:  key,
			Target: monthTarget(goal, start, end, key),
			Actual: goal.MonthlyActuals[key],
		}
		item.Pct = percentOf(item.Actual, item.Target)
		months = append(months, item)
		cursor = cursor.AddDate(0, 1, 0)
	}
	return months
}
