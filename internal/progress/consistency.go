package progress

import (
	"math"
	"time"
)

// Habit 是引擎使用的习惯记录
type Habit struct {
	ID      string
	Name    string
	GoalIDs []string
	Rule    Rule
	Active  bool
	// Year 是习惯创建的年份，早于该年份的统计周期不包含此习惯
	Year int
}

// Consistency 汇总习惯在目标周期内的完成情况
type Consistency struct {
	ConsistencyPct int
	Completed      int
	Skipped        int
	Missed         int
	Expected       int
	CurrentStreak  int
	LongestStreak  int
}

// ComputeConsistency 在 [goal.StartDate, min(now, goal.EndDate)] 内统计习惯完成率与连续天数。
// goal 为空（习惯未关联目标）、目标日期缺失或尚未开始时返回零值结果。
func ComputeConsistency(habit Habit, entries []LogEntry, goal *Goal, now time.Time) (Consistency, error) {
	if err := ValidateRule(habit.Rule); err != nil {
		return Consistency{}, err
	}
	if goal == nil || goal.StartDate.IsZero() || goal.EndDate.IsZero() {
		return Consistency{}, nil
	}

	start := DateOf(goal.StartDate)
	end := DateOf(goal.EndDate)
	effectiveEnd := minDate(DateOf(now), end)
	if end.Before(start) || effectiveEnd.Before(start) {
		return Consistency{}, nil
	}

	expected, err := ExpectedOccurrences(habit.Rule, start, effectiveEnd)
	if err != nil {
		return Consistency{}, err
	}

	idx := indexLogs(entriesForHabit(entries, habit.ID))

	var result Consistency
	result.Expected = expected
	for day, entry := range idx {
		if day.Before(start) || day.After(effectiveEnd) {
			continue
		}
		switch entry.Status {
		case StatusDone:
			result.Completed++
		case StatusSkipped:
			result.Skipped++
		}
	}

	result.Missed = max(0, expected-(result.Completed+result.Skipped))
	result.ConsistencyPct = percentOf(float64(result.Completed), float64(expected))
	result.CurrentStreak = currentStreak(habit.Rule, idx, start, effectiveEnd, DateOf(now))
	result.LongestStreak = longestStreak(habit.Rule, idx, start, effectiveEnd)

	return result, nil
}

// entriesForHabit 过滤掉属于其他习惯的记录；habitID 为空时不过滤
func entriesForHabit(entries []LogEntry, habitID string) []LogEntry {
	if habitID == "" {
		return entries
	}
	filtered := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.HabitID == "" || entry.HabitID == habitID {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// percentOf 返回 round(100*part/whole)，上限 100；whole 不大于 0 时为 0
func percentOf(part, whole float64) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	return min(100, int(math.Round(100*part/whole)))
}
