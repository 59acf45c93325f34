package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
)

// RuleFromFrequency 将存储层的判别值与参数还原为频率规则
func RuleFromFrequency(unit string, count int, days []int) (progress.Rule, error) {
	var rule progress.Rule

	switch progress.RuleKind(strings.ToLower(strings.TrimSpace(unit))) {
	case progress.KindDaily:
		rule = progress.Daily{}
	case progress.KindWeeklyCount:
		rule = progress.WeeklyCount{DaysPerWeek: count}
	case progress.KindSpecificWeekdays:
		rule = progress.SpecificWeekdays{Days: normalizeDays(days)}
	case progress.KindMonthlyCount:
		rule = progress.MonthlyCount{TimesPerMonth: count}
	case progress.KindMonthlyDates:
		rule = progress.MonthlyDates{Dates: normalizeDays(days)}
	default:
		return nil, fmt.Errorf("%w: unsupported unit %q", progress.ErrConfiguration, unit)
	}

	if err := progress.ValidateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// HabitRule 读取习惯的频率规则
func HabitRule(habit db.Habit) (progress.Rule, error) {
	return RuleFromFrequency(habit.FrequencyUnit, habit.FrequencyCount, habit.FrequencyDays)
}

func normalizeDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	sorted := slices.Clone(days)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}
