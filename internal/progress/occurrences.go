package progress

import (
	"fmt"
	"time"
)

const (
	daysPerWeekWindow  = 7
	daysPerMonthWindow = 30
)

// ExpectedOccurrences 统计闭区间 [start, end] 内应完成的次数。
//
// WeeklyCount 与 MonthlyCount 采用整段区间天数整除 7 / 30 的粗略估算，
// 而不是按自然周、自然月重新计数，完成率的分母保持简单稳定。
func ExpectedOccurrences(r Rule, start, end time.Time) (int, error) {
	if err := ValidateRule(r); err != nil {
		return 0, err
	}
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return 0, fmt.Errorf("%w: start %s after end %s", ErrInvalidRange, start.Format(DateLayout), end.Format(DateLayout))
	}

	days := daysInclusive(start, end)

	switch rule := r.(type) {
	case WeeklyCount:
		return days / daysPerWeekWindow * rule.DaysPerWeek, nil
	case MonthlyCount:
		return days / daysPerMonthWindow * rule.TimesPerMonth, nil
	case SpecificWeekdays:
		return countWeekdays(rule.Days, start, days), nil
	case MonthlyDates:
		return countMonthDates(rule.Dates, start, end), nil
	default:
		return days, nil
	}
}

// ScheduledDays 逐日统计区间内规则判定为需要打卡的天数，
// 对 WeeklyCount / MonthlyCount 即区间总天数。
func ScheduledDays(r Rule, start, end time.Time) (int, error) {
	if err := ValidateRule(r); err != nil {
		return 0, err
	}
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return 0, fmt.Errorf("%w: start %s after end %s", ErrInvalidRange, start.Format(DateLayout), end.Format(DateLayout))
	}

	switch rule := r.(type) {
	case SpecificWeekdays:
		return countWeekdays(rule.Days, start, daysInclusive(start, end)), nil
	case MonthlyDates:
		return countMonthDates(rule.Dates, start, end), nil
	default:
		return daysInclusive(start, end), nil
	}
}

func countWeekdays(days []int, start time.Time, total int) int {
	var selected [7]bool
	perWeek := 0
	for _, day := range days {
		if !selected[day] {
			selected[day] = true
			perWeek++
		}
	}

	count := total / daysPerWeekWindow * perWeek
	first := weekdayIndex(start)
	for i := 0; i < total%daysPerWeekWindow; i++ {
		if selected[(first+i)%daysPerWeekWindow] {
			count++
		}
	}
	return count
}

func countMonthDates(dates []int, start, end time.Time) int {
	var selected [32]bool
	for _, date := range dates {
		selected[date] = true
	}

	count := 0
	for cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !cursor.After(end); cursor = cursor.AddDate(0, 1, 0) {
		year, month := cursor.Year(), cursor.Month()
		first, last := 1, daysInMonth(year, month)
		if year == start.Year() && month == start.Month() {
			first = start.Day()
		}
		if year == end.Year() && month == end.Month() {
			last = end.Day()
		}
		for day := first; day <= last; day++ {
			if selected[day] {
				count++
			}
		}
	}
	return count
}
