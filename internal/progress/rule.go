// Package progress 是目标与习惯的进度计算引擎：
// 判断某日是否需要打卡、统计区间应完成次数、计算连续天数与完成率，
// 以及按当前日期推算年度目标是否跟上进度。
//
// 包内函数均为纯函数，不读取系统时钟，不修改入参，也不保留跨调用的状态，
// 调用方需要显式传入 now。
package progress

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrConfiguration 在频率规则未知或参数非法时返回
	ErrConfiguration = errors.New("invalid frequency rule")
	// ErrInvalidRange 在区间起点晚于终点时返回
	ErrInvalidRange = errors.New("invalid date range")
)

// RuleKind 是频率规则的判别值，与存储层中的 frequency_unit 对应
type RuleKind string

const (
	KindDaily            RuleKind = "daily"
	KindWeeklyCount      RuleKind = "weekly"
	KindSpecificWeekdays RuleKind = "specific_days"
	KindMonthlyCount     RuleKind = "monthly"
	KindMonthlyDates     RuleKind = "monthly_dates"
)

// Rule 是习惯的频率规则。仅本包内的五种类型实现该接口。
type Rule interface {
	Kind() RuleKind
	rule()
}

// Daily 每天都需要打卡
type Daily struct{}

// WeeklyCount 每 7 天中任意 DaysPerWeek 天。单日判断时视为每天都可打卡，
// 只影响区间应完成次数。
type WeeklyCount struct {
	DaysPerWeek int
}

// SpecificWeekdays 仅在指定星期打卡，0 表示周一，6 表示周日
type SpecificWeekdays struct {
	Days []int
}

// MonthlyCount 每个自然月 TimesPerMonth 次，单日判断同 WeeklyCount
type MonthlyCount struct {
	TimesPerMonth int
}

// MonthlyDates 仅在每月指定日期打卡，取值 1..31
type MonthlyDates struct {
	Dates []int
}

func (Daily) Kind() RuleKind            { return KindDaily }
func (WeeklyCount) Kind() RuleKind      { return KindWeeklyCount }
func (SpecificWeekdays) Kind() RuleKind { return KindSpecificWeekdays }
func (MonthlyCount) Kind() RuleKind     { return KindMonthlyCount }
func (MonthlyDates) Kind() RuleKind     { return KindMonthlyDates }

func (Daily) rule()            {}
func (WeeklyCount) rule()      {}
func (SpecificWeekdays) rule() {}
func (MonthlyCount) rule()     {}
func (MonthlyDates) rule()     {}

// ValidateRule 检查规则类型与参数范围
func ValidateRule(r Rule) error {
	switch rule := r.(type) {
	case Daily:
		return nil
	case WeeklyCount:
		if rule.DaysPerWeek < 1 || rule.DaysPerWeek > 7 {
			return fmt.Errorf("%w: days per week must be 1..7, got %d", ErrConfiguration, rule.DaysPerWeek)
		}
		return nil
	case SpecificWeekdays:
		if len(rule.Days) == 0 {
			return fmt.Errorf("%w: no weekdays selected", ErrConfiguration)
		}
		for _, day := range rule.Days {
			if day < 0 || day > 6 {
				return fmt.Errorf("%w: weekday index must be 0..6, got %d", ErrConfiguration, day)
			}
		}
		return nil
	case MonthlyCount:
		if rule.TimesPerMonth < 1 || rule.TimesPerMonth > 31 {
			return fmt.Errorf("%w: times per month must be 1..31, got %d", ErrConfiguration, rule.TimesPerMonth)
		}
		return nil
	case MonthlyDates:
		if len(rule.Dates) == 0 {
			return fmt.Errorf("%w: no month dates selected", ErrConfiguration)
		}
		for _, date := range rule.Dates {
			if date < 1 || date > 31 {
				return fmt.Errorf("%w: day of month must be 1..31, got %d", ErrConfiguration, date)
			}
		}
		return nil
	case nil:
		return fmt.Errorf("%w: rule is nil", ErrConfiguration)
	default:
		return fmt.Errorf("%w: unsupported rule %T", ErrConfiguration, r)
	}
}

// IsScheduled 判断规则在 date 当天是否需要打卡
func IsScheduled(r Rule, date time.Time) (bool, error) {
	if err := ValidateRule(r); err != nil {
		return false, err
	}
	return scheduled(r, DateOf(date)), nil
}

// scheduled 假定规则已通过校验
func scheduled(r Rule, date time.Time) bool {
	switch rule := r.(type) {
	case SpecificWeekdays:
		return slices.Contains(rule.Days, weekdayIndex(date))
	case MonthlyDates:
		return slices.Contains(rule.Dates, date.Day())
	default:
		// Daily、WeeklyCount、MonthlyCount 每天都可打卡
		return true
	}
}
