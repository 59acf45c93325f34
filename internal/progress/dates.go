package progress

import (
	"fmt"
	"time"
)

// DateLayout 是日期在存储与接口中的统一格式
const DateLayout = "2006-01-02"

const hoursPerDay = 24

// DateOf 截取 t 的年月日，投影到 UTC 零点。
// 所有日期运算都基于该形式，避免夏令时和时区造成的天数偏差。
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD 格式的日期
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// daysBetween 返回 from 到 to 之间相差的整天数，to 早于 from 时为负数
func daysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / hoursPerDay)
}

// daysInclusive 返回闭区间 [start, end] 包含的天数
func daysInclusive(start, end time.Time) int {
	return daysBetween(start, end) + 1
}

// weekdayIndex 以周一为 0、周日为 6
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func quarterIndex(t time.Time) int {
	return t.Year()*4 + (int(t.Month())-1)/3
}

// MonthKey 返回 YYYY-MM 形式的月份键
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
