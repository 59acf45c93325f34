package progress

import (
	"slices"
	"time"
)

// LogStatus 打卡状态
type LogStatus string

const (
	StatusDone    LogStatus = "done"
	StatusSkipped LogStatus = "skipped"
)

// LogEntry 是一次打卡记录，Date 只取年月日
type LogEntry struct {
	ID       string
	HabitID  string
	Date     time.Time
	Status   LogStatus
	LoggedAt time.Time
}

// logIndex 按日期保存去重后的打卡记录
type logIndex map[time.Time]LogEntry

// indexLogs 对同一天的多条记录取 LoggedAt 最新的一条，
// LoggedAt 相同时取切片中靠后的一条。
func indexLogs(entries []LogEntry) logIndex {
	index := make(logIndex, len(entries))
	for _, entry := range entries {
		day := DateOf(entry.Date)
		if day.IsZero() {
			continue
		}
		if existing, ok := index[day]; ok && existing.LoggedAt.After(entry.LoggedAt) {
			continue
		}
		entry.Date = day
		index[day] = entry
	}
	return index
}

func (idx logIndex) done(day time.Time) bool {
	entry, ok := idx[day]
	return ok && entry.Status == StatusDone
}

// doneDatesWithin 返回 [start, end] 内状态为 done 的日期，升序
func (idx logIndex) doneDatesWithin(start, end time.Time) []time.Time {
	dates := make([]time.Time, 0, len(idx))
	for day, entry := range idx {
		if entry.Status != StatusDone || day.Before(start) || day.After(end) {
			continue
		}
		dates = append(dates, day)
	}
	slices.SortFunc(dates, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return dates
}
