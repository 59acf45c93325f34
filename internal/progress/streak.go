package progress

import "time"

// streakLookbackDays 计算最长连续时，向前检查漏打卡的最大天数
const streakLookbackDays = 7

// CurrentStreak 从 min(today, end) 开始逐日向前回溯到 start：
// 无需打卡的日期直接跳过；需要打卡且已完成则计数加一；
// 遇到第一个需要打卡但未完成的日期即停止。
func CurrentStreak(r Rule, entries []LogEntry, start, end, today time.Time) (int, error) {
	if err := ValidateRule(r); err != nil {
		return 0, err
	}
	return currentStreak(r, indexLogs(entries), DateOf(start), DateOf(end), DateOf(today)), nil
}

func currentStreak(r Rule, idx logIndex, start, end, today time.Time) int {
	streak := 0
	for day := minDate(today, end); !day.Before(start); day = day.AddDate(0, 0, -1) {
		if !scheduled(r, day) {
			continue
		}
		if !idx.done(day) {
			break
		}
		streak++
	}
	return streak
}

// LongestStreak 按日期升序扫描 [start, end] 内的 done 记录。
// 从当前完成日向前最多检查 7 天（不早于上一次完成的次日），
// 其间没有需要打卡的日期时视为连续，否则结束当前连续段。
// 间隔超过 7 天时更早的日期不再检查，稀疏规则可能因此多算或少算。
func LongestStreak(r Rule, entries []LogEntry, start, end time.Time) (int, error) {
	if err := ValidateRule(r); err != nil {
		return 0, err
	}
	return longestStreak(r, indexLogs(entries), DateOf(start), DateOf(end)), nil
}

func longestStreak(r Rule, idx logIndex, start, end time.Time) int {
	longest, run := 0, 0
	var previous time.Time

	for _, day := range idx.doneDatesWithin(start, end) {
		if previous.IsZero() {
			run = 1
			previous = day
			continue
		}

		if continuesRun(r, previous, day) {
			run++
		} else {
			longest = max(longest, run)
			run = 1
		}
		previous = day
	}

	return max(longest, run)
}

func continuesRun(r Rule, previous, current time.Time) bool {
	lookback := min(daysBetween(previous, current)-1, streakLookbackDays)
	for i := 1; i <= lookback; i++ {
		if scheduled(r, current.AddDate(0, 0, -i)) {
			return false
		}
	}
	return true
}
