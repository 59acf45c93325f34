package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yearpace/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return gdb, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestHabitServiceCreateAndList(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	goal, err := NewGoalService(gdb).Create(GoalInput{Title: "读 24 本书", YearlyTarget: 24, Unit: "本", StartDate: datePtr(2024, 1, 1), EndDate: datePtr(2024, 12, 31)})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}

	svc := NewHabitService(gdb)

	habit, err := svc.Create(HabitInput{
		Name:          "晨读",
		Description:   "每天 20 页",
		FrequencyUnit: "specific_days",
		FrequencyDays: []int{4, 0, 2, 2},
		Status:        "active",
		Year:          2024,
		GoalIDs:       []uint{goal.ID},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if habit.ID == 0 {
		t.Fatal("expected habit to have ID")
	}
	if fmt.Sprint(habit.FrequencyDays) != "[0 2 4]" {
		t.Fatalf("expected normalized weekdays, got %v", habit.FrequencyDays)
	}

	if _, err := svc.Create(HabitInput{Name: "散步", FrequencyUnit: "daily", Year: 2025}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	habits, err := svc.List(HabitFilter{Status: "active", GoalID: goal.ID})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(habits) != 1 || habits[0].ID != habit.ID {
		t.Fatalf("expected only the linked habit, got %d habits", len(habits))
	}
	if len(habits[0].Goals) != 1 || habits[0].Goals[0].ID != goal.ID {
		t.Fatalf("expected goals to be preloaded, got %+v", habits[0].Goals)
	}

	habits, err = svc.List(HabitFilter{Year: 2024})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(habits) != 1 {
		t.Fatalf("expected habit created in 2025 to be excluded, got %d", len(habits))
	}
}

func TestHabitServiceRejectsInvalidFrequency(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewHabitService(gdb)

	tests := []HabitInput{
		{Name: "阅读", FrequencyUnit: "yearly"},
		{Name: "阅读", FrequencyUnit: "weekly", FrequencyCount: 8},
		{Name: "阅读", FrequencyUnit: "specific_days"},
		{Name: "阅读", FrequencyUnit: "monthly_dates", FrequencyDays: []int{0}},
	}

	for _, input := range tests {
		if _, err := svc.Create(input); !errors.Is(err, ErrHabitInvalidFrequency) {
			t.Fatalf("expected ErrHabitInvalidFrequency for %+v, got %v", input, err)
		}
	}

	if _, err := svc.Create(HabitInput{FrequencyUnit: "daily"}); !errors.Is(err, ErrInvalidHabit) {
		t.Fatalf("expected ErrInvalidHabit for missing name, got %v", err)
	}

	if _, err := svc.Create(HabitInput{Name: "阅读", FrequencyUnit: "daily", GoalIDs: []uint{99}}); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
}

func TestHabitServiceUpdate(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals := NewGoalService(gdb)
	first, err := goals.Create(GoalInput{Title: "跑步 500 公里", YearlyTarget: 500, Year: 2024})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}
	second, err := goals.Create(GoalInput{Title: "体重", YearlyTarget: 5, Year: 2024})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}

	svc := NewHabitService(gdb)
	habit, err := svc.Create(HabitInput{Name: "冥想", FrequencyUnit: "daily", GoalIDs: []uint{first.ID}})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	updated, err := svc.Update(habit.ID, HabitInput{
		Name:           "冥想训练",
		Description:    "晚间 10 分钟",
		FrequencyUnit:  "weekly",
		FrequencyCount: 3,
		Status:         "inactive",
		GoalIDs:        []uint{second.ID},
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.Name != "冥想训练" {
		t.Fatalf("expected name to update, got %s", updated.Name)
	}
	if updated.Status != "inactive" {
		t.Fatalf("expected status inactive, got %s", updated.Status)
	}

	reloaded, err := svc.Get(habit.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(reloaded.Goals) != 1 || reloaded.Goals[0].ID != second.ID {
		t.Fatalf("expected goal links to be replaced, got %+v", reloaded.Goals)
	}

	if _, err := svc.Update(habit.ID, HabitInput{Name: "冥想训练", FrequencyUnit: "daily"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	reloaded, err = svc.Get(habit.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(reloaded.Goals) != 0 {
		t.Fatalf("expected goal links to be cleared, got %d", len(reloaded.Goals))
	}

	if _, err := svc.Update(999, HabitInput{Name: "x", FrequencyUnit: "daily"}); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("expected ErrHabitNotFound, got %v", err)
	}
}

func TestHabitLogUpsertAndStats(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	habitSvc := NewHabitService(gdb)
	habit, err := habitSvc.Create(HabitInput{Name: "写日记", FrequencyUnit: "daily"})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	logSvc := NewHabitLogService(gdb)
	base := date(2024, 5, 1)

	for i := 0; i < 3; i++ {
		if _, err := logSvc.Upsert(HabitLogInput{HabitID: habit.ID, LogDate: base.AddDate(0, 0, i), Note: "完成"}); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}
	}

	// 重复日期覆盖备注与状态
	if _, err := logSvc.Upsert(HabitLogInput{HabitID: habit.ID, LogDate: base.Add(15 * time.Hour), Note: "补记", Status: "skipped"}); err != nil {
		t.Fatalf("Upsert update returned error: %v", err)
	}

	if _, err := logSvc.Upsert(HabitLogInput{HabitID: habit.ID, LogDate: base, Status: "maybe"}); !errors.Is(err, ErrInvalidLogStatus) {
		t.Fatalf("expected ErrInvalidLogStatus, got %v", err)
	}

	filter := HabitLogFilter{HabitID: habit.ID, Start: base, End: base.AddDate(0, 0, 2)}
	logs, err := logSvc.ListBetween(filter)
	if err != nil {
		t.Fatalf("ListBetween returned error: %v", err)
	}

	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	if logs[0].Note != "补记" || logs[0].Status != "skipped" {
		t.Fatalf("expected first log to be replaced, got note=%s status=%s", logs[0].Note, logs[0].Status)
	}

	stats, err := logSvc.StatsBetween(filter, *habit, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("StatsBetween returned error: %v", err)
	}

	if stats.CompletedCount != 2 || stats.SkippedCount != 1 {
		t.Fatalf("unexpected counts: completed=%d skipped=%d", stats.CompletedCount, stats.SkippedCount)
	}
	if stats.TargetCount != 3 {
		t.Fatalf("expected target count 3, got %d", stats.TargetCount)
	}
	if stats.CurrentStreak != 2 || stats.LongestStreak != 2 {
		t.Fatalf("unexpected streaks: current=%d longest=%d", stats.CurrentStreak, stats.LongestStreak)
	}
}

func TestHabitLogDeleteAndHeatmap(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	habit, err := NewHabitService(gdb).Create(HabitInput{Name: "拉伸", FrequencyUnit: "daily"})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	logSvc := NewHabitLogService(gdb)
	done, err := logSvc.Upsert(HabitLogInput{HabitID: habit.ID, LogDate: date(2024, 6, 1)})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if _, err := logSvc.Upsert(HabitLogInput{HabitID: habit.ID, LogDate: date(2024, 6, 2), Status: "skipped"}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	entries, err := logSvc.HeatmapRange(date(2024, 6, 1), date(2024, 6, 30))
	if err != nil {
		t.Fatalf("HeatmapRange returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].HabitName != "拉伸" {
		t.Fatalf("expected only the done log in heatmap, got %+v", entries)
	}

	if err := logSvc.Delete(habit.ID+1, done.ID); !errors.Is(err, ErrHabitLogNotFound) {
		t.Fatalf("expected ErrHabitLogNotFound for another habit, got %v", err)
	}
	if err := logSvc.Delete(habit.ID, done.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := logSvc.Delete(habit.ID, done.ID); !errors.Is(err, ErrHabitLogNotFound) {
		t.Fatalf("expected ErrHabitLogNotFound on second delete, got %v", err)
	}
	entries, err = logSvc.HeatmapRange(date(2024, 6, 1), date(2024, 6, 30))
	if err != nil {
		t.Fatalf("HeatmapRange returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected deleted log to disappear, got %d", len(entries))
	}

	// 删除后同日再次打卡会恢复记录
	if _, err := logSvc.Upsert(HabitLogInput{HabitID: habit.ID, LogDate: date(2024, 6, 1)}); err != nil {
		t.Fatalf("Upsert after delete returned error: %v", err)
	}

	if _, err := logSvc.HeatmapRange(date(2024, 6, 2), date(2024, 6, 1)); err == nil {
		t.Fatal("expected error for reversed range")
	}
}
