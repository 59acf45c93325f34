package service

import (
	"errors"
	"testing"

	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
)

func TestProgressServiceDashboard(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals := NewGoalService(gdb)
	habits := NewHabitService(gdb)
	logs := NewHabitLogService(gdb)

	actual := 20.0
	goal, err := goals.Create(GoalInput{Title: "一月打卡", YearlyTarget: 30, ActualProgress: &actual, StartDate: datePtr(2024, 1, 1), EndDate: datePtr(2024, 1, 30)})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}
	if _, err := goals.Create(GoalInput{Title: "去年的目标", YearlyTarget: 1, Year: 2023}); err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}

	linked, err := habits.Create(HabitInput{Name: "俯卧撑", FrequencyUnit: "daily", Year: 2024, GoalIDs: []uint{goal.ID}})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	if _, err := habits.Create(HabitInput{Name: "弹琴", FrequencyUnit: "daily", Year: 2024}); err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	if _, err := habits.Create(HabitInput{Name: "已停用", FrequencyUnit: "daily", Year: 2024, Status: "inactive", GoalIDs: []uint{goal.ID}}); err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	if _, err := habits.Create(HabitInput{Name: "明年的习惯", FrequencyUnit: "daily", Year: 2025, GoalIDs: []uint{goal.ID}}); err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	for i := 0; i < 25; i++ {
		if _, err := logs.Upsert(HabitLogInput{HabitID: linked.ID, LogDate: date(2024, 1, 1).AddDate(0, 0, i)}); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}
	}

	now := date(2024, 2, 15)
	dashboard, err := NewProgressService(gdb).Dashboard(2024, now)
	if err != nil {
		t.Fatalf("Dashboard returned error: %v", err)
	}

	if len(dashboard.Goals) != 1 {
		t.Fatalf("expected 1 goal for 2024, got %d", len(dashboard.Goals))
	}
	card := dashboard.Goals[0]
	if card.Progress.OnTrack {
		t.Fatal("expected goal behind pace after its end date")
	}
	if card.Progress.YearlyProgressPct != 67 {
		t.Fatalf("expected yearly 67%%, got %d", card.Progress.YearlyProgressPct)
	}
	if len(card.Habits) != 1 || card.Habits[0].Habit.ID != linked.ID {
		t.Fatalf("expected only the active linked habit, got %+v", card.Habits)
	}
	if got := card.Habits[0].Consistency; got.Expected != 30 || got.Completed != 25 || got.ConsistencyPct != 83 {
		t.Fatalf("unexpected consistency: %+v", got)
	}

	if len(dashboard.Unlinked) != 1 || dashboard.Unlinked[0].Consistency != (progress.Consistency{}) {
		t.Fatalf("expected one unlinked habit with zero consistency, got %+v", dashboard.Unlinked)
	}

	if dashboard.Summary.GoalCount != 1 || dashboard.Summary.HabitCount != 2 || dashboard.Summary.AverageConsistency != 41 {
		t.Fatalf("unexpected summary: %+v", dashboard.Summary)
	}
}

func TestProgressServiceHabitConsistency(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	goal, err := NewGoalService(gdb).Create(GoalInput{Title: "健身", YearlyTarget: 150, StartDate: datePtr(2024, 1, 1), EndDate: datePtr(2024, 1, 29)})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}
	habit, err := NewHabitService(gdb).Create(HabitInput{Name: "力量训练", FrequencyUnit: "specific_days", FrequencyDays: []int{0, 2, 4}, GoalIDs: []uint{goal.ID}})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	logs := NewHabitLogService(gdb)
	for _, day := range []int{1, 3, 5, 8, 10, 12, 15, 17} {
		if _, err := logs.Upsert(HabitLogInput{HabitID: habit.ID, LogDate: date(2024, 1, day)}); err != nil {
			t.Fatalf("Upsert returned error: %v", err)
		}
	}

	svc := NewProgressService(gdb)
	report, err := svc.HabitConsistency(habit.ID, date(2024, 1, 28))
	if err != nil {
		t.Fatalf("HabitConsistency returned error: %v", err)
	}
	if report.Goal == nil || report.Goal.ID != goal.ID {
		t.Fatalf("expected primary goal %d, got %+v", goal.ID, report.Goal)
	}
	if report.Consistency.Expected != 12 || report.Consistency.ConsistencyPct != 67 {
		t.Fatalf("unexpected consistency: %+v", report.Consistency)
	}

	if _, err := svc.HabitConsistency(999, date(2024, 1, 28)); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("expected ErrHabitNotFound, got %v", err)
	}
	if _, err := svc.GoalProgress(999, date(2024, 1, 28)); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}

	goalReport, err := svc.GoalProgress(goal.ID, date(2024, 1, 15))
	if err != nil {
		t.Fatalf("GoalProgress returned error: %v", err)
	}
	if goalReport.Progress.TotalDays != 29 || goalReport.Progress.DaysPassed != 15 {
		t.Fatalf("unexpected goal progress: %+v", goalReport.Progress)
	}
}

func TestProgressServiceSkipsMalformedRules(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	broken := db.Habit{Name: "旧数据", FrequencyUnit: "yearly", Status: "active", Year: 2024}
	if err := gdb.Create(&broken).Error; err != nil {
		t.Fatalf("failed to insert habit: %v", err)
	}

	svc := NewProgressService(gdb)
	dashboard, err := svc.Dashboard(2024, date(2024, 3, 1))
	if err != nil {
		t.Fatalf("Dashboard returned error: %v", err)
	}
	if dashboard.Summary.HabitCount != 0 || len(dashboard.Unlinked) != 0 {
		t.Fatalf("expected malformed habit to be skipped, got %+v", dashboard.Summary)
	}

	if _, err := svc.HabitConsistency(broken.ID, date(2024, 3, 1)); !errors.Is(err, progress.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
