package service

import (
	"errors"
	"testing"

	"github.com/yearpace/internal/db"
)

func TestGoalServiceCreateValidates(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewGoalService(gdb)

	goal, err := svc.Create(GoalInput{
		Title:          "  跑步 1000 公里 ",
		YearlyTarget:   1000,
		Unit:           "公里",
		StartDate:      datePtr(2024, 3, 1),
		EndDate:        datePtr(2024, 12, 31),
		MonthlyTargets: map[string]float64{"2024-03": 50},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if goal.Year != 2024 {
		t.Fatalf("expected year derived from start date, got %d", goal.Year)
	}
	if goal.Title != "跑步 1000 公里" {
		t.Fatalf("expected trimmed title, got %q", goal.Title)
	}

	reloaded, err := svc.Get(goal.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded.MonthlyTargets["2024-03"] != 50 {
		t.Fatalf("expected monthly targets to round trip, got %v", reloaded.MonthlyTargets)
	}

	invalid := []GoalInput{
		{YearlyTarget: 10, Year: 2024},
		{Title: "x", YearlyTarget: -1, Year: 2024},
		{Title: "x", YearlyTarget: 10},
		{Title: "x", YearlyTarget: 10, StartDate: datePtr(2024, 5, 1), EndDate: datePtr(2024, 4, 1)},
		{Title: "x", YearlyTarget: 10, Year: 2024, MonthlyTargets: map[string]float64{"March": 1}},
	}
	for _, input := range invalid {
		if _, err := svc.Create(input); !errors.Is(err, ErrInvalidGoal) {
			t.Fatalf("expected ErrInvalidGoal for %+v, got %v", input, err)
		}
	}

	if _, err := svc.Get(999); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
}

func TestGoalServiceUpdateKeepsProgress(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewGoalService(gdb)
	goal, err := svc.Create(GoalInput{Title: "存钱", YearlyTarget: 100, Year: 2024})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.RecordProgress(goal.ID, 30, date(2024, 2, 3)); err != nil {
		t.Fatalf("RecordProgress returned error: %v", err)
	}

	updated, err := svc.Update(goal.ID, GoalInput{Title: "存钱计划", YearlyTarget: 120, Year: 2024})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.ActualProgress != 30 {
		t.Fatalf("expected progress to be kept, got %v", updated.ActualProgress)
	}

	corrected := 25.0
	updated, err = svc.Update(goal.ID, GoalInput{Title: "存钱计划", YearlyTarget: 120, Year: 2024, ActualProgress: &corrected})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.ActualProgress != 25 {
		t.Fatalf("expected progress to be overwritten, got %v", updated.ActualProgress)
	}
}

func TestGoalServiceUpdateKeepsYear(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewGoalService(gdb)
	goal, err := svc.Create(GoalInput{Title: "草稿", YearlyTarget: 1, Year: 2024})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	updated, err := svc.Update(goal.ID, GoalInput{Title: "草稿改名", YearlyTarget: 1})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Year != 2024 || updated.Title != "草稿改名" {
		t.Fatalf("expected year 2024 to be kept, got %+v", updated)
	}

	start := date(2025, 3, 1)
	updated, err = svc.Update(goal.ID, GoalInput{Title: "草稿改名", YearlyTarget: 1, StartDate: &start})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Year != 2025 {
		t.Fatalf("expected year derived from start date, got %d", updated.Year)
	}

	if _, err := svc.Update(goal.ID, GoalInput{Title: "  "}); !errors.Is(err, ErrInvalidGoal) {
		t.Fatalf("expected ErrInvalidGoal, got %v", err)
	}
	if _, err := svc.Update(999, GoalInput{Title: "x", Year: 2024}); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
}

func TestGoalServiceRecordProgress(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewGoalService(gdb)
	goal, err := svc.Create(GoalInput{Title: "写作", YearlyTarget: 52, Unit: "篇", Year: 2024})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	for _, day := range []int{3, 17} {
		if _, err := svc.RecordProgress(goal.ID, 1, date(2024, 1, day)); err != nil {
			t.Fatalf("RecordProgress returned error: %v", err)
		}
	}
	updated, err := svc.RecordProgress(goal.ID, 2.5, date(2024, 2, 1))
	if err != nil {
		t.Fatalf("RecordProgress returned error: %v", err)
	}

	if updated.ActualProgress != 4.5 {
		t.Fatalf("expected total progress 4.5, got %v", updated.ActualProgress)
	}
	if updated.MonthlyActuals["2024-01"] != 2 || updated.MonthlyActuals["2024-02"] != 2.5 {
		t.Fatalf("unexpected monthly actuals: %v", updated.MonthlyActuals)
	}

	if _, err := svc.RecordProgress(goal.ID, 0, date(2024, 2, 1)); !errors.Is(err, ErrInvalidGoal) {
		t.Fatalf("expected ErrInvalidGoal for zero amount, got %v", err)
	}
	if _, err := svc.RecordProgress(999, 1, date(2024, 2, 1)); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
}

func TestGoalServiceDeleteCascadesToExclusiveHabits(t *testing.T) {
	gdb, cleanup := setupServiceTestDB(t)
	defer cleanup()

	goals := NewGoalService(gdb)
	habits := NewHabitService(gdb)

	target, err := goals.Create(GoalInput{Title: "马拉松", YearlyTarget: 1, Year: 2024})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}
	other, err := goals.Create(GoalInput{Title: "减脂", YearlyTarget: 5, Year: 2024})
	if err != nil {
		t.Fatalf("failed to create goal: %v", err)
	}

	exclusive, err := habits.Create(HabitInput{Name: "长距离跑", FrequencyUnit: "specific_days", FrequencyDays: []int{5}, GoalIDs: []uint{target.ID}})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	shared, err := habits.Create(HabitInput{Name: "早睡", FrequencyUnit: "daily", GoalIDs: []uint{target.ID, other.ID}})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	if err := goals.Delete(target.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := goals.Get(target.ID); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected goal to be deleted, got %v", err)
	}
	if _, err := habits.Get(exclusive.ID); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("expected exclusive habit to be deleted, got %v", err)
	}

	kept, err := habits.Get(shared.ID)
	if err != nil {
		t.Fatalf("expected shared habit to survive, got %v", err)
	}
	if len(kept.Goals) != 1 || kept.Goals[0].ID != other.ID {
		t.Fatalf("expected only the remaining goal link, got %+v", kept.Goals)
	}

	var links int64
	if err := gdb.Table("habit_goals").Where("goal_id = ?", target.ID).Count(&links).Error; err != nil {
		t.Fatalf("failed to count links: %v", err)
	}
	if links != 0 {
		t.Fatalf("expected links to deleted goal to be removed, got %d", links)
	}

	if err := goals.Delete(target.ID); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound on second delete, got %v", err)
	}

	var count int64
	gdb.Model(&db.Goal{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one goal left, got %d", count)
	}
}
