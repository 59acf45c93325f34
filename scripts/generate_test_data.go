package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/yearpace/internal/config"
	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
	"github.com/yearpace/internal/service"
	"gorm.io/gorm"
)

// demoHabit 描述一个演示习惯：completion 为每 10 个应打卡日中完成的天数，
// amount 为每次完成登记到关联目标的进度
type demoHabit struct {
	input      service.HabitInput
	goal       int
	completion int
	amount     float64
}

// 测试数据生成器
func main() {
	year := flag.Int("year", time.Now().Year(), "要生成演示数据的年度")
	flag.Parse()

	cfg := config.Load()
	if err := db.Init(cfg.DatabaseURL); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	today := progress.DateOf(time.Now().In(cfg.Location))
	if err := seedDemoYear(db.DB, *year, today); err != nil {
		log.Fatal("生成测试数据失败:", err)
	}

	fmt.Println("测试数据生成完成！")
}

// seedDemoYear 为 year 生成演示目标、习惯及截至 today 的打卡记录。
// 该年度已有目标时跳过，重复执行不会产生重复数据。
func seedDemoYear(gdb *gorm.DB, year int, today time.Time) error {
	var count int64
	if err := gdb.Model(&db.Goal{}).Where("year = ?", year).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		fmt.Printf("%d 年度已有目标，跳过创建\n", year)
		return nil
	}

	goalIDs, err := createDemoGoals(service.NewGoalService(gdb), year)
	if err != nil {
		return err
	}
	fmt.Println("✅ 演示目标创建完成")

	habits := service.NewHabitService(gdb)
	logs := service.NewHabitLogService(gdb)
	goals := service.NewGoalService(gdb)

	for i, demo := range demoHabits(year) {
		if demo.goal >= 0 {
			demo.input.GoalIDs = []uint{goalIDs[demo.goal]}
		}

		habit, err := habits.Create(demo.input)
		if err != nil {
			return fmt.Errorf("create habit %s: %w", demo.input.Name, err)
		}

		logged, err := seedHabitLogs(logs, goals, *habit, i, demo, year, today)
		if err != nil {
			return err
		}
		fmt.Printf("✅ 习惯「%s」生成 %d 条打卡\n", habit.Name, logged)
	}

	return nil
}

func createDemoGoals(goals *service.GoalService, year int) ([]uint, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	midYear := time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)

	savings := make(map[string]float64, 6)
	for month := time.January; month <= time.June; month++ {
		savings[progress.MonthKey(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))] = 5000
	}

	inputs := []service.GoalInput{
		{Title: "跑步 1000 公里", Description: "每周至少 **三次** 晨跑，周末一次长距离。", YearlyTarget: 1000, Unit: "公里", StartDate: &start, EndDate: &end},
		{Title: "读 24 本书", Description: "每天睡前阅读 30 分钟。", YearlyTarget: 24, Unit: "本", StartDate: &start, EndDate: &end},
		{Title: "上半年存 3 万元", Description: "每月 1 日和 15 日记账并转入储蓄。", YearlyTarget: 30000, Unit: "元", StartDate: &start, EndDate: &midYear, MonthlyTargets: savings},
	}

	ids := make([]uint, 0, len(inputs))
	for _, input := range inputs {
		goal, err := goals.Create(input)
		if err != nil {
			return nil, fmt.Errorf("create goal %s: %w", input.Title, err)
		}
		ids = append(ids, goal.ID)
	}
	return ids, nil
}

func demoHabits(year int) []demoHabit {
	return []demoHabit{
		{input: service.HabitInput{Name: "晨跑", Trigger: "起床后", Location: "公园", TimeOfDay: "06:30", FrequencyUnit: "specific_days", FrequencyDays: []int{0, 2, 4}, Year: year}, goal: 0, completion: 8, amount: 5},
		{input: service.HabitInput{Name: "长距离跑", Location: "滨江步道", FrequencyUnit: "specific_days", FrequencyDays: []int{6}, Year: year}, goal: 0, completion: 7, amount: 15},
		{input: service.HabitInput{Name: "睡前阅读", Trigger: "洗漱后", TimeOfDay: "22:30", FrequencyUnit: "daily", Year: year}, goal: 1, completion: 9, amount: 0.07},
		{input: service.HabitInput{Name: "记账存钱", FrequencyUnit: "monthly_dates", FrequencyDays: []int{1, 15}, Year: year}, goal: 2, completion: 9, amount: 2500},
		{input: service.HabitInput{Name: "冥想", Description: "每周三次，每次 10 分钟", FrequencyUnit: "weekly", FrequencyCount: 3, Year: year}, goal: -1, completion: 4},
	}
}

// seedHabitLogs 按固定模式生成打卡：完成、跳过或漏打，保证结果可复现
func seedHabitLogs(logs *service.HabitLogService, goals *service.GoalService, habit db.Habit, index int, demo demoHabit, year int, today time.Time) (int, error) {
	rule, err := service.HabitRule(habit)
	if err != nil {
		return 0, err
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if today.Before(end) {
		end = today
	}

	logged := 0
	for day, n := start, 0; !day.After(end); day = day.AddDate(0, 0, 1) {
		ok, err := progress.IsScheduled(rule, day)
		if err != nil {
			return logged, err
		}
		if !ok {
			continue
		}
		n++

		slot := (n*7 + index*3) % 10
		status := string(progress.StatusDone)
		switch {
		case slot > demo.completion:
			continue
		case slot == demo.completion:
			status = string(progress.StatusSkipped)
		}

		if _, err := logs.Upsert(service.HabitLogInput{HabitID: habit.ID, LogDate: day, Status: status, Source: "seed"}); err != nil {
			return logged, fmt.Errorf("seed habit log: %w", err)
		}
		logged++

		if status == string(progress.StatusDone) && demo.goal >= 0 && demo.amount > 0 {
			if _, err := goals.RecordProgress(habit.Goals[0].ID, demo.amount, day); err != nil {
				return logged, fmt.Errorf("record goal progress: %w", err)
			}
		}
	}

	return logged, nil
}
