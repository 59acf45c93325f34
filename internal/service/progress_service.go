package service

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"time"

	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
	"gorm.io/gorm"
)

// ProgressService 从数据库读取目标、习惯与打卡记录，交给进度引擎计算，
// 每次请求都重新计算，不缓存派生值
type ProgressService struct {
	db *gorm.DB
}

// GoalReport 是单个目标的进度结果
type GoalReport struct {
	Goal     db.Goal
	Progress progress.GoalProgress
}

// HabitReport 是单个习惯在其主目标周期内的完成情况
// Goal 为空表示习惯未关联目标
type HabitReport struct {
	Habit       db.Habit
	Goal        *db.Goal
	Consistency progress.Consistency
}

// GoalCard 汇总目标进度及其关联习惯
type GoalCard struct {
	GoalReport
	Habits []HabitReport
}

// DashboardSummary 汇总年度看板的整体数据
type DashboardSummary struct {
	GoalCount          int
	OnTrackCount       int
	HabitCount         int
	AverageConsistency int
}

// Dashboard 是某个年度的看板数据
type Dashboard struct {
	Year     int
	Goals    []GoalCard
	Unlinked []HabitReport
	Summary  DashboardSummary
}

// NewProgressService 构造 ProgressService
func NewProgressService(gdb *gorm.DB) *ProgressService {
	return &ProgressService{db: gdb}
}

// GoalProgress 计算目标在 now 时刻的进度
func (s *ProgressService) GoalProgress(goalID uint, now time.Time) (*GoalReport, error) {
	var goal db.Goal
	if err := s.db.First(&goal, goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}

	return &GoalReport{Goal: goal, Progress: progress.ProjectGoal(ToEngineGoal(goal), now)}, nil
}

// HabitConsistency 计算习惯在主目标（ID 最小的关联目标）周期内的完成率与连续天数
func (s *ProgressService) HabitConsistency(habitID uint, now time.Time) (*HabitReport, error) {
	var habit db.Habit
	if err := s.db.Preload("Goals", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("goals.id ASC")
	}).First(&habit, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}

	var logs []db.HabitLog
	if err := s.db.Where("habit_id = ?", habit.ID).Order("log_date ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}

	return buildHabitReport(habit, primaryGoal(habit), logs, now)
}

// Dashboard 汇总 year 年度内的全部目标与启用中的习惯
func (s *ProgressService) Dashboard(year int, now time.Time) (*Dashboard, error) {
	var goals []db.Goal
	if err := s.db.Where("year = ?", year).Order("start_date ASC").Order("id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	var habits []db.Habit
	if err := s.db.Preload("Goals", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("goals.id ASC")
	}).Where("status = ? AND year <= ?", "active", year).Order("id ASC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	logsByHabit, err := s.logsByHabit(habits)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{Year: year}
	cards := make(map[uint]*GoalCard, len(goals))
	dashboard.Goals = make([]GoalCard, len(goals))
	for i, goal := range goals {
		dashboard.Goals[i] = GoalCard{GoalReport: GoalReport{Goal: goal, Progress: progress.ProjectGoal(ToEngineGoal(goal), now)}}
		cards[goal.ID] = &dashboard.Goals[i]
		if dashboard.Goals[i].Progress.OnTrack {
			dashboard.Summary.OnTrackCount++
		}
	}

	consistencyTotal := 0
	for _, habit := range habits {
		goal := primaryGoalIn(habit, cards)
		report, err := buildHabitReport(habit, goal, logsByHabit[habit.ID], now)
		if err != nil {
			// 单个习惯的规则损坏不影响整个看板
			log.Printf("[progress] skip habit %d: %v", habit.ID, err)
			continue
		}

		dashboard.Summary.HabitCount++
		consistencyTotal += report.Consistency.ConsistencyPct

		if goal == nil {
			dashboard.Unlinked = append(dashboard.Unlinked, *report)
			continue
		}
		card := cards[goal.ID]
		card.Habits = append(card.Habits, *report)
	}

	dashboard.Summary.GoalCount = len(goals)
	if dashboard.Summary.HabitCount > 0 {
		dashboard.Summary.AverageConsistency = consistencyTotal / dashboard.Summary.HabitCount
	}

	return dashboard, nil
}

func (s *ProgressService) logsByHabit(habits []db.Habit) (map[uint][]db.HabitLog, error) {
	grouped := make(map[uint][]db.HabitLog, len(habits))
	if len(habits) == 0 {
		return grouped, nil
	}

	ids := make([]uint, 0, len(habits))
	for _, habit := range habits {
		ids = append(ids, habit.ID)
	}

	var logs []db.HabitLog
	if err := s.db.Where("habit_id IN ?", ids).Order("log_date ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	for _, entry := range logs {
		grouped[entry.HabitID] = append(grouped[entry.HabitID], entry)
	}
	return grouped, nil
}

func buildHabitReport(habit db.Habit, goal *db.Goal, logs []db.HabitLog, now time.Time) (*HabitReport, error) {
	engineHabit, err := ToEngineHabit(habit)
	if err != nil {
		return nil, err
	}

	var engineGoal *progress.Goal
	if goal != nil {
		g := ToEngineGoal(*goal)
		engineGoal = &g
	}

	consistency, err := progress.ComputeConsistency(engineHabit, ToEngineLogs(logs), engineGoal, now)
	if err != nil {
		return nil, err
	}

	return &HabitReport{Habit: habit, Goal: goal, Consistency: consistency}, nil
}

// primaryGoal 取 ID 最小的关联目标
func primaryGoal(habit db.Habit) *db.Goal {
	if len(habit.Goals) == 0 {
		return nil
	}
	goal := slices.MinFunc(habit.Goals, func(a, b db.Goal) int {
		return int(a.ID) - int(b.ID)
	})
	return &goal
}

// primaryGoalIn 取在当前年度看板中出现的 ID 最小的关联目标
func primaryGoalIn(habit db.Habit, cards map[uint]*GoalCard) *db.Goal {
	for _, goal := range habit.Goals {
		if card, ok := cards[goal.ID]; ok {
			return &card.Goal
		}
	}
	return nil
}

// ToEngineGoal 将目标记录转换为引擎输入
func ToEngineGoal(goal db.Goal) progress.Goal {
	result := progress.Goal{
		ID:             formatID(goal.ID),
		Title:          goal.Title,
		YearlyTarget:   goal.YearlyTarget,
		ActualProgress: goal.ActualProgress,
		Unit:           goal.Unit,
		MonthlyTargets: goal.MonthlyTargets,
		MonthlyActuals: goal.MonthlyActuals,
	}
	if goal.StartDate != nil {
		result.StartDate = *goal.StartDate
	}
	if goal.EndDate != nil {
		result.EndDate = *goal.EndDate
	}
	return result
}

// ToEngineHabit 将习惯记录转换为引擎输入，频率配置非法时返回错误
func ToEngineHabit(habit db.Habit) (progress.Habit, error) {
	rule, err := HabitRule(habit)
	if err != nil {
		return progress.Habit{}, fmt.Errorf("habit %d: %w", habit.ID, err)
	}

	goalIDs := make([]string, 0, len(habit.Goals))
	for _, goal := range habit.Goals {
		goalIDs = append(goalIDs, formatID(goal.ID))
	}

	return progress.Habit{
		ID:      formatID(habit.ID),
		Name:    habit.Name,
		GoalIDs: goalIDs,
		Rule:    rule,
		Active:  habit.Status != "inactive",
		Year:    habit.Year,
	}, nil
}

// ToEngineLogs 将打卡记录转换为引擎输入，UpdatedAt 作为记录时间用于同日去重
func ToEngineLogs(logs []db.HabitLog) []progress.LogEntry {
	entries := make([]progress.LogEntry, 0, len(logs))
	for _, entry := range logs {
		entries = append(entries, progress.LogEntry{
			ID:       formatID(entry.ID),
			HabitID:  formatID(entry.HabitID),
			Date:     entry.LogDate,
			Status:   progress.LogStatus(entry.Status),
			LoggedAt: entry.UpdatedAt,
		})
	}
	return entries
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
