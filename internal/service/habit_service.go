package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitInvalidFrequency 当频率配置异常时返回
	ErrHabitInvalidFrequency = errors.New("invalid habit frequency configuration")
	// ErrInvalidHabit 当习惯基础字段缺失时返回
	ErrInvalidHabit = errors.New("invalid habit")
	// ErrInvalidLogStatus 当打卡状态不是 done/skipped 时返回
	ErrInvalidLogStatus = errors.New("invalid habit log status")
	// ErrHabitLogNotFound 当打卡记录不存在或不属于该习惯时返回
	ErrHabitLogNotFound = errors.New("habit log not found")
)

// HabitService 负责 Habit 数据的增删改查
// 频率配置在保存前转换为引擎规则校验，非法配置不会落库
// Status 仅使用 active/inactive，默认 active
type HabitService struct {
	db *gorm.DB
}

// HabitFilter 描述列表过滤条件
type HabitFilter struct {
	Status string
	Search string
	GoalID uint
	Year   int
}

// HabitInput 定义创建/更新习惯时可配置字段
type HabitInput struct {
	Name           string
	Description    string
	Trigger        string
	Location       string
	TimeOfDay      string
	FrequencyUnit  string
	FrequencyCount int
	FrequencyDays  []int
	Status         string
	Year           int
	GoalIDs        []uint
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回习惯集合，支持基本筛选
func (s *HabitService) List(filter HabitFilter) ([]db.Habit, error) {
	var habits []db.Habit

	query := s.db.Model(&db.Habit{}).Preload("Goals")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Year > 0 {
		query = query.Where("year <= ?", filter.Year)
	}
	if filter.GoalID > 0 {
		query = query.Where("id IN (?)", s.db.Table("habit_goals").Select("habit_id").Where("goal_id = ?", filter.GoalID))
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Order("created_at DESC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	return habits, nil
}

// Get 根据 ID 获取习惯，并加载关联目标
func (s *HabitService) Get(id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Preload("Goals").First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯
func (s *HabitService) Create(input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	goals, err := s.loadGoals(input.GoalIDs)
	if err != nil {
		return nil, err
	}

	habit := db.Habit{Goals: goals}
	applyHabitInput(&habit, input)

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// Update 更新习惯及其关联目标
func (s *HabitService) Update(id uint, input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	var existing db.Habit
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}

	goals, err := s.loadGoals(input.GoalIDs)
	if err != nil {
		return nil, err
	}

	applyHabitInput(&existing, input)

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Goals").Save(&existing).Error; err != nil {
			return err
		}
		if len(goals) == 0 {
			return tx.Model(&existing).Association("Goals").Clear()
		}
		return tx.Model(&existing).Association("Goals").Replace(goals)
	}); err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}

	existing.Goals = goals
	return &existing, nil
}

// Delete 删除习惯，打卡记录保留
func (s *HabitService) Delete(id uint) error {
	result := s.db.Delete(&db.Habit{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete habit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrHabitNotFound
	}
	return nil
}

func (s *HabitService) loadGoals(ids []uint) ([]db.Goal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var goals []db.Goal
	if err := s.db.Where("id IN ?", ids).Order("id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	if len(goals) != len(normalizeIDs(ids)) {
		return nil, ErrGoalNotFound
	}
	return goals, nil
}

func applyHabitInput(habit *db.Habit, input HabitInput) {
	habit.Name = strings.TrimSpace(input.Name)
	habit.Description = strings.TrimSpace(input.Description)
	habit.Trigger = strings.TrimSpace(input.Trigger)
	habit.Location = strings.TrimSpace(input.Location)
	habit.TimeOfDay = strings.TrimSpace(input.TimeOfDay)
	habit.FrequencyUnit = strings.ToLower(strings.TrimSpace(input.FrequencyUnit))
	habit.FrequencyCount = input.FrequencyCount
	habit.FrequencyDays = normalizeDays(input.FrequencyDays)
	habit.Status = normalizeStatus(input.Status)
	habit.Year = input.Year
	if habit.Year == 0 {
		habit.Year = time.Now().Year()
	}
}

func validateHabitInput(input HabitInput) error {
	if _, err := RuleFromFrequency(input.FrequencyUnit, input.FrequencyCount, input.FrequencyDays); err != nil {
		return fmt.Errorf("%w: %w", ErrHabitInvalidFrequency, err)
	}

	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidHabit)
	}

	return nil
}

func normalizeStatus(status string) string {
	status = strings.TrimSpace(strings.ToLower(status))
	if status != "inactive" {
		return "active"
	}
	return "inactive"
}

func normalizeIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// HabitLogService 负责打卡与统计逻辑
type HabitLogService struct {
	db *gorm.DB
}

// HabitHeatmapEntry 表示热力图中的单日打卡数据
type HabitHeatmapEntry struct {
	LogDate   time.Time
	HabitID   uint
	HabitName string
}

// HabitLogInput 定义打卡时的输入对象
type HabitLogInput struct {
	HabitID uint
	LogDate time.Time
	LogTime *time.Time
	Status  string
	Source  string
	Note    string
}

// HabitLogFilter 指定查询区间
type HabitLogFilter struct {
	HabitID uint
	Start   time.Time
	End     time.Time
}

// HabitStats 汇总区间统计数据
type HabitStats struct {
	RangeStart     time.Time
	RangeEnd       time.Time
	CompletedCount int
	SkippedCount   int
	TargetCount    int
	CompletionRate float64
	CurrentStreak  int
	LongestStreak  int
}

// NewHabitLogService 构造 HabitLogService
func NewHabitLogService(gdb *gorm.DB) *HabitLogService {
	return &HabitLogService{db: gdb}
}

// Upsert 处理幂等打卡逻辑：同一习惯同一天已存在记录时覆盖状态/备注/时间/来源，否则创建
func (s *HabitLogService) Upsert(input HabitLogInput) (*db.HabitLog, error) {
	status, err := normalizeLogStatus(input.Status)
	if err != nil {
		return nil, err
	}

	logDate := progress.DateOf(input.LogDate)

	record := db.HabitLog{
		HabitID: input.HabitID,
		LogDate: logDate,
		Status:  status,
		Note:    strings.TrimSpace(input.Note),
		Source:  strings.TrimSpace(input.Source),
		LogTime: input.LogTime,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "log_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "note", "source", "log_time", "updated_at", "deleted_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert habit log: %w", err)
	}

	if err := s.db.Where("habit_id = ? AND log_date = ?", input.HabitID, logDate).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload habit log: %w", err)
	}

	return &record, nil
}

// Delete 删除指定打卡记录
func (s *HabitLogService) Delete(habitID, id uint) error {
	result := s.db.Where("habit_id = ?", habitID).Delete(&db.HabitLog{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete habit log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrHabitLogNotFound
	}
	return nil
}

// ListBetween 返回指定区间内的打卡记录
func (s *HabitLogService) ListBetween(filter HabitLogFilter) ([]db.HabitLog, error) {
	var logs []db.HabitLog

	if filter.HabitID == 0 {
		return nil, fmt.Errorf("habit id is required")
	}

	start := progress.DateOf(filter.Start)
	end := progress.DateOf(filter.End)

	if err := s.db.Where("habit_id = ?", filter.HabitID).
		Where("log_date BETWEEN ? AND ?", start, end).
		Order("log_date ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}

	return logs, nil
}

// HeatmapRange 返回指定区间内所有习惯已完成的打卡数据
func (s *HabitLogService) HeatmapRange(start, end time.Time) ([]HabitHeatmapEntry, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end before start")
	}

	normalizedStart := progress.DateOf(start)
	normalizedEnd := progress.DateOf(end)

	var rows []HabitHeatmapEntry
	if err := s.db.Model(&db.HabitLog{}).
		Select("habit_logs.log_date AS log_date, habit_logs.habit_id AS habit_id, habits.name AS habit_name").
		Joins("JOIN habits ON habits.id = habit_logs.habit_id AND habits.deleted_at IS NULL").
		Where("habit_logs.log_date BETWEEN ? AND ?", normalizedStart, normalizedEnd).
		Where("habit_logs.status = ?", string(progress.StatusDone)).
		Order("habit_logs.log_date ASC, habits.name ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list heatmap logs: %w", err)
	}

	return rows, nil
}

// StatsBetween 使用习惯的频率规则计算区间内的应完成数、完成率及连续天数
func (s *HabitLogService) StatsBetween(filter HabitLogFilter, habit db.Habit, now time.Time) (*HabitStats, error) {
	rule, err := HabitRule(habit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHabitInvalidFrequency, err)
	}

	logs, err := s.ListBetween(filter)
	if err != nil {
		return nil, err
	}

	stats := &HabitStats{
		RangeStart: filter.Start,
		RangeEnd:   filter.End,
	}

	for _, entry := range logs {
		switch progress.LogStatus(entry.Status) {
		case progress.StatusDone:
			stats.CompletedCount++
		case progress.StatusSkipped:
			stats.SkippedCount++
		}
	}

	stats.TargetCount, err = progress.ExpectedOccurrences(rule, filter.Start, filter.End)
	if err != nil {
		return nil, err
	}
	if stats.TargetCount > 0 {
		stats.CompletionRate = min(1, float64(stats.CompletedCount)/float64(stats.TargetCount))
	}

	entries := ToEngineLogs(logs)
	stats.CurrentStreak, err = progress.CurrentStreak(rule, entries, filter.Start, filter.End, now)
	if err != nil {
		return nil, err
	}
	stats.LongestStreak, err = progress.LongestStreak(rule, entries, filter.Start, filter.End)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func normalizeLogStatus(status string) (string, error) {
	switch progress.LogStatus(strings.ToLower(strings.TrimSpace(status))) {
	case "", progress.StatusDone:
		return string(progress.StatusDone), nil
	case progress.StatusSkipped:
		return string(progress.StatusSkipped), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidLogStatus, status)
	}
}
