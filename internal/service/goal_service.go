package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrGoalNotFound 在指定目标不存在时返回
	ErrGoalNotFound = errors.New("goal not found")
	// ErrInvalidGoal 当目标字段校验失败时返回
	ErrInvalidGoal = errors.New("invalid goal")
)

// GoalService 负责年度目标的增删改查与进度登记
type GoalService struct {
	db *gorm.DB
}

// GoalFilter 描述目标列表过滤条件
type GoalFilter struct {
	Year   int
	Search string
}

// GoalInput 定义创建/更新目标时可配置字段
// ActualProgress 为空时更新操作保留原值
type GoalInput struct {
	Year           int
	Title          string
	Description    string
	YearlyTarget   float64
	ActualProgress *float64
	Unit           string
	StartDate      *time.Time
	EndDate        *time.Time
	MonthlyTargets map[string]float64
}

// NewGoalService 构造 GoalService
func NewGoalService(gdb *gorm.DB) *GoalService {
	return &GoalService{db: gdb}
}

// List 返回目标集合
func (s *GoalService) List(filter GoalFilter) ([]db.Goal, error) {
	var goals []db.Goal

	query := s.db.Model(&db.Goal{})
	if filter.Year > 0 {
		query = query.Where("year = ?", filter.Year)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Order("start_date ASC").Order("id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// Get 根据 ID 获取目标
func (s *GoalService) Get(id uint) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.First(&goal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

// Create 新建目标
func (s *GoalService) Create(input GoalInput) (*db.Goal, error) {
	if err := validateGoalInput(&input); err != nil {
		return nil, err
	}

	var goal db.Goal
	applyGoalInput(&goal, input)

	if err := s.db.Create(&goal).Error; err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return &goal, nil
}

// Update 更新目标
func (s *GoalService) Update(id uint, input GoalInput) (*db.Goal, error) {
	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	// 未提供年度和开始日期时沿用原年度
	if input.Year == 0 && input.StartDate == nil {
		input.Year = existing.Year
	}
	if err := validateGoalInput(&input); err != nil {
		return nil, err
	}

	applyGoalInput(existing, input)

	if err := s.db.Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	return existing, nil
}

// Delete 删除目标，同时删除只关联到该目标的习惯，并解除其余习惯与它的关联
func (s *GoalService) Delete(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var goal db.Goal
		if err := tx.First(&goal, id).Error; err != nil {
			return err
		}

		var habitIDs []uint
		if err := tx.Table("habit_goals").Where("goal_id = ?", id).Pluck("habit_id", &habitIDs).Error; err != nil {
			return err
		}

		if len(habitIDs) > 0 {
			var sharedIDs []uint
			if err := tx.Table("habit_goals").
				Where("habit_id IN ? AND goal_id <> ?", habitIDs, id).
				Distinct().
				Pluck("habit_id", &sharedIDs).Error; err != nil {
				return err
			}

			orphaned := exclude(habitIDs, sharedIDs)
			if len(orphaned) > 0 {
				if err := tx.Delete(&db.Habit{}, orphaned).Error; err != nil {
					return err
				}
			}

			if err := tx.Exec("DELETE FROM habit_goals WHERE goal_id = ?", id).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&goal).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrGoalNotFound
	}
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// RecordProgress 在目标上登记一笔进度，同时累加 on 所在月份的实际完成量
func (s *GoalService) RecordProgress(id uint, amount float64, on time.Time) (*db.Goal, error) {
	if amount == 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: progress amount must be a non-zero number", ErrInvalidGoal)
	}

	var goal db.Goal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&goal, id).Error; err != nil {
			return err
		}

		goal.ActualProgress += amount
		if goal.MonthlyActuals == nil {
			goal.MonthlyActuals = make(map[string]float64)
		}
		goal.MonthlyActuals[progress.MonthKey(progress.DateOf(on))] += amount

		return tx.Save(&goal).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record goal progress: %w", err)
	}
	return &goal, nil
}

func applyGoalInput(goal *db.Goal, input GoalInput) {
	goal.Year = input.Year
	goal.Title = strings.TrimSpace(input.Title)
	goal.Description = strings.TrimSpace(input.Description)
	goal.YearlyTarget = input.YearlyTarget
	goal.Unit = strings.TrimSpace(input.Unit)
	goal.StartDate = normalizeOptionalDate(input.StartDate)
	goal.EndDate = normalizeOptionalDate(input.EndDate)
	goal.MonthlyTargets = input.MonthlyTargets
	if input.ActualProgress != nil {
		goal.ActualProgress = *input.ActualProgress
	}
}

func validateGoalInput(input *GoalInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidGoal)
	}
	if input.YearlyTarget < 0 || math.IsNaN(input.YearlyTarget) {
		return fmt.Errorf("%w: yearly target must not be negative", ErrInvalidGoal)
	}
	if input.StartDate != nil && input.EndDate != nil && progress.DateOf(*input.EndDate).Before(progress.DateOf(*input.StartDate)) {
		return fmt.Errorf("%w: start date after end date", ErrInvalidGoal)
	}

	if input.Year == 0 && input.StartDate != nil {
		input.Year = input.StartDate.Year()
	}
	if input.Year <= 0 {
		return fmt.Errorf("%w: year is required", ErrInvalidGoal)
	}

	for key, value := range input.MonthlyTargets {
		if _, err := time.Parse("2006-01", key); err != nil {
			return fmt.Errorf("%w: invalid month key %q", ErrInvalidGoal, key)
		}
		if value < 0 {
			return fmt.Errorf("%w: negative target for %s", ErrInvalidGoal, key)
		}
	}

	return nil
}

func normalizeOptionalDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := progress.DateOf(*t)
	return &d
}

func exclude(ids, remove []uint) []uint {
	skip := normalizeIDs(remove)
	kept := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			kept = append(kept, id)
		}
	}
	return kept
}
