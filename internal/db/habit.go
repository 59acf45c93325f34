package db

import (
	"time"

	"gorm.io/gorm"
)

// Habit 定义了习惯模型
// FrequencyUnit 是频率规则的判别值：daily/weekly/specific_days/monthly/monthly_dates
// FrequencyCount 用于 weekly（每周天数）与 monthly（每月次数）
// FrequencyDays 用于 specific_days（0=周一..6=周日）与 monthly_dates（1..31）
// Status 使用 active/inactive；Year 标记习惯创建的年份，之前的年度统计不包含它
// Trigger/Location/TimeOfDay 仅用于展示
type Habit struct {
	gorm.Model
	Name           string
	Description    string
	Trigger        string
	Location       string
	TimeOfDay      string
	FrequencyUnit  string
	FrequencyCount int
	FrequencyDays  []int `gorm:"type:text;serializer:json"`
	Status         string
	Year           int    `gorm:"index"`
	Goals          []Goal `gorm:"many2many:habit_goals;"`
}

// HabitLog 记录习惯打卡日志
// Habit + LogDate 采用唯一索引，同一天重复打卡会覆盖旧记录；LogTime 存储用户选择的具体时间
// Status 为 done/skipped，Source 标记打卡来源（manual/seed 等），Note 为备注
type HabitLog struct {
	gorm.Model
	HabitID uint      `gorm:"index;index:idx_habit_log_unique,unique"`
	Habit   Habit     `gorm:"constraint:OnDelete:CASCADE"`
	LogDate time.Time `gorm:"index:idx_habit_log_unique,unique"`
	Status  string    `gorm:"not null;default:'done'"`
	LogTime *time.Time
	Source  string
	Note    string
}

// TableName 重写确保唯一索引作用到 habit_id + log_date
func (HabitLog) TableName() string {
	return "habit_logs"
}
