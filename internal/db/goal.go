package db

import (
	"time"

	"gorm.io/gorm"
)

// Goal 定义了年度目标模型
// Year 为目标所属年度分区；StartDate/EndDate 允许为空（编辑中尚未填写）
// MonthlyTargets/MonthlyActuals 以 YYYY-MM 为键，JSON 序列化存储
// Description 支持 Markdown
type Goal struct {
	gorm.Model
	Year           int `gorm:"index;not null"`
	Title          string
	Description    string
	YearlyTarget   float64
	ActualProgress float64
	Unit           string
	StartDate      *time.Time
	EndDate        *time.Time
	MonthlyTargets map[string]float64 `gorm:"type:text;serializer:json"`
	MonthlyActuals map[string]float64 `gorm:"type:text;serializer:json"`
}
