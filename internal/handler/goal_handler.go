package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
	"github.com/yearpace/internal/service"
)

type goalPayload struct {
	Year           int                `json:"year"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	YearlyTarget   float64            `json:"yearly_target"`
	ActualProgress *float64           `json:"actual_progress"`
	Unit           string             `json:"unit"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	MonthlyTargets map[string]float64 `json:"monthly_targets"`
}

// ListGoals 返回目标列表，可按年度与关键字过滤
func (a *API) ListGoals(c *gin.Context) {
	year, ok := parseOptionalInt(c.Query("year"))
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的年度")
		return
	}

	goals, err := a.goals.List(service.GoalFilter{Year: year, Search: c.Query("search")})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取目标列表失败")
		return
	}

	items := make([]gin.H, 0, len(goals))
	for _, goal := range goals {
		items = append(items, goalToPayload(goal))
	}

	c.JSON(http.StatusOK, gin.H{"goals": items})
}

// GetGoal 返回单个目标详情
func (a *API) GetGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	goal, err := a.goals.Get(id)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// CreateGoal 创建目标
func (a *API) CreateGoal(c *gin.Context) {
	input, ok := parseGoalInput(c)
	if !ok {
		return
	}

	goal, err := a.goals.Create(input)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// UpdateGoal 更新目标，未提供 actual_progress 时保留已登记的进度
func (a *API) UpdateGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	input, ok := parseGoalInput(c)
	if !ok {
		return
	}

	goal, err := a.goals.Update(id, input)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// DeleteGoal 删除目标及仅关联该目标的习惯
func (a *API) DeleteGoal(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	if err := a.goals.Delete(id); err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// RecordGoalProgress 登记一笔目标进度，日期缺省为今天
func (a *API) RecordGoalProgress(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	var payload struct {
		Amount float64 `json:"amount"`
		Date   string  `json:"date"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	on, ok := a.today(c)
	if !ok {
		return
	}
	if strings.TrimSpace(payload.Date) != "" {
		parsed, err := progress.ParseDate(strings.TrimSpace(payload.Date))
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的日期")
			return
		}
		on = parsed
	}

	goal, err := a.goals.RecordProgress(id, payload.Amount, on)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goalToPayload(*goal)})
}

// GetGoalProjection 返回目标在今天（或 now 参数指定日期）的进度推算
func (a *API) GetGoalProjection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的目标ID")
		return
	}

	now, ok := a.today(c)
	if !ok {
		return
	}

	report, err := a.progress.GoalProgress(id, now)
	if err != nil {
		handleGoalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"goal":     goalToPayload(report.Goal),
		"progress": serializeGoalProgress(report.Progress),
		"today":    now.Format(progress.DateLayout),
	})
}

func parseGoalInput(c *gin.Context) (service.GoalInput, bool) {
	var payload goalPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.GoalInput{}, false
	}

	startPtr, ok := parseOptionalDate(payload.StartDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return service.GoalInput{}, false
	}
	endPtr, ok := parseOptionalDate(payload.EndDate)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return service.GoalInput{}, false
	}

	return service.GoalInput{
		Year:           payload.Year,
		Title:          payload.Title,
		Description:    payload.Description,
		YearlyTarget:   payload.YearlyTarget,
		ActualProgress: payload.ActualProgress,
		Unit:           payload.Unit,
		StartDate:      startPtr,
		EndDate:        endPtr,
		MonthlyTargets: payload.MonthlyTargets,
	}, true
}

func goalToPayload(goal db.Goal) gin.H {
	return gin.H{
		"id":               goal.ID,
		"year":             goal.Year,
		"title":            goal.Title,
		"description":      goal.Description,
		"description_html": descriptionHTML(goal.Description),
		"yearly_target":    goal.YearlyTarget,
		"actual_progress":  goal.ActualProgress,
		"unit":             goal.Unit,
		"start_date":       formatOptionalDate(goal.StartDate),
		"end_date":         formatOptionalDate(goal.EndDate),
		"monthly_targets":  goal.MonthlyTargets,
		"monthly_actuals":  goal.MonthlyActuals,
	}
}

func serializeGoalProgress(p progress.GoalProgress) gin.H {
	months := make([]gin.H, 0, len(p.Months))
	for _, month := range p.Months {
		months = append(months, gin.H{
			"month":  month.Month,
			"target": month.Target,
			"actual": month.Actual,
			"pct":    month.Pct,
		})
	}

	return gin.H{
		"yearly_progress_pct":      p.YearlyProgressPct,
		"quarterly_progress_pct":   p.QuarterlyProgressPct,
		"monthly_progress_pct":     p.MonthlyProgressPct,
		"on_track":                 p.OnTrack,
		"expected_by_now":          p.ExpectedByNow,
		"remaining":                p.Remaining,
		"days_passed":              p.DaysPassed,
		"days_remaining":           p.DaysRemaining,
		"total_days":               p.TotalDays,
		"projected_completion_pct": p.ProjectedCompletionPct,
		"daily_rate":               p.DailyRate,
		"months":                   months,
	}
}

func handleGoalError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGoalNotFound):
		respondError(c, http.StatusNotFound, "目标不存在")
	case errors.Is(err, service.ErrInvalidGoal):
		respondError(c, http.StatusBadRequest, "目标参数不合法")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
