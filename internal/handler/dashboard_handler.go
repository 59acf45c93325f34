package handler

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yearpace/internal/progress"
	"github.com/yearpace/internal/service"
)

const (
	selectedYearKey = "selected_year"
	minYear         = 1
	maxYear         = 9999
)

// GetDashboard 返回年度看板：各目标进度、关联习惯完成率与整体汇总。
// 年度优先取查询参数 year，其次取会话中选择的年度，最后为今天所在年度。
func (a *API) GetDashboard(c *gin.Context) {
	now, ok := a.today(c)
	if !ok {
		return
	}

	year := now.Year()
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || !validYear(parsed) {
			respondError(c, http.StatusBadRequest, "无效的年度")
			return
		}
		year = parsed
	} else if selected, ok := sessions.Default(c).Get(selectedYearKey).(int); ok && validYear(selected) {
		year = selected
	}

	dashboard, err := a.progress.Dashboard(year, now)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取年度看板失败")
		return
	}

	payload := serializeDashboard(dashboard)
	payload["today"] = now.Format(progress.DateLayout)
	c.JSON(http.StatusOK, payload)
}

// SelectYear 将选择的年度写入会话，后续看板请求默认使用该年度
func (a *API) SelectYear(c *gin.Context) {
	var payload struct {
		Year int `json:"year"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	if !validYear(payload.Year) {
		respondError(c, http.StatusBadRequest, "无效的年度")
		return
	}

	session := sessions.Default(c)
	session.Set(selectedYearKey, payload.Year)
	if err := session.Save(); err != nil {
		log.Printf("[handler] save session failed: %v", err)
		respondError(c, http.StatusInternalServerError, "保存年度失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"year": payload.Year})
}

func validYear(year int) bool {
	return year >= minYear && year <= maxYear
}

func serializeDashboard(dashboard *service.Dashboard) gin.H {
	goals := make([]gin.H, 0, len(dashboard.Goals))
	for _, card := range dashboard.Goals {
		habits := make([]gin.H, 0, len(card.Habits))
		for _, report := range card.Habits {
			habits = append(habits, serializeHabitReport(report))
		}

		item := goalToPayload(card.Goal)
		item["progress"] = serializeGoalProgress(card.Progress)
		item["habits"] = habits
		goals = append(goals, item)
	}

	unlinked := make([]gin.H, 0, len(dashboard.Unlinked))
	for _, report := range dashboard.Unlinked {
		unlinked = append(unlinked, serializeHabitReport(report))
	}

	return gin.H{
		"year":     dashboard.Year,
		"goals":    goals,
		"unlinked": unlinked,
		"summary": gin.H{
			"goal_count":          dashboard.Summary.GoalCount,
			"on_track_count":      dashboard.Summary.OnTrackCount,
			"habit_count":         dashboard.Summary.HabitCount,
			"average_consistency": dashboard.Summary.AverageConsistency,
		},
	}
}
