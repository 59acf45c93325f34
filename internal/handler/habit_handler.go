package handler

import (
	"cmp"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yearpace/internal/db"
	"github.com/yearpace/internal/progress"
	"github.com/yearpace/internal/service"
)

const (
	defaultHabitView = "monthly"
	heatmapDays      = 365
)

type heatmapHabit struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type heatmapDay struct {
	Date   string         `json:"date"`
	Habits []heatmapHabit `json:"habits"`
}

type heatmapRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type heatmapSummary struct {
	TotalLogs  int `json:"total_logs"`
	ActiveDays int `json:"active_days"`
	HabitCount int `json:"habit_count"`
}

type habitHeatmapPayload struct {
	Range       heatmapRange   `json:"range"`
	Days        []heatmapDay   `json:"days"`
	Habits      []heatmapHabit `json:"habits"`
	Summary     heatmapSummary `json:"summary"`
	GeneratedAt string         `json:"generated_at"`
}

type habitPayload struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Trigger        string `json:"trigger"`
	Location       string `json:"location"`
	TimeOfDay      string `json:"time_of_day"`
	FrequencyUnit  string `json:"frequency_unit"`
	FrequencyCount int    `json:"frequency_count"`
	FrequencyDays  []int  `json:"frequency_days"`
	Status         string `json:"status"`
	Year           int    `json:"year"`
	GoalIDs        []uint `json:"goal_ids"`
}

// ListHabits 返回习惯列表 JSON
func (a *API) ListHabits(c *gin.Context) {
	year, ok := parseOptionalInt(c.Query("year"))
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的年度")
		return
	}

	var goalID uint
	if ids := parseUintQuerySlice([]string{c.Query("goal_id")}); len(ids) > 0 {
		goalID = ids[0]
	}

	filter := service.HabitFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		GoalID: goalID,
		Year:   year,
	}

	habits, err := a.habits.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}

	respondHabitSuccess(c, http.StatusOK, gin.H{"habits": items})
}

// GetHabit 返回单个习惯详情
func (a *API) GetHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Get(id)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	respondHabitSuccess(c, http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// GetHabitHeatmap 返回截至今天的一年内习惯打卡热力图
func (a *API) GetHabitHeatmap(c *gin.Context) {
	end, ok := a.today(c)
	if !ok {
		return
	}
	start := end.AddDate(0, 0, -(heatmapDays - 1))

	entries, err := a.habitLogs.HeatmapRange(start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取热力图数据失败")
		return
	}

	payload := buildHabitHeatmapPayload(entries, start, end, a.clock().In(a.location))
	respondHabitSuccess(c, http.StatusOK, payload)
}

func buildHabitHeatmapPayload(entries []service.HabitHeatmapEntry, start, end, generatedAt time.Time) habitHeatmapPayload {
	dayMap := make(map[string][]heatmapHabit)
	legendMap := make(map[uint]heatmapHabit)

	for _, entry := range entries {
		habit := heatmapHabit{ID: entry.HabitID, Name: entry.HabitName}
		key := entry.LogDate.Format(progress.DateLayout)
		dayMap[key] = append(dayMap[key], habit)
		if _, exists := legendMap[habit.ID]; !exists {
			legendMap[habit.ID] = habit
		}
	}

	days := make([]heatmapDay, 0, len(dayMap))
	for date, habits := range dayMap {
		slices.SortFunc(habits, func(a, b heatmapHabit) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		days = append(days, heatmapDay{Date: date, Habits: habits})
	}

	slices.SortFunc(days, func(a, b heatmapDay) int {
		return cmp.Compare(a.Date, b.Date)
	})

	legend := make([]heatmapHabit, 0, len(legendMap))
	for _, item := range legendMap {
		legend = append(legend, item)
	}

	slices.SortFunc(legend, func(a, b heatmapHabit) int {
		if diff := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ID, b.ID)
	})

	payload := habitHeatmapPayload{
		Range: heatmapRange{
			Start: start.Format(progress.DateLayout),
			End:   end.Format(progress.DateLayout),
		},
		Days:    days,
		Habits:  legend,
		Summary: heatmapSummary{TotalLogs: len(entries), ActiveDays: len(dayMap), HabitCount: len(legend)},
	}

	if !generatedAt.IsZero() {
		payload.GeneratedAt = generatedAt.Format(time.RFC3339)
	}

	return payload
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	input, ok := a.parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Create(input)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	respondHabitSuccess(c, http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	input, ok := a.parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Update(id, input)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	respondHabitSuccess(c, http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 删除习惯
func (a *API) DeleteHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	if err := a.habits.Delete(id); err != nil {
		handleHabitError(c, err)
		return
	}

	respondHabitSuccess(c, http.StatusOK, gin.H{"deleted": true})
}

// GetHabitCalendar 返回日期区间内的打卡数据和统计
func (a *API) GetHabitCalendar(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Get(habitID)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	now, ok := a.today(c)
	if !ok {
		return
	}

	view := c.DefaultQuery("view", defaultHabitView)
	start, end := resolveRange(c.Query("start"), view, now)
	filter := service.HabitLogFilter{HabitID: habit.ID, Start: start, End: end}

	logs, err := a.habitLogs.ListBetween(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	stats, err := a.habitLogs.StatsBetween(filter, *habit, now)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	payload := gin.H{
		"habit": habitToPayload(*habit),
		"logs":  serializeHabitLogs(logs),
		"stats": serializeHabitStats(stats),
		"range": gin.H{"start": start.Format(progress.DateLayout), "end": end.Format(progress.DateLayout), "view": view},
	}

	respondHabitSuccess(c, http.StatusOK, payload)
}

// GetHabitConsistency 返回习惯在主目标周期内的完成率与连续天数
func (a *API) GetHabitConsistency(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	now, ok := a.today(c)
	if !ok {
		return
	}

	report, err := a.progress.HabitConsistency(habitID, now)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	respondHabitSuccess(c, http.StatusOK, serializeHabitReport(*report))
}

// QuickLogHabit 记录某天的打卡，同一天重复提交会覆盖旧记录
func (a *API) QuickLogHabit(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	var payload struct {
		LogDate string `json:"log_date"` // 2006-01-02，缺省为今天
		LogTime string `json:"log_time"` // 15:04，可选
		Status  string `json:"status"`   // done/skipped，缺省为 done
		Note    string `json:"note"`
	}

	if isJSONRequest(c) {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	} else {
		payload.LogDate = c.PostForm("log_date")
		payload.LogTime = c.PostForm("log_time")
		payload.Status = c.PostForm("status")
		payload.Note = c.PostForm("note")
	}

	if _, err := a.habits.Get(habitID); err != nil {
		handleHabitError(c, err)
		return
	}

	logDate, ok := a.today(c)
	if !ok {
		return
	}
	if strings.TrimSpace(payload.LogDate) != "" {
		parsed, err := progress.ParseDate(strings.TrimSpace(payload.LogDate))
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的打卡日期")
			return
		}
		logDate = parsed
	}

	var logTimePtr *time.Time
	if payload.LogTime != "" {
		if t, err := time.ParseInLocation("15:04", payload.LogTime, a.location); err == nil {
			combined := time.Date(logDate.Year(), logDate.Month(), logDate.Day(), t.Hour(), t.Minute(), 0, 0, a.location)
			logTimePtr = &combined
		} else {
			respondError(c, http.StatusBadRequest, "无效的打卡时间")
			return
		}
	}

	logEntry, err := a.habitLogs.Upsert(service.HabitLogInput{
		HabitID: habitID,
		LogDate: logDate,
		LogTime: logTimePtr,
		Status:  payload.Status,
		Note:    payload.Note,
		Source:  "manual",
	})
	if err != nil {
		handleHabitError(c, err)
		return
	}

	respondHabitSuccess(c, http.StatusOK, gin.H{"log": serializeHabitLog(*logEntry)})
}

// DeleteHabitLog 删除单条打卡
func (a *API) DeleteHabitLog(c *gin.Context) {
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	logID, err := parseUintParam(c, "logId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的打卡记录ID")
		return
	}

	if err := a.habitLogs.Delete(habitID, logID); err != nil {
		handleHabitError(c, err)
		return
	}

	respondHabitSuccess(c, http.StatusOK, gin.H{"deleted": true, "habit_id": habitID})
}

func (a *API) parseHabitInput(c *gin.Context) (service.HabitInput, bool) {
	var payload habitPayload

	if isJSONRequest(c) {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return service.HabitInput{}, false
		}
	} else {
		payload.Name = c.PostForm("name")
		payload.Description = c.PostForm("description")
		payload.Trigger = c.PostForm("trigger")
		payload.Location = c.PostForm("location")
		payload.TimeOfDay = c.PostForm("time_of_day")
		payload.FrequencyUnit = c.PostForm("frequency_unit")
		payload.Status = c.PostForm("status")
		payload.GoalIDs = parseUintQuerySlice(c.PostFormArray("goal_ids"))

		var ok bool
		if payload.FrequencyCount, ok = parseOptionalInt(c.PostForm("frequency_count")); !ok {
			respondError(c, http.StatusBadRequest, "目标频率应为数字")
			return service.HabitInput{}, false
		}
		if payload.Year, ok = parseOptionalInt(c.PostForm("year")); !ok {
			respondError(c, http.StatusBadRequest, "无效的年度")
			return service.HabitInput{}, false
		}
		if payload.FrequencyDays, ok = parseIntSlice(c.PostFormArray("frequency_days")); !ok {
			respondError(c, http.StatusBadRequest, "频率日期应为数字")
			return service.HabitInput{}, false
		}
	}

	return service.HabitInput{
		Name:           payload.Name,
		Description:    payload.Description,
		Trigger:        payload.Trigger,
		Location:       payload.Location,
		TimeOfDay:      payload.TimeOfDay,
		FrequencyUnit:  payload.FrequencyUnit,
		FrequencyCount: payload.FrequencyCount,
		FrequencyDays:  payload.FrequencyDays,
		Status:         payload.Status,
		Year:           payload.Year,
		GoalIDs:        payload.GoalIDs,
	}, true
}

func habitToPayload(habit db.Habit) gin.H {
	goalIDs := make([]uint, 0, len(habit.Goals))
	for _, goal := range habit.Goals {
		goalIDs = append(goalIDs, goal.ID)
	}

	days := habit.FrequencyDays
	if days == nil {
		days = []int{}
	}

	return gin.H{
		"id":               habit.ID,
		"name":             habit.Name,
		"description":      habit.Description,
		"description_html": descriptionHTML(habit.Description),
		"trigger":          habit.Trigger,
		"location":         habit.Location,
		"time_of_day":      habit.TimeOfDay,
		"frequency_unit":   habit.FrequencyUnit,
		"frequency_count":  habit.FrequencyCount,
		"frequency_days":   days,
		"status":           habit.Status,
		"year":             habit.Year,
		"goal_ids":         goalIDs,
	}
}

func serializeHabitLogs(logs []db.HabitLog) []gin.H {
	items := make([]gin.H, 0, len(logs))
	for _, log := range logs {
		items = append(items, serializeHabitLog(log))
	}
	return items
}

func serializeHabitLog(log db.HabitLog) gin.H {
	payload := gin.H{
		"id":       log.ID,
		"habit_id": log.HabitID,
		"log_date": log.LogDate.Format(progress.DateLayout),
		"status":   log.Status,
		"source":   log.Source,
		"note":     log.Note,
	}
	if log.LogTime != nil {
		payload["log_time"] = log.LogTime.Format(time.RFC3339)
	}
	return payload
}

func serializeHabitStats(stats *service.HabitStats) gin.H {
	return gin.H{
		"range_start":     stats.RangeStart.Format(progress.DateLayout),
		"range_end":       stats.RangeEnd.Format(progress.DateLayout),
		"completed_count": stats.CompletedCount,
		"skipped_count":   stats.SkippedCount,
		"target_count":    stats.TargetCount,
		"completion_rate": stats.CompletionRate,
		"current_streak":  stats.CurrentStreak,
		"longest_streak":  stats.LongestStreak,
	}
}

func serializeConsistency(c progress.Consistency) gin.H {
	return gin.H{
		"consistency_pct": c.ConsistencyPct,
		"completed":       c.Completed,
		"skipped":         c.Skipped,
		"missed":          c.Missed,
		"expected":        c.Expected,
		"current_streak":  c.CurrentStreak,
		"longest_streak":  c.LongestStreak,
	}
}

func serializeHabitReport(report service.HabitReport) gin.H {
	payload := gin.H{
		"habit":       habitToPayload(report.Habit),
		"goal_id":     nil,
		"consistency": serializeConsistency(report.Consistency),
	}
	if report.Goal != nil {
		payload["goal_id"] = report.Goal.ID
	}
	return payload
}

func respondHabitSuccess(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// resolveRange 根据视图计算日历区间：weekly 为所在周（周一开始），其余为所在月
func resolveRange(startStr, view string, today time.Time) (time.Time, time.Time) {
	start := today
	if startStr != "" {
		if parsed, err := progress.ParseDate(startStr); err == nil {
			start = parsed
		}
	}
	start = progress.DateOf(start)

	switch strings.ToLower(view) {
	case "weekly":
		weekday := int(start.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = start.AddDate(0, 0, -weekday+1)
		end := start.AddDate(0, 0, 6)
		return start, end
	default:
		start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		return start, end
	}
}

func handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrHabitLogNotFound):
		respondError(c, http.StatusNotFound, "打卡记录不存在")
	case errors.Is(err, service.ErrGoalNotFound):
		respondError(c, http.StatusBadRequest, "关联的目标不存在")
	case errors.Is(err, service.ErrHabitInvalidFrequency), errors.Is(err, progress.ErrConfiguration):
		respondError(c, http.StatusBadRequest, "频率配置无效")
	case errors.Is(err, service.ErrInvalidLogStatus):
		respondError(c, http.StatusBadRequest, "无效的打卡状态")
	case errors.Is(err, service.ErrInvalidHabit):
		respondError(c, http.StatusBadRequest, "习惯参数不合法")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
