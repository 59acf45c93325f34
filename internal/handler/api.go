package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yearpace/internal/progress"
	"github.com/yearpace/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	goals     *service.GoalService
	habits    *service.HabitService
	habitLogs *service.HabitLogService
	progress  *service.ProgressService
	location  *time.Location
	clock     func() time.Time
}

// NewAPI constructs a handler set with shared services.
// loc 决定“今天”对应的日历日期，为空时使用本地时区。
func NewAPI(gdb *gorm.DB, loc *time.Location) *API {
	if loc == nil {
		loc = time.Local
	}

	return &API{
		goals:     service.NewGoalService(gdb),
		habits:    service.NewHabitService(gdb),
		habitLogs: service.NewHabitLogService(gdb),
		progress:  service.NewProgressService(gdb),
		location:  loc,
		clock:     time.Now,
	}
}

// today 返回本次请求的计算日期。
// 查询参数 now=YYYY-MM-DD 可覆盖当前日期，用于预览历史或未来某天的进度。
func (a *API) today(c *gin.Context) (time.Time, bool) {
	if raw := strings.TrimSpace(c.Query("now")); raw != "" {
		parsed, err := progress.ParseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的日期参数")
			return time.Time{}, false
		}
		return parsed, true
	}

	return progress.DateOf(a.clock().In(a.location)), true
}
