package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yearpace/internal/handler"
	"gorm.io/gorm"
)

const (
	sessionName     = "yearpace_session"
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(gdb *gorm.DB, sessionSecret string, loc *time.Location) *gin.Engine {
	r := gin.Default()
	r.Use(requestID())

	// 配置会话中间件，保存看板选择的年度
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := handler.NewAPI(gdb, loc)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/dashboard", api.GetDashboard)
		apiGroup.POST("/year", api.SelectYear)

		goals := apiGroup.Group("/goals")
		{
			goals.GET("", api.ListGoals)
			goals.POST("", api.CreateGoal)
			goals.GET("/:id", api.GetGoal)
			goals.PUT("/:id", api.UpdateGoal)
			goals.DELETE("/:id", api.DeleteGoal)
			goals.POST("/:id/progress", api.RecordGoalProgress)
			goals.GET("/:id/projection", api.GetGoalProjection)
		}

		habits := apiGroup.Group("/habits")
		{
			habits.GET("", api.ListHabits)
			habits.POST("", api.CreateHabit)
			habits.GET("/heatmap", api.GetHabitHeatmap)
			habits.GET("/:id", api.GetHabit)
			habits.PUT("/:id", api.UpdateHabit)
			habits.DELETE("/:id", api.DeleteHabit)
			habits.GET("/:id/calendar", api.GetHabitCalendar)
			habits.GET("/:id/consistency", api.GetHabitConsistency)
			habits.POST("/:id/logs", api.QuickLogHabit)
			habits.DELETE("/:id/logs/:logId", api.DeleteHabitLog)
		}
	}

	return r
}

// requestID 为每个请求分配 ID，客户端已携带时沿用
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
