package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yearpace/internal/progress"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func isJSONRequest(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Content-Type"), "application/json")
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseUintQuerySlice(values []string) []uint {
	ids := make([]uint, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		parsed, err := strconv.ParseUint(trimmed, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint(parsed))
	}
	return ids
}

func parseIntSlice(values []string) ([]int, bool) {
	items := make([]int, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, false
		}
		items = append(items, parsed)
	}
	return items, true
}

// parseOptionalInt 解析可选的整数参数，空字符串返回 0
func parseOptionalInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseOptionalDate(value string) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}

	t, err := progress.ParseDate(value)
	if err != nil {
		return nil, false
	}

	return &t, true
}

func formatOptionalDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(progress.DateLayout)
}
