package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pageParams(c *gin.Context) (page, size int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func boolQuery(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

// timeQuery accepts RFC3339 timestamps or plain YYYY-MM-DD dates (read as UTC midnight).
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be RFC3339 or YYYY-MM-DD")
	}
	return &t, nil
}

func bindError(err error) error {
	return appErrors.Derive(appErrors.ErrValidation, err, "invalid payload")
}
