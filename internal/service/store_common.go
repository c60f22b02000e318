// file: internal/service/store_common.go
package service

import (
	"strings"
	"time"
)

// tsLayout 定宽 UTC 格式，保证 TEXT 列上的范围比较与时间顺序一致
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation sqlite 唯一约束冲突
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
