package service

import (
	"fmt"
	"time"
)

// Clock 便于测试时固定当前时间
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// ItemError 批处理中单个条目的失败，不中断整个批次
type ItemError struct {
	Kind string `json:"kind"`
	ID   uint64 `json:"id"`
	Err  string `json:"error"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Kind, e.ID, e.Err)
}

func itemError(kind string, id uint64, err error) ItemError {
	return ItemError{Kind: kind, ID: id, Err: err.Error()}
}

// normalize 统一使用UTC毫秒精度，与MySQL datetime(3)一致
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
