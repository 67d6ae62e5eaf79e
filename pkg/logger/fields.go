package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// NewContext 绑定日志条目到ctx，下游通过 FromContext 继承其字段
func NewContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext 返回ctx绑定的日志条目，没有时返回默认Log
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(Log)
}

// WithRun 计提批次日志，结算和到期扫描的日志都挂在同一个 run_id 下
func WithRun(runID string, asOf time.Time, force bool) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"run_id": runID,
		"as_of":  asOf.UTC().Format(time.RFC3339),
		"force":  force,
	})
}

// EntryFields 收益计划条目
func EntryFields(entryID uint64, positionType string, positionID, memberID uint64) logrus.Fields {
	return logrus.Fields{
		"entry_id":      entryID,
		"position_type": positionType,
		"position_id":   positionID,
		"member_id":     memberID,
	}
}

// PositionFields memberID 为0时不输出
func PositionFields(positionType string, positionID, memberID uint64) logrus.Fields {
	fields := logrus.Fields{
		"position_type": positionType,
		"position_id":   positionID,
	}
	if memberID != 0 {
		fields["member_id"] = memberID
	}
	return fields
}
