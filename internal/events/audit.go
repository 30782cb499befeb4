package events

import (
	"context"
	"log/slog"

	"quickplan/pkg/logger"
)

// Audit 把事件写入审计日志。
type Audit struct{}

func (Audit) Publish(ctx context.Context, event Event) error {
	logger.Audit().LogAttrs(ctx, slog.LevelInfo, "plan activity",
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("plan", event.PlanURLID),
		slog.String("user", event.UserName),
		slog.String("date", event.Date),
		slog.Bool("selected", event.Selected),
	)
	return nil
}

func (Audit) Close() error { return nil }
