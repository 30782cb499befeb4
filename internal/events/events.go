// Package events publishes plan activity (plan created, user joined, date
// toggled) to optional downstream sinks.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type 是事件类型。
type Type string

const (
	TypePlanCreated Type = "plan.created"
	TypeUserJoined  Type = "user.joined"
	TypeDateToggled Type = "date.toggled"
)

// Event 描述一次计划活动。
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	PlanURLID  string    `json:"plan_url_id"`
	PlanName   string    `json:"plan_name,omitempty"`
	UserName   string    `json:"user_name,omitempty"`
	Date       string    `json:"date,omitempty"`
	Selected   bool      `json:"selected,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New 构造事件并填充 ID 与时间。
func New(t Type, planURLID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		PlanURLID:  planURLID,
		OccurredAt: time.Now().UTC(),
	}
}

// Encode 把事件编码为 JSON。
func Encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Decode 解析 JSON 事件。
func Decode(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

// Publisher 负责把事件投递到下游。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop 丢弃所有事件。
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Fanout 将事件广播给多个 Publisher。
type Fanout struct {
	publishers []Publisher
}

// NewFanout 创建 Fanout，nil 会被忽略。
func NewFanout(publishers ...Publisher) *Fanout {
	set := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			set = append(set, p)
		}
	}
	return &Fanout{publishers: set}
}

// Publish 投递到所有下游，汇总错误。
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close 关闭所有下游。
func (f *Fanout) Close() error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
