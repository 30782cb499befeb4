package plan

import (
	"context"

	"quickplan/internal/calendar"
)

// Store 抽象了计划数据的持久化接口。
// Create* 方法会回填 ID 与 CreatedAt。
type Store interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id int64) (*Plan, error)
	GetPlanByURLID(ctx context.Context, urlID string) (*Plan, error)
	// DeletePlan 同时删除计划下的参与者与日期。
	DeletePlan(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context, planID int64) ([]*User, error)
	GetUserByWebID(ctx context.Context, planID int64, webID string) (*User, error)

	CreateUserDate(ctx context.Context, date *UserDate) error
	CreateUserDates(ctx context.Context, userID int64, dates []calendar.Date) ([]int64, error)
	GetUserDate(ctx context.Context, userID int64, date calendar.Date) (*UserDate, error)
	DeleteUserDate(ctx context.Context, id int64) error
	// ListPlanDates 返回 [from, to] 区间内的日期标记，按日期和参与者名排序。
	ListPlanDates(ctx context.Context, planID int64, from, to calendar.Date) ([]PlanDate, error)

	Close() error
}
