// Package plan holds the quickplan domain: plans, the participants who join
// them and the dates each participant marks as available.
package plan

import (
	"time"

	"quickplan/internal/calendar"
	xerrors "quickplan/internal/errors"
)

// MaxNameLength 是计划名与参与者名的最大字符数。
const MaxNameLength = 128

// Plan 是一个可分享的计划页面。
type Plan struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	URLID       string    `json:"url_id"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// User 是加入计划的参与者。
type User struct {
	ID        int64     `json:"id"`
	PlanID    int64     `json:"plan_id"`
	WebID     string    `json:"web_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDate 是参与者标记为可用的一天。
type UserDate struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	Date      calendar.Date `json:"date"`
	CreatedAt time.Time     `json:"created_at"`
}

// PlanDate 是计划维度的日期标记，附带参与者名。
type PlanDate struct {
	UserID   int64         `json:"user_id"`
	UserName string        `json:"user_name"`
	Date     calendar.Date `json:"date"`
}

var (
	// ErrNotFound 表示计划、参与者或日期不存在。
	ErrNotFound = xerrors.New(xerrors.CodeNotFound, "plan resource not found")
	// ErrConflict 表示唯一约束冲突，例如重复的 URL id 或参与者名。
	ErrConflict = xerrors.New(xerrors.CodeConflict, "plan resource already exists")
)

func clonePlan(p *Plan) *Plan {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
