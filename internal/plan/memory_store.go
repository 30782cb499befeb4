package plan

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"quickplan/internal/calendar"
	xerrors "quickplan/internal/errors"
)

// MemoryStore 以内存方式保存计划数据，主要用于测试与本地开发。
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	plans  map[int64]*Plan
	users  map[int64]*User
	dates  map[int64]*UserDate
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans: make(map[int64]*Plan),
		users: make(map[int64]*User),
		dates: make(map[int64]*UserDate),
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreatePlan 实现 Store 接口。
func (m *MemoryStore) CreatePlan(_ context.Context, plan *Plan) error {
	if plan == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "plan 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.plans {
		if existing.URLID == plan.URLID {
			return ErrConflict
		}
	}
	plan.ID = m.id()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	m.plans[plan.ID] = clonePlan(plan)
	return nil
}

// GetPlan 按 ID 返回计划。
func (m *MemoryStore) GetPlan(_ context.Context, id int64) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePlan(plan), nil
}

// GetPlanByURLID 按 URL id 返回计划。
func (m *MemoryStore) GetPlanByURLID(_ context.Context, urlID string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, plan := range m.plans {
		if plan.URLID == urlID {
			return clonePlan(plan), nil
		}
	}
	return nil, ErrNotFound
}

// DeletePlan 删除计划及其参与者与日期。
func (m *MemoryStore) DeletePlan(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return ErrNotFound
	}
	delete(m.plans, id)
	for userID, user := range m.users {
		if user.PlanID != id {
			continue
		}
		for dateID, date := range m.dates {
			if date.UserID == userID {
				delete(m.dates, dateID)
			}
		}
		delete(m.users, userID)
	}
	return nil
}

// CreateUser 在计划中创建参与者，同一计划内名字唯一（忽略大小写）。
func (m *MemoryStore) CreateUser(_ context.Context, user *User) error {
	if user == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "user 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[user.PlanID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.users {
		if existing.PlanID != user.PlanID {
			continue
		}
		if strings.EqualFold(existing.Name, user.Name) || existing.WebID == user.WebID {
			return ErrConflict
		}
	}
	user.ID = m.id()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

// ListUsers 按创建顺序返回计划的参与者。
func (m *MemoryStore) ListUsers(_ context.Context, planID int64) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]*User, 0)
	for _, user := range m.users {
		if user.PlanID == planID {
			users = append(users, cloneUser(user))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// GetUserByWebID 返回计划中的参与者。
func (m *MemoryStore) GetUserByWebID(_ context.Context, planID int64, webID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.PlanID == planID && user.WebID == webID {
			return cloneUser(user), nil
		}
	}
	return nil, ErrNotFound
}

// CreateUserDate 记录参与者的一天。
func (m *MemoryStore) CreateUserDate(_ context.Context, date *UserDate) error {
	if date == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "date 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createUserDateLocked(date)
}

func (m *MemoryStore) createUserDateLocked(date *UserDate) error {
	if _, ok := m.users[date.UserID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.dates {
		if existing.UserID == date.UserID && existing.Date == date.Date {
			return ErrConflict
		}
	}
	date.ID = m.id()
	if date.CreatedAt.IsZero() {
		date.CreatedAt = time.Now().UTC()
	}
	clone := *date
	m.dates[date.ID] = &clone
	return nil
}

// CreateUserDates 原子地记录多天，任意一天冲突时不写入任何数据。
func (m *MemoryStore) CreateUserDates(_ context.Context, userID int64, dates []calendar.Date) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[calendar.Date]struct{}, len(dates))
	for _, d := range dates {
		if _, dup := seen[d]; dup {
			return nil, ErrConflict
		}
		seen[d] = struct{}{}
		for _, existing := range m.dates {
			if existing.UserID == userID && existing.Date == d {
				return nil, ErrConflict
			}
		}
	}

	ids := make([]int64, 0, len(dates))
	for _, d := range dates {
		record := &UserDate{UserID: userID, Date: d}
		if err := m.createUserDateLocked(record); err != nil {
			for _, id := range ids {
				delete(m.dates, id)
			}
			return nil, err
		}
		ids = append(ids, record.ID)
	}
	return ids, nil
}

// GetUserDate 返回参与者某天的标记。
func (m *MemoryStore) GetUserDate(_ context.Context, userID int64, date calendar.Date) (*UserDate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, existing := range m.dates {
		if existing.UserID == userID && existing.Date == date {
			clone := *existing
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

// DeleteUserDate 删除一条日期标记。
func (m *MemoryStore) DeleteUserDate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dates[id]; !ok {
		return ErrNotFound
	}
	delete(m.dates, id)
	return nil
}

// ListPlanDates 实现 Store 接口。
func (m *MemoryStore) ListPlanDates(_ context.Context, planID int64, from, to calendar.Date) ([]PlanDate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]PlanDate, 0)
	for _, date := range m.dates {
		user, ok := m.users[date.UserID]
		if !ok || user.PlanID != planID {
			continue
		}
		if date.Date.Before(from) || to.Before(date.Date) {
			continue
		}
		result = append(result, PlanDate{UserID: user.ID, UserName: user.Name, Date: date.Date})
	}
	SortPlanDates(result)
	return result, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

// SortPlanDates 按日期、参与者名排序。
func SortPlanDates(dates []PlanDate) {
	sort.Slice(dates, func(i, j int) bool {
		if dates[i].Date != dates[j].Date {
			return dates[i].Date.Before(dates[j].Date)
		}
		return dates[i].UserName < dates[j].UserName
	})
}
