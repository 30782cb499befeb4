package plan

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"quickplan/internal/calendar"
	xerrors "quickplan/internal/errors"
	"quickplan/internal/events"
	"quickplan/internal/urlid"
	"quickplan/pkg/logger"
)

const (
	// maxURLIDAttempts 是生成 URL id 冲突时的最大尝试次数。
	maxURLIDAttempts = 5
	// maxPublishAttempts 是可重试发布失败时的最大尝试次数。
	maxPublishAttempts = 2
)

// Cache 缓存 URL id 到计划的查询结果。未命中不是错误。
type Cache interface {
	Get(ctx context.Context, urlID string) (*Plan, bool)
	Set(ctx context.Context, plan *Plan)
	Delete(ctx context.Context, urlID string)
}

// Option 配置 Service。
type Option func(*Service)

// WithCache 设置计划缓存。
func WithCache(cache Cache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithPublisher 设置事件发布器。
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithURLIDGenerator 替换 URL id 生成函数，测试中用于制造冲突。
func WithURLIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newURLID = fn
		}
	}
}

// WithClock 替换当前时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service 实现计划的创建、加入与日期切换。
type Service struct {
	store     Store
	cache     Cache
	publisher events.Publisher
	newURLID  func() string
	now       func() time.Time
	logger    *slog.Logger
}

// NewService 构造计划服务。
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		cache:     noCache{},
		publisher: events.Nop{},
		newURLID:  urlid.New,
		now:       time.Now,
		logger:    logger.Named("plan"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ValidateName 检查计划名或参与者名。
func ValidateName(field, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, field+" cannot be empty", xerrors.WithMetadata("field", field))
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("%s is longer than %d characters", field, MaxNameLength),
			xerrors.WithMetadata("field", field))
	}
	return trimmed, nil
}

// CreatePlan 创建计划并分配 URL id。
func (s *Service) CreatePlan(ctx context.Context, name, description string) (*Plan, error) {
	name, err := ValidateName("plan name", name)
	if err != nil {
		return nil, err
	}

	var plan *Plan
	for attempt := 1; ; attempt++ {
		plan = &Plan{
			Name:        name,
			URLID:       s.newURLID(),
			Description: strings.TrimSpace(description),
			CreatedAt:   s.now().UTC(),
		}
		err = s.store.CreatePlan(ctx, plan)
		if err == nil {
			break
		}
		if !stdErrors.Is(err, ErrConflict) || attempt >= maxURLIDAttempts {
			return nil, err
		}
		s.logger.Warn("url id collision, retrying", slog.String("url_id", plan.URLID), slog.Int("attempt", attempt))
	}

	s.cache.Set(ctx, plan)
	event := events.New(events.TypePlanCreated, plan.URLID)
	event.PlanName = plan.Name
	s.publish(ctx, event)
	return clonePlan(plan), nil
}

// GetByURLID 查询计划，优先命中缓存。
func (s *Service) GetByURLID(ctx context.Context, urlID string) (*Plan, error) {
	if !urlid.Valid(urlID) {
		return nil, ErrNotFound
	}
	if plan, ok := s.cache.Get(ctx, urlID); ok {
		return plan, nil
	}
	plan, err := s.store.GetPlanByURLID(ctx, urlID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, plan)
	return plan, nil
}

// DeletePlan 删除计划及其数据。
func (s *Service) DeletePlan(ctx context.Context, urlID string) error {
	plan, err := s.GetByURLID(ctx, urlID)
	if err != nil {
		return err
	}
	if err := s.store.DeletePlan(ctx, plan.ID); err != nil {
		return err
	}
	s.cache.Delete(ctx, urlID)
	return nil
}

// JoinPlan 以 name 加入计划，返回带 WebID 的参与者。
func (s *Service) JoinPlan(ctx context.Context, urlID, name string) (*User, error) {
	name, err := ValidateName("user name", name)
	if err != nil {
		return nil, err
	}
	plan, err := s.GetByURLID(ctx, urlID)
	if err != nil {
		return nil, err
	}
	user := &User{
		PlanID:    plan.ID,
		WebID:     uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	event := events.New(events.TypeUserJoined, plan.URLID)
	event.UserName = user.Name
	s.publish(ctx, event)
	return cloneUser(user), nil
}

// Users 返回计划的参与者。
func (s *Service) Users(ctx context.Context, urlID string) ([]*User, error) {
	plan, err := s.GetByURLID(ctx, urlID)
	if err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, plan.ID)
}

// ToggleDate 切换参与者某天的可用状态，返回切换后的状态。
func (s *Service) ToggleDate(ctx context.Context, urlID, webID string, date calendar.Date) (bool, error) {
	if date.IsZero() {
		return false, xerrors.New(xerrors.CodeInvalidArgument, "date is required")
	}
	plan, err := s.GetByURLID(ctx, urlID)
	if err != nil {
		return false, err
	}
	user, err := s.store.GetUserByWebID(ctx, plan.ID, webID)
	if err != nil {
		return false, err
	}

	selected := true
	existing, err := s.store.GetUserDate(ctx, user.ID, date)
	switch {
	case err == nil:
		if err := s.store.DeleteUserDate(ctx, existing.ID); err != nil {
			return false, err
		}
		selected = false
	case stdErrors.Is(err, ErrNotFound):
		if err := s.store.CreateUserDate(ctx, &UserDate{UserID: user.ID, Date: date, CreatedAt: s.now().UTC()}); err != nil {
			return false, err
		}
	default:
		return false, err
	}

	event := events.New(events.TypeDateToggled, plan.URLID)
	event.UserName = user.Name
	event.Date = date.String()
	event.Selected = selected
	s.publish(ctx, event)
	return selected, nil
}

// Calendar 构造计划某月的日历视图。
func (s *Service) Calendar(ctx context.Context, urlID string, month time.Month, year int) (*Calendar, error) {
	if month < time.January || month > time.December {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid month %d", month))
	}
	plan, err := s.GetByURLID(ctx, urlID)
	if err != nil {
		return nil, err
	}

	weeks := calendar.MonthGrid(month, year)
	first := weeks[0][0]
	lastWeek := weeks[len(weeks)-1]
	last := lastWeek[len(lastWeek)-1]

	dates, err := s.store.ListPlanDates(ctx, plan.ID, first, last)
	if err != nil {
		return nil, err
	}
	selections := make(map[calendar.Date][]string)
	for _, d := range dates {
		selections[d.Date] = append(selections[d.Date], d.UserName)
	}

	cal := &Calendar{
		PlanURLID:  plan.URLID,
		Month:      month,
		Year:       year,
		Today:      calendar.FromTime(s.now().UTC()),
		Weeks:      weeks,
		Selections: selections,
	}
	cal.PrevMonth, cal.PrevYear = calendar.Previous(month, year)
	cal.NextMonth, cal.NextYear = calendar.Next(month, year)
	return cal, nil
}

// CurrentCalendar 返回当前月份的日历视图。
func (s *Service) CurrentCalendar(ctx context.Context, urlID string) (*Calendar, error) {
	today := s.now().UTC()
	return s.Calendar(ctx, urlID, today.Month(), today.Year())
}

// Close 释放存储与发布器，缓存实现了 io.Closer 时一并关闭。
func (s *Service) Close() error {
	errs := []error{s.publisher.Close(), s.store.Close()}
	if closer, ok := s.cache.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return stdErrors.Join(errs...)
}

// pinger 由能够检查连通性的存储实现，例如 SQL 存储。
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping 检查底层存储是否可用，内存存储总是可用。
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.store.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "ping store")
	}
	return nil
}

// publish 投递事件；可重试的失败再试一次，最终失败只记日志。
func (s *Service) publish(ctx context.Context, event events.Event) {
	var err error
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		if err = s.publisher.Publish(ctx, event); err == nil {
			return
		}
		if !xerrors.RetryableError(err) {
			break
		}
	}
	if _, ok := xerrors.From(err); !ok {
		err = xerrors.Wrap(xerrors.CodePublishFailure, err, "publish plan event")
	}
	s.logger.Log(ctx, xerrors.LogLevel(err), "event publish failed",
		slog.String("type", string(event.Type)),
		slog.String("plan", event.PlanURLID),
		slog.Any("error", err),
	)
}

type noCache struct{}

func (noCache) Get(context.Context, string) (*Plan, bool) { return nil, false }
func (noCache) Set(context.Context, *Plan)                {}
func (noCache) Delete(context.Context, string)            {}
