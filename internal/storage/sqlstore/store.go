package sqlstore

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"quickplan/internal/calendar"
	xerrors "quickplan/internal/errors"
	"quickplan/internal/plan"
	"quickplan/pkg/logger"
)

// Store 是基于 database/sql 的 plan.Store 实现。
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New 包装已打开的连接池并执行迁移。Close 会关闭 db。
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  logger.Named("storage." + dialect.Name()),
	}
	if err := s.runMigrations(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Ping 检查数据库连通性，供 /healthz 使用。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭连接池。
func (s *Store) Close() error {
	return s.db.Close()
}

// translate 把驱动错误映射为 plan 包的错误。
func (s *Store) translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case stdErrors.Is(err, sql.ErrNoRows):
		return plan.ErrNotFound
	case s.dialect.IsUniqueViolation(err):
		return plan.ErrConflict
	case s.dialect.IsForeignKeyViolation(err):
		return plan.ErrNotFound
	default:
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, op, xerrors.WithMetadata("driver", s.dialect.Name()))
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// CreatePlan 实现 plan.Store。
func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	createdAt := toMillis(p.CreatedAt)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO plan (name, url_id, description, created_at) VALUES (?, ?, ?, ?)`,
		p.Name, p.URLID, p.Description, createdAt)
	if err != nil {
		return s.translate(err, "insert plan")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return s.translate(err, "read plan id")
	}
	p.ID = id
	p.CreatedAt = fromMillis(createdAt)
	return nil
}

const planColumns = `id, name, url_id, description, created_at`

func scanPlan(row interface{ Scan(...any) error }) (*plan.Plan, error) {
	var (
		p         plan.Plan
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.URLID, &p.Description, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

// GetPlan 实现 plan.Store。
func (s *Store) GetPlan(ctx context.Context, id int64) (*plan.Plan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plan WHERE id = ?`, id))
	if err != nil {
		return nil, s.translate(err, "get plan")
	}
	return p, nil
}

// GetPlanByURLID 实现 plan.Store。
func (s *Store) GetPlanByURLID(ctx context.Context, urlID string) (*plan.Plan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plan WHERE url_id = ?`, urlID))
	if err != nil {
		return nil, s.translate(err, "get plan by url id")
	}
	return p, nil
}

// DeletePlan 依赖外键级联删除参与者与日期。
func (s *Store) DeletePlan(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plan WHERE id = ?`, id)
	if err != nil {
		return s.translate(err, "delete plan")
	}
	return s.expectAffected(res, "delete plan")
}

func (s *Store) expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return s.translate(err, op)
	}
	if n == 0 {
		return plan.ErrNotFound
	}
	return nil
}

// CreateUser 实现 plan.Store。
func (s *Store) CreateUser(ctx context.Context, u *plan.User) error {
	createdAt := toMillis(u.CreatedAt)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO plan_user (plan_id, web_id, name, created_at) VALUES (?, ?, ?, ?)`,
		u.PlanID, u.WebID, u.Name, createdAt)
	if err != nil {
		return s.translate(err, "insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return s.translate(err, "read user id")
	}
	u.ID = id
	u.CreatedAt = fromMillis(createdAt)
	return nil
}

const userColumns = `id, plan_id, web_id, name, created_at`

func scanUser(row interface{ Scan(...any) error }) (*plan.User, error) {
	var (
		u         plan.User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.PlanID, &u.WebID, &u.Name, &createdAt); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

// ListUsers 实现 plan.Store。
func (s *Store) ListUsers(ctx context.Context, planID int64) ([]*plan.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM plan_user WHERE plan_id = ? ORDER BY id`, planID)
	if err != nil {
		return nil, s.translate(err, "list users")
	}
	defer rows.Close()

	users := make([]*plan.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.translate(err, "scan user")
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.translate(err, "list users")
	}
	return users, nil
}

// GetUserByWebID 实现 plan.Store。
func (s *Store) GetUserByWebID(ctx context.Context, planID int64, webID string) (*plan.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM plan_user WHERE plan_id = ? AND web_id = ?`, planID, webID))
	if err != nil {
		return nil, s.translate(err, "get user")
	}
	return u, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertUserDate(ctx context.Context, db execer, d *plan.UserDate) error {
	createdAt := toMillis(d.CreatedAt)
	res, err := db.ExecContext(ctx,
		`INSERT INTO user_date (user_id, date, created_at) VALUES (?, ?, ?)`,
		d.UserID, d.Date.String(), createdAt)
	if err != nil {
		return s.translate(err, "insert user date")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return s.translate(err, "read user date id")
	}
	d.ID = id
	d.CreatedAt = fromMillis(createdAt)
	return nil
}

// CreateUserDate 实现 plan.Store。
func (s *Store) CreateUserDate(ctx context.Context, d *plan.UserDate) error {
	return s.insertUserDate(ctx, s.db, d)
}

// CreateUserDates 在一个事务内写入多天。
func (s *Store) CreateUserDates(ctx context.Context, userID int64, dates []calendar.Date) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.translate(err, "begin transaction")
	}
	ids := make([]int64, 0, len(dates))
	for _, date := range dates {
		record := &plan.UserDate{UserID: userID, Date: date}
		if err := s.insertUserDate(ctx, tx, record); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		ids = append(ids, record.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.translate(err, "commit user dates")
	}
	return ids, nil
}

// GetUserDate 实现 plan.Store。
func (s *Store) GetUserDate(ctx context.Context, userID int64, date calendar.Date) (*plan.UserDate, error) {
	var (
		d         plan.UserDate
		raw       string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, date, created_at FROM user_date WHERE user_id = ? AND date = ?`,
		userID, date.String()).Scan(&d.ID, &d.UserID, &raw, &createdAt)
	if err != nil {
		return nil, s.translate(err, "get user date")
	}
	if d.Date, err = calendar.Parse(raw); err != nil {
		return nil, s.translate(err, "parse user date")
	}
	d.CreatedAt = fromMillis(createdAt)
	return &d, nil
}

// DeleteUserDate 实现 plan.Store。
func (s *Store) DeleteUserDate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_date WHERE id = ?`, id)
	if err != nil {
		return s.translate(err, "delete user date")
	}
	return s.expectAffected(res, "delete user date")
}

// ListPlanDates 实现 plan.Store。日期以 YYYY-MM-DD 存储，字符串比较即日期比较。
func (s *Store) ListPlanDates(ctx context.Context, planID int64, from, to calendar.Date) ([]plan.PlanDate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u.id, u.name, d.date
FROM user_date d
JOIN plan_user u ON u.id = d.user_id
WHERE u.plan_id = ? AND d.date >= ? AND d.date <= ?`, planID, from.String(), to.String())
	if err != nil {
		return nil, s.translate(err, "list plan dates")
	}
	defer rows.Close()

	result := make([]plan.PlanDate, 0)
	for rows.Next() {
		var (
			pd  plan.PlanDate
			raw string
		)
		if err := rows.Scan(&pd.UserID, &pd.UserName, &raw); err != nil {
			return nil, s.translate(err, "scan plan date")
		}
		if pd.Date, err = calendar.Parse(raw); err != nil {
			return nil, s.translate(err, "parse plan date")
		}
		result = append(result, pd)
	}
	if err := rows.Err(); err != nil {
		return nil, s.translate(err, "list plan dates")
	}
	plan.SortPlanDates(result)
	return result, nil
}

var _ plan.Store = (*Store)(nil)

// String 用于日志。
func (s *Store) String() string {
	return fmt.Sprintf("sqlstore(%s)", s.dialect.Name())
}
