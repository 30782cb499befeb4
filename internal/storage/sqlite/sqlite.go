// Package sqlite opens the default plan store: a single SQLite file driven by
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"quickplan/deploy/migrations"
	"quickplan/internal/storage/sqlstore"
)

// Config 描述 SQLite 连接参数。
type Config struct {
	Path           string
	MaxConnections int
	// BusyTimeout 是等待写锁的时间。
	BusyTimeout time.Duration
}

// Open 打开（必要时创建）数据库文件并执行迁移。
func Open(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite 数据库路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 5
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("无法连接到 sqlite: %w", err)
	}

	store, err := sqlstore.New(ctx, db, Dialect{})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect 是 SQLite 的方言实现。
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) MigrationsTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT NOT NULL PRIMARY KEY,
	applied_at INTEGER NOT NULL
)`
}

func (Dialect) Migrations() fs.FS { return migrations.SQLite() }

func (Dialect) IsUniqueViolation(err error) bool {
	return hasCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) ||
		containsMessage(err, "UNIQUE constraint failed")
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	return hasCode(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) ||
		containsMessage(err, "FOREIGN KEY constraint failed")
}

func hasCode(err error, codes ...int) bool {
	var sqliteErr *sqlite.Error
	if !stdErrors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}

func containsMessage(err error, msg string) bool {
	return err != nil && strings.Contains(err.Error(), msg)
}
