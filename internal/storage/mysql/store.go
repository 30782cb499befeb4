package mysql

import (
	"context"
	stdErrors "errors"
	"io/fs"

	"github.com/go-sql-driver/mysql"

	"quickplan/deploy/migrations"
	"quickplan/internal/storage/sqlstore"
)

// MySQL 错误号。
const (
	errDuplicateEntry   = 1062
	errNoReferencedRow  = 1452
	errNoReferencedRow2 = 1216
)

// Open 连接 MySQL 并执行迁移。
func Open(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.New(ctx, db, Dialect{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect 是 MySQL 的方言实现。
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) MigrationsTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
	version VARCHAR(32) NOT NULL PRIMARY KEY,
	applied_at BIGINT NOT NULL
) ENGINE=InnoDB`
}

func (Dialect) Migrations() fs.FS { return migrations.MySQL() }

func (Dialect) IsUniqueViolation(err error) bool {
	return hasNumber(err, errDuplicateEntry)
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	return hasNumber(err, errNoReferencedRow, errNoReferencedRow2)
}

func hasNumber(err error, numbers ...uint16) bool {
	var mysqlErr *mysql.MySQLError
	if !stdErrors.As(err, &mysqlErr) {
		return false
	}
	for _, n := range numbers {
		if mysqlErr.Number == n {
			return true
		}
	}
	return false
}
