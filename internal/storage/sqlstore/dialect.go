package sqlstore

import "io/fs"

// Dialect 描述数据库方言的差异。
type Dialect interface {
	Name() string
	// MigrationsTableDDL 返回幂等创建 schema_migrations(version, applied_at) 的语句。
	MigrationsTableDDL() string
	// Migrations 返回按文件名排序执行的 SQL 迁移目录。
	Migrations() fs.FS
	// IsUniqueViolation 判断错误是否为唯一约束冲突。
	IsUniqueViolation(err error) bool
	// IsForeignKeyViolation 判断错误是否为外键约束失败。
	IsForeignKeyViolation(err error) bool
}
