package sqlstore

import (
	"context"
	stdErrors "errors"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	xerrors "quickplan/internal/errors"
)

// migration 是一个 .sql 文件，版本号取文件名中第一个下划线之前的部分。
type migration struct {
	version    string
	file       string
	statements []string
}

func (s *Store) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.MigrationsTableDDL()); err != nil {
		return s.migrationError(err, "create schema_migrations table", "")
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}
	pending, err := readMigrations(s.dialect.Migrations())
	if err != nil {
		return s.migrationError(err, "read migrations", "")
	}

	for _, m := range pending {
		if applied[m.version] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		s.logger.Info("applied migration", "version", m.version, "file", m.file)
	}
	return nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, s.migrationError(err, "list applied migrations", "")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, s.migrationError(err, "scan applied migration", "")
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, s.migrationError(err, "list applied migrations", "")
	}
	return applied, nil
}

// apply 在单个事务中执行迁移并记录版本，失败时回滚。
func (s *Store) apply(ctx context.Context, m migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.migrationError(err, "begin migration", m.file)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			err = s.migrationError(stdErrors.Join(err, rbErr), "roll back migration", m.file)
		}
	}()

	for _, stmt := range m.statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return s.migrationError(err, "execute migration", m.file)
		}
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.version, time.Now().Unix()); err != nil {
		return s.migrationError(err, "record migration", m.file)
	}
	if err = tx.Commit(); err != nil {
		return s.migrationError(err, "commit migration", m.file)
	}
	return nil
}

// migrationError 标记为不可重试：重复执行同一份 DDL 不会改变结果。
func (s *Store) migrationError(err error, msg, file string) error {
	opts := []xerrors.Option{
		xerrors.WithMetadata("driver", s.dialect.Name()),
		xerrors.WithRetryable(false),
	}
	if file != "" {
		opts = append(opts, xerrors.WithMetadata("migration", file))
	}
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, msg, opts...)
}

func readMigrations(dir fs.FS) ([]migration, error) {
	files, err := fs.Glob(dir, "*.sql")
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, file := range files {
		content, err := fs.ReadFile(dir, file)
		if err != nil {
			return nil, err
		}
		var statements []string
		for _, stmt := range strings.Split(string(content), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				statements = append(statements, stmt)
			}
		}
		if len(statements) == 0 {
			continue
		}
		version, _, _ := strings.Cut(strings.TrimSuffix(file, path.Ext(file)), "_")
		out = append(out, migration{version: version, file: file, statements: statements})
	}

	slices.SortFunc(out, func(a, b migration) int {
		if c := strings.Compare(a.version, b.version); c != 0 {
			return c
		}
		return strings.Compare(a.file, b.file)
	})
	return out, nil
}
