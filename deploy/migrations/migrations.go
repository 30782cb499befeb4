package migrations

import (
	"embed"
	"io/fs"
)

// files 包含各数据库方言的 SQL 迁移文件。
//
//go:embed sqlite/*.sql mysql/*.sql
var files embed.FS

// SQLite 返回 SQLite 方言的迁移目录。
func SQLite() fs.FS {
	return sub("sqlite")
}

// MySQL 返回 MySQL 方言的迁移目录。
func MySQL() fs.FS {
	return sub("mysql")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		// 目录在编译期嵌入，不会缺失。
		panic(err)
	}
	return f
}
