package buildconfig

import (
	"fmt"

	xerrors "quickplan/internal/errors"
)

// ErrorKind 区分构建配置错误的类别。
type ErrorKind string

const (
	// KindMalformed 表示文件无法解析或结构非法，加载直接失败。
	KindMalformed ErrorKind = "malformed"
	// KindUnresolvableGlob 表示某个 content glob 没有匹配任何文件，仅作为警告。
	KindUnresolvableGlob ErrorKind = "unresolvable_glob"
	// KindEmptyContent 表示 content 为空，扫描将找不到任何类名。
	KindEmptyContent ErrorKind = "empty_content"
)

// ConfigError 描述加载或检查构建配置时出现的问题。
type ConfigError struct {
	Kind ErrorKind
	Path string
	Glob string
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Glob != "":
		return fmt.Sprintf("build config %s (%s): glob %q: %v", e.Path, e.Kind, e.Glob, e.Err)
	case e.Path != "":
		return fmt.Sprintf("build config %s (%s): %v", e.Path, e.Kind, e.Err)
	default:
		return fmt.Sprintf("build config (%s): %v", e.Kind, e.Err)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Fatal 判断该错误是否应当中止构建。
func (e *ConfigError) Fatal() bool {
	return xerrors.IsFatal(e.Err)
}

func malformed(path string, cause error, format string, args ...any) *ConfigError {
	msg := fmt.Sprintf(format, args...)
	var coded *xerrors.Error
	if cause != nil {
		coded = xerrors.Wrap(xerrors.CodeConfigMalformed, cause, msg, xerrors.WithMetadata("path", path))
	} else {
		coded = xerrors.New(xerrors.CodeConfigMalformed, msg, xerrors.WithMetadata("path", path))
	}
	return &ConfigError{Kind: KindMalformed, Path: path, Err: coded}
}

func unresolved(path, glob string) *ConfigError {
	return &ConfigError{
		Kind: KindUnresolvableGlob,
		Path: path,
		Glob: glob,
		Err: xerrors.New(xerrors.CodeConfigUnresolvedGlob, "",
			xerrors.WithMetadata("path", path),
			xerrors.WithMetadata("glob", glob)),
	}
}

func emptyContent(path string) *ConfigError {
	return &ConfigError{
		Kind: KindEmptyContent,
		Path: path,
		Err:  xerrors.New(xerrors.CodeConfigUnresolvedGlob, "content is empty, no files will be scanned", xerrors.WithMetadata("path", path)),
	}
}
