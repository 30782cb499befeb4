package buildconfig

import (
	"context"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
)

// GlobResult 记录单个 content glob 的匹配情况。
type GlobResult struct {
	Glob     string `json:"glob"`
	Resolved string `json:"resolved"`
	Matches  int    `json:"matches"`
}

// Report 是 Check 的结果。Warnings 中的错误都不是致命错误。
type Report struct {
	Globs    []GlobResult   `json:"globs"`
	Warnings []*ConfigError `json:"-"`
}

// OK 表示没有任何警告。
func (r *Report) OK() bool {
	return r != nil && len(r.Warnings) == 0
}

// Check 逐个展开 content glob，没有匹配的 glob 记为警告。
// 严格模式下出现警告时返回第一个警告作为错误。
func (l *Loader) Check(ctx context.Context, cfg *BuildConfiguration) (*Report, error) {
	report := &Report{}
	if len(cfg.content) == 0 {
		warn := emptyContent(cfg.source)
		report.Warnings = append(report.Warnings, warn)
		l.logger.Warn("build config has no content globs", slog.String("path", cfg.source))
		if l.strict {
			return report, warn
		}
		return report, nil
	}

	for _, pattern := range cfg.content {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		resolved := resolveGlob(cfg.baseDir, pattern)
		if !doublestar.ValidatePathPattern(resolved) {
			return report, malformed(cfg.source, doublestar.ErrBadPattern, "invalid content glob %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(resolved, doublestar.WithFilesOnly())
		if err != nil {
			return report, malformed(cfg.source, err, "expand content glob %q", pattern)
		}
		report.Globs = append(report.Globs, GlobResult{Glob: pattern, Resolved: resolved, Matches: len(matches)})
		if len(matches) == 0 {
			warn := unresolved(cfg.source, pattern)
			report.Warnings = append(report.Warnings, warn)
			l.logger.Warn("content glob matches no files",
				slog.String("path", cfg.source),
				slog.String("glob", pattern),
			)
		}
	}

	if l.strict && len(report.Warnings) > 0 {
		return report, report.Warnings[0]
	}
	return report, nil
}
