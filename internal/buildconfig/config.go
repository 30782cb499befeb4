package buildconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"quickplan/pkg/logger"
)

// BuildConfiguration 是交给外部构建工具的只读配置记录。
type BuildConfiguration struct {
	source     string
	baseDir    string
	content    []string
	extensions map[string]map[string][]string
}

// Source 返回配置文件路径；通过 Parse 构造时为空。
func (c *BuildConfiguration) Source() string { return c.source }

// BaseDir 返回相对 glob 的解析基准目录。
func (c *BuildConfiguration) BaseDir() string { return c.baseDir }

// ContentGlobs 按声明顺序返回 content glob 的副本。
func (c *BuildConfiguration) ContentGlobs() []string {
	return append([]string(nil), c.content...)
}

// ResolvedGlobs 返回以 BaseDir 为基准的绝对 glob。
func (c *BuildConfiguration) ResolvedGlobs() []string {
	resolved := make([]string, 0, len(c.content))
	for _, pattern := range c.content {
		resolved = append(resolved, resolveGlob(c.baseDir, pattern))
	}
	return resolved
}

// FontFamily 返回 fontFamily 扩展中 key 对应的序列。
func (c *BuildConfiguration) FontFamily(key string) ([]string, bool) {
	return c.Extension(AxisFontFamily, key)
}

// Extension 返回 axis.key 的扩展序列副本。
func (c *BuildConfiguration) Extension(axis, key string) ([]string, bool) {
	keys, ok := c.extensions[axis]
	if !ok {
		return nil, false
	}
	seq, ok := keys[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), seq...), true
}

// ThemeExtensions 返回全部主题扩展的深拷贝。
func (c *BuildConfiguration) ThemeExtensions() map[string]map[string][]string {
	return Theme(c.extensions).Clone()
}

// Exported 是构建工具读取的 JSON 结构。
type Exported struct {
	Content []string      `json:"content"`
	Theme   ExportedTheme `json:"theme"`
}

// ExportedTheme 只包含 extend，不覆盖工具的默认主题。
type ExportedTheme struct {
	Extend map[string]map[string][]string `json:"extend"`
}

// Export 生成导出结构；absolute 为 true 时 content 使用绝对路径。
func (c *BuildConfiguration) Export(absolute bool) Exported {
	content := c.ContentGlobs()
	if absolute {
		content = c.ResolvedGlobs()
	}
	extend := c.ThemeExtensions()
	if extend == nil {
		extend = map[string]map[string][]string{}
	}
	return Exported{Content: content, Theme: ExportedTheme{Extend: extend}}
}

func (c *BuildConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Export(false))
}

// Format 表示配置文件的编码格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath 根据扩展名判断格式。
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

type rawConfig struct {
	Content []string `yaml:"content" json:"content"`
	Theme   rawTheme `yaml:"theme" json:"theme"`
}

type rawTheme struct {
	Extend map[string]map[string][]string `yaml:"extend" json:"extend"`
}

// Option 配置 Loader。
type Option func(*Loader)

// WithDefaultTheme 替换用于展开 ...defaults 的内置主题。
func WithDefaultTheme(theme Theme) Option {
	return func(l *Loader) {
		if theme != nil {
			l.theme = theme.Clone()
		}
	}
}

// WithStrictContent 把空 content 与无匹配的 glob 视为致命错误。
func WithStrictContent(strict bool) Option {
	return func(l *Loader) {
		l.strict = strict
	}
}

// WithLogger 指定日志输出。
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.logger = log
		}
	}
}

// Loader 负责读取、校验并解析构建配置。
type Loader struct {
	theme  Theme
	strict bool
	logger *slog.Logger
}

// NewLoader 构造 Loader。
func NewLoader(opts ...Option) *Loader {
	l := &Loader{theme: DefaultTheme()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.logger == nil {
		l.logger = logger.Named("buildconfig")
	}
	return l
}

// Load 使用默认 Loader 加载配置文件。
func Load(path string) (*BuildConfiguration, error) {
	return NewLoader().Load(path)
}

// Load 读取 path 指向的配置文件。失败时返回 *ConfigError，且不会返回部分结果。
func (l *Loader) Load(path string) (*BuildConfiguration, error) {
	if strings.TrimSpace(path) == "" {
		return nil, malformed(path, nil, "config path is empty")
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, malformed(path, err, "cannot determine config format")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, malformed(path, err, "read config file")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, malformed(path, err, "resolve config path")
	}

	cfg, err := l.parse(data, format, path, filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	cfg.source = path

	l.logger.Info("build config loaded",
		slog.String("path", path),
		slog.Int("content_globs", len(cfg.content)),
		slog.Int("theme_axes", len(cfg.extensions)),
	)
	return cfg, nil
}

// Parse 解析内存中的配置内容；相对 glob 以 baseDir 为基准。
func (l *Loader) Parse(data []byte, format Format, baseDir string) (*BuildConfiguration, error) {
	return l.parse(data, format, "", baseDir)
}

func (l *Loader) parse(data []byte, format Format, path, baseDir string) (*BuildConfiguration, error) {
	raw, err := decode(data, format)
	if err != nil {
		return nil, malformed(path, err, "decode %s", format)
	}

	content, err := normalizeContent(raw.Content)
	if err != nil {
		return nil, malformed(path, err, "invalid content")
	}
	if len(content) == 0 {
		if l.strict {
			return nil, malformed(path, nil, "content is empty")
		}
		l.logger.Warn("build config has no content globs; class scanning will find nothing", slog.String("path", path))
	}

	extensions, err := l.resolveExtensions(raw.Theme.Extend)
	if err != nil {
		return nil, malformed(path, err, "invalid theme.extend")
	}

	return &BuildConfiguration{
		baseDir:    baseDir,
		content:    content,
		extensions: extensions,
	}, nil
}

// decode 只接受恰好一个对象文档：空文档、null、多余的数据都视为格式错误。
func decode(data []byte, format Format) (rawConfig, error) {
	var raw rawConfig
	switch format {
	case FormatJSON:
		var doc json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return raw, errors.New("empty document")
			}
			return raw, err
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return raw, errors.New("unexpected data after configuration object")
		}
		if bytes.Equal(bytes.TrimSpace(doc), []byte("null")) {
			return raw, errors.New("document is null")
		}
		strict := json.NewDecoder(bytes.NewReader(doc))
		strict.DisallowUnknownFields()
		if err := strict.Decode(&raw); err != nil {
			return raw, err
		}
	case FormatYAML:
		var doc yaml.Node
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return raw, errors.New("empty document")
			}
			return raw, err
		}
		if err := dec.Decode(&yaml.Node{}); !errors.Is(err, io.EOF) {
			if err == nil {
				return raw, errors.New("unexpected document after configuration object")
			}
			return raw, fmt.Errorf("unexpected document after configuration object: %w", err)
		}
		if len(doc.Content) == 1 && doc.Content[0].ShortTag() == "!!null" {
			return raw, errors.New("document is null")
		}
		strict := yaml.NewDecoder(bytes.NewReader(data))
		strict.KnownFields(true)
		if err := strict.Decode(&raw); err != nil {
			return raw, err
		}
	default:
		return raw, fmt.Errorf("unsupported format %q", format)
	}
	return raw, nil
}

func normalizeContent(globs []string) ([]string, error) {
	if len(globs) == 0 {
		return nil, nil
	}
	content := make([]string, 0, len(globs))
	for idx, glob := range globs {
		trimmed := strings.TrimSpace(glob)
		if trimmed == "" {
			return nil, fmt.Errorf("content[%d] is empty", idx)
		}
		content = append(content, trimmed)
	}
	return content, nil
}

func (l *Loader) resolveExtensions(extend map[string]map[string][]string) (map[string]map[string][]string, error) {
	if len(extend) == 0 {
		return nil, nil
	}
	axes := make([]string, 0, len(extend))
	for axis := range extend {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	resolved := make(map[string]map[string][]string, len(extend))
	for _, axis := range axes {
		if !l.theme.HasAxis(axis) {
			return nil, fmt.Errorf("unknown theme axis %q", axis)
		}
		keys := extend[axis]
		inner := make(map[string][]string, len(keys))
		for key, seq := range keys {
			if strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("%s has an empty key", axis)
			}
			expanded, err := l.expand(axis, key, seq)
			if err != nil {
				return nil, err
			}
			inner[key] = expanded
		}
		resolved[axis] = inner
	}
	return resolved, nil
}

// expand 把 ...defaults 展开为默认序列；未声明时追加到末尾，保证扩展不会替换默认值。
func (l *Loader) expand(axis, key string, seq []string) ([]string, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("%s.%s is empty", axis, key)
	}
	defaults, hasDefaults := l.theme.Sequence(axis, key)

	out := make([]string, 0, len(seq)+len(defaults))
	spread := false
	for idx, value := range seq {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return nil, fmt.Errorf("%s.%s[%d] is empty", axis, key, idx)
		}
		if trimmed != DefaultsToken {
			out = append(out, trimmed)
			continue
		}
		if spread {
			return nil, fmt.Errorf("%s.%s expands %s more than once", axis, key, DefaultsToken)
		}
		if !hasDefaults {
			return nil, fmt.Errorf("%s.%s has no default sequence to expand", axis, key)
		}
		spread = true
		out = append(out, defaults...)
	}
	if !spread && hasDefaults {
		out = append(out, defaults...)
	}
	return out, nil
}

func resolveGlob(baseDir, pattern string) string {
	if filepath.IsAbs(pattern) || baseDir == "" {
		return filepath.Clean(pattern)
	}
	return filepath.Join(baseDir, pattern)
}
