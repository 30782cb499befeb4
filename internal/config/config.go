package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	xerrors "quickplan/internal/errors"
	"quickplan/pkg/logger"
)

// Config 描述 quickplan 服务启动所需的全部配置。
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Web     WebConfig     `yaml:"web"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Events  EventsConfig  `yaml:"events"`
	Build   BuildConfig   `yaml:"build"`
	Logging logger.Config `yaml:"logging"`
}

// ServerConfig 控制 HTTP 服务的监听地址与超时。
type ServerConfig struct {
	Address                string `yaml:"address"`
	Release                bool   `yaml:"release"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	// CreateRatePerMinute 限制单个 IP 每分钟创建计划的次数，0 表示不限制。
	CreateRatePerMinute int `yaml:"create_rate_per_minute"`
}

// WebConfig 指向静态资源目录。
type WebConfig struct {
	Folder string `yaml:"folder"`
}

// StorageConfig 描述计划数据的存储后端。
type StorageConfig struct {
	Driver                 string `yaml:"driver"`
	File                   string `yaml:"file"`
	DSN                    string `yaml:"dsn"`
	MaxConnections         int    `yaml:"max_connections"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	TimeoutMS              int    `yaml:"timeout_ms"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds"`
}

// Timeout 返回获取连接的超时时间。
func (s StorageConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// CacheConfig 描述计划查询缓存。
type CacheConfig struct {
	Driver     string      `yaml:"driver"`
	Size       int         `yaml:"size"`
	TTLSeconds int         `yaml:"ttl_seconds"`
	Redis      RedisConfig `yaml:"redis"`
}

// TTL 返回缓存过期时间。
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig 是 Redis 连接参数。
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// EventsConfig 描述计划活动事件的发布方式。
type EventsConfig struct {
	Driver   string         `yaml:"driver"`
	Redis    RedisConfig    `yaml:"redis"`
	Channel  string         `yaml:"channel"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig 是 AMQP 连接参数。
type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// BuildConfig 指向 CSS 构建配置文件。
type BuildConfig struct {
	ConfigPath string `yaml:"config_path"`
	Watch      bool   `yaml:"watch"`
}

// Load 读取配置。path 为空时只使用环境变量。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	baseDir := "."

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	if err := loadDotEnv(baseDir); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadDotEnv 依次尝试配置目录与工作目录下的 .env，已存在的环境变量不会被覆盖。
func loadDotEnv(baseDir string) error {
	candidates := []string{filepath.Join(baseDir, ".env")}
	if baseDir != "." {
		candidates = append(candidates, ".env")
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("加载 %s 失败: %w", candidate, err)
		}
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 15
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}

	c.Web.Folder = resolvePath(baseDir, c.Web.Folder)

	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	c.Storage.File = resolvePath(baseDir, c.Storage.File)
	if c.Storage.MaxConnections <= 0 {
		c.Storage.MaxConnections = 5
	}
	if c.Storage.MaxIdleConns <= 0 {
		c.Storage.MaxIdleConns = c.Storage.MaxConnections
	}
	if c.Storage.TimeoutMS <= 0 {
		c.Storage.TimeoutMS = 500
	}
	if c.Storage.ConnMaxLifetimeSeconds <= 0 {
		c.Storage.ConnMaxLifetimeSeconds = 300
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "lru"
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = 1024
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "quickplan:plan:"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.Channel == "" {
		c.Events.Channel = "quickplan.events"
	}
	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = c.Events.Channel
	}

	if c.Build.ConfigPath == "" {
		c.Build.ConfigPath = filepath.Join(baseDir, "www", "build.yaml")
	} else {
		c.Build.ConfigPath = resolvePath(baseDir, c.Build.ConfigPath)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Path != "" {
		c.Logging.Audit.Path = resolvePath(baseDir, c.Logging.Audit.Path)
	}
}

// Validate 检查配置的完整性。缺失的必填项按环境变量名报告。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Web.Folder) == "" {
		return missingEnv(EnvWebFolder)
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.File == "" {
			return missingEnv(EnvDBFile)
		}
	case "mysql":
		if c.Storage.DSN == "" {
			return missingEnv(EnvDBDSN)
		}
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported storage driver %q", c.Storage.Driver))
	}
	switch c.Cache.Driver {
	case "none", "lru":
	case "redis":
		if c.Cache.Redis.Address == "" {
			return missingEnv(EnvRedisAddr)
		}
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported cache driver %q", c.Cache.Driver))
	}
	switch c.Events.Driver {
	case "none", "memory":
	case "redis":
		if c.Events.Redis.Address == "" {
			return missingEnv(EnvRedisAddr)
		}
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			return missingEnv(EnvAMQPURL)
		}
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unsupported events driver %q", c.Events.Driver))
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
