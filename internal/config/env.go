package config

import (
	"os"
	"strconv"
	"strings"

	xerrors "quickplan/internal/errors"
)

// 支持的环境变量。
const (
	EnvWebFolder        = "SERVICE_WEB_FOLDER"
	EnvDBFile           = "SERVICE_DB_FILE"
	EnvDBMaxConnections = "SERVICE_DB_MAX_CONNECTIONS"
	EnvDBTimeoutMS      = "SERVICE_DB_TIMEOUT_MS"
	EnvAddress          = "SERVICE_ADDRESS"
	EnvRelease          = "SERVICE_RELEASE"
	EnvStorageDriver    = "SERVICE_STORAGE_DRIVER"
	EnvDBDSN            = "SERVICE_DB_DSN"
	EnvCacheDriver      = "SERVICE_CACHE_DRIVER"
	EnvRedisAddr        = "SERVICE_REDIS_ADDR"
	EnvEventsDriver     = "SERVICE_EVENTS_DRIVER"
	EnvAMQPURL          = "SERVICE_AMQP_URL"
	EnvBuildConfig      = "SERVICE_BUILD_CONFIG"
	EnvLogLevel         = "SERVICE_LOG_LEVEL"
)

// applyEnv 用环境变量覆盖文件中的配置。
func (c *Config) applyEnv() error {
	setString(&c.Web.Folder, EnvWebFolder)
	setString(&c.Storage.File, EnvDBFile)
	setString(&c.Server.Address, EnvAddress)
	setString(&c.Storage.Driver, EnvStorageDriver)
	setString(&c.Storage.DSN, EnvDBDSN)
	setString(&c.Cache.Driver, EnvCacheDriver)
	setString(&c.Events.Driver, EnvEventsDriver)
	setString(&c.Events.RabbitMQ.URL, EnvAMQPURL)
	setString(&c.Build.ConfigPath, EnvBuildConfig)
	setString(&c.Logging.Level, EnvLogLevel)

	if addr, ok := lookup(EnvRedisAddr); ok {
		c.Cache.Redis.Address = addr
		c.Events.Redis.Address = addr
	}
	if err := setInt(&c.Storage.MaxConnections, EnvDBMaxConnections); err != nil {
		return err
	}
	if err := setInt(&c.Storage.TimeoutMS, EnvDBTimeoutMS); err != nil {
		return err
	}
	if raw, ok := lookup(EnvRelease); ok {
		release, err := strconv.ParseBool(raw)
		if err != nil {
			return incorrectFormat(EnvRelease, err)
		}
		c.Server.Release = release
	}
	return nil
}

func lookup(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func setString(dst *string, name string) {
	if value, ok := lookup(name); ok {
		*dst = value
	}
}

func setInt(dst *int, name string) error {
	raw, ok := lookup(name)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return incorrectFormat(name, err)
	}
	*dst = value
	return nil
}

func missingEnv(name string) error {
	return xerrors.New(xerrors.CodeConfigMissingEnv, "missing environment variable "+name, xerrors.WithMetadata("env", name))
}

func incorrectFormat(name string, cause error) error {
	return xerrors.Wrap(xerrors.CodeConfigIncorrectFormat, cause, "environment variable "+name+" has incorrect format", xerrors.WithMetadata("env", name))
}
