package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"maps"
)

// Code 是 quickplan 内部统一使用的错误码。
type Code string

// Severity 决定错误写日志时使用的级别，见 LogLevel。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodePublishFailure        Code = "PUBLISH_FAILURE"
	CodeConfigMalformed       Code = "CONFIG_MALFORMED"
	CodeConfigUnresolvedGlob  Code = "CONFIG_UNRESOLVABLE_GLOB"
	CodeConfigMissingEnv      Code = "CONFIG_MISSING_ENV"
	CodeConfigIncorrectFormat Code = "CONFIG_INCORRECT_FORMAT"
)

// codeInfo 是错误码的默认描述与处理方式。
type codeInfo struct {
	text      string
	severity  Severity
	retryable bool
	fatal     bool
}

var codes = map[Code]codeInfo{
	CodeUnknown:               {text: "unknown error", severity: SeverityCritical},
	CodeInvalidArgument:       {text: "invalid argument", severity: SeverityInfo},
	CodeNotFound:              {text: "resource not found", severity: SeverityInfo},
	CodeConflict:              {text: "resource conflict", severity: SeverityInfo},
	CodeStorageFailure:        {text: "storage failure", severity: SeverityCritical, retryable: true},
	CodePublishFailure:        {text: "event publish failure", severity: SeverityWarning, retryable: true},
	CodeConfigMalformed:       {text: "malformed configuration", severity: SeverityCritical, fatal: true},
	CodeConfigUnresolvedGlob:  {text: "content glob matches no files", severity: SeverityWarning},
	CodeConfigMissingEnv:      {text: "missing environment variable", severity: SeverityCritical, fatal: true},
	CodeConfigIncorrectFormat: {text: "environment variable has incorrect format", severity: SeverityCritical, fatal: true},
}

func lookup(code Code) codeInfo {
	if info, ok := codes[code]; ok {
		return info
	}
	return codes[CodeUnknown]
}

// Error 是带错误码的统一错误。
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
}

// Option 调整 Error 的可选字段。
type Option func(*Error)

// WithMetadata 附加一条键值信息，例如文件路径或迁移名。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable 覆盖错误码默认的可重试属性。
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// New 创建错误；message 为空时使用错误码的默认描述。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = lookup(code).text
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 用统一错误包装底层错误。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is 让 errors.Is 按错误码比较。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code { return e.code }

// Message 返回不含底层原因的描述。
func (e *Error) Message() string { return e.message }

// Metadata 返回附加信息的副本。
func (e *Error) Metadata() map[string]string {
	if len(e.metadata) == 0 {
		return nil
	}
	return maps.Clone(e.metadata)
}

// Retryable 判断是否值得重试。
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return lookup(e.code).retryable
}

// From 从错误链中取出统一错误。
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误链中的错误码，普通错误视为 UNKNOWN。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.code
	}
	return CodeUnknown
}

// RetryableError 判断任意错误是否可重试。
func RetryableError(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable()
	}
	return false
}

// IsFatal 判断错误是否应当终止启动或构建。
func IsFatal(err error) bool {
	return err != nil && lookup(CodeOf(err)).fatal
}

// SeverityOf 返回错误码对应的严重程度。
func SeverityOf(err error) Severity {
	return lookup(CodeOf(err)).severity
}

// LogLevel 把错误的严重程度换算成 slog 级别。
func LogLevel(err error) slog.Level {
	switch SeverityOf(err) {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
