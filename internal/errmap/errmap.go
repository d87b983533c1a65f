// Package errmap translates filesystem failures and literal HTTP statuses into
// the status code, message and surface decision used by the index engine.
package errmap

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"syscall"
)

// Mapping 描述单个 OS 错误码对应的提示与 HTTP 状态。
type Mapping struct {
	Message string
	Status  int
}

// defaultMappings 未显式指定 Status 的条目在 init 中统一补为 500。
var defaultMappings = map[string]Mapping{
	"EBADF":        {Message: "fd is not a valid open file descriptor"},
	"EFAULT":       {Message: "Bad address"},
	"EINVAL":       {Message: "Invalid flag specified in flag"},
	"ELOOP":        {Message: "Too many symbolic links encountered while traversing the path"},
	"ENOMEM":       {Message: "Out of memory"},
	"EOVERFLOW":    {Message: "Value too large to be stored in data type"},
	"EACCES":       {Message: "Permission denied", Status: http.StatusForbidden},
	"EADDRINUSE":   {Message: "Address already in use"},
	"ECONNREFUSED": {Message: "Connection refused"},
	"ECONNRESET":   {Message: "Connection reset by peer"},
	"EEXIST":       {Message: "File exists"},
	"EISDIR":       {Message: "Is a directory"},
	"EMFILE":       {Message: "Too many open files in system"},
	"ENAMETOOLONG": {Message: http.StatusText(http.StatusRequestURITooLong), Status: http.StatusRequestURITooLong},
	"ENOENT":       {Message: "No such file or directory", Status: http.StatusNotFound},
	"ENOTDIR":      {Message: "Not a directory", Status: http.StatusNotFound},
	"ENOTEMPTY":    {Message: "Directory not empty"},
	"ENOTFOUND":    {Message: "DNS lookup failed"},
	"EPERM":        {Message: "Operation not permitted", Status: http.StatusForbidden},
	"EPIPE":        {Message: "Broken pipe"},
	"ETIMEDOUT":    {Message: http.StatusText(http.StatusRequestTimeout), Status: http.StatusRequestTimeout},
}

func init() {
	for code, m := range defaultMappings {
		if m.Status == 0 {
			m.Status = http.StatusInternalServerError
			defaultMappings[code] = m
		}
	}
}

// errnoNames 把 syscall.Errno 还原成 POSIX 名称，未列出的 errno 记为 errno-<n>。
var errnoNames = map[syscall.Errno]string{
	syscall.EACCES:       "EACCES",
	syscall.EADDRINUSE:   "EADDRINUSE",
	syscall.EAGAIN:       "EAGAIN",
	syscall.EBADF:        "EBADF",
	syscall.EBUSY:        "EBUSY",
	syscall.ECONNREFUSED: "ECONNREFUSED",
	syscall.ECONNRESET:   "ECONNRESET",
	syscall.EEXIST:       "EEXIST",
	syscall.EFAULT:       "EFAULT",
	syscall.EINVAL:       "EINVAL",
	syscall.EIO:          "EIO",
	syscall.EISDIR:       "EISDIR",
	syscall.ELOOP:        "ELOOP",
	syscall.EMFILE:       "EMFILE",
	syscall.ENAMETOOLONG: "ENAMETOOLONG",
	syscall.ENFILE:       "ENFILE",
	syscall.ENOENT:       "ENOENT",
	syscall.ENOMEM:       "ENOMEM",
	syscall.ENOSPC:       "ENOSPC",
	syscall.ENOTDIR:      "ENOTDIR",
	syscall.ENOTEMPTY:    "ENOTEMPTY",
	syscall.EOVERFLOW:    "EOVERFLOW",
	syscall.EPERM:        "EPERM",
	syscall.EPIPE:        "EPIPE",
	syscall.EROFS:        "EROFS",
	syscall.ETIMEDOUT:    "ETIMEDOUT",
}

// Code 允许调用方直接给出错误码（例如沙箱拒绝时合成 ENOENT）。
type Code struct {
	Name string
	Err  error
}

func (c *Code) Error() string {
	if c.Err != nil {
		return fmt.Sprintf("%s: %v", c.Name, c.Err)
	}
	return c.Name
}

func (c *Code) Unwrap() error { return c.Err }

// WithCode 用错误码包装 err。
func WithCode(name string, err error) error {
	return &Code{Name: name, Err: err}
}

// StatusCode 表示一个字面 HTTP 状态码，而不是 OS 错误。
type StatusCode int

func (s StatusCode) Error() string {
	return fmt.Sprintf("http status %d", int(s))
}

// Status 构造字面状态码错误。
func Status(code int) error {
	return StatusCode(code)
}

// Error 是需要向上抛出的错误，携带最终状态码与对外消息。
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Translation 是一次翻译的结果。
type Translation struct {
	Status  int
	Message string
	Code    string
	Surface bool
}

// Err 在需要上抛时返回 *Error，否则返回 nil。
func (t Translation) Err() error {
	if !t.Surface {
		return nil
	}
	return &Error{Status: t.Status, Message: t.Message}
}

// Translator 根据生产/调试模式与 AlwaysThrowError 开关翻译错误。
type Translator struct {
	Production  bool
	AlwaysThrow bool
	mappings    map[string]Mapping
}

// NewTranslator 使用内置错误码表构建 Translator。
func NewTranslator(production, alwaysThrow bool) *Translator {
	return &Translator{
		Production:  production,
		AlwaysThrow: alwaysThrow,
		mappings:    defaultMappings,
	}
}

// Translate 将 err 映射为状态码与消息；err 为 nil 时视为 500。
func (t *Translator) Translate(err error) Translation {
	var status StatusCode
	if errors.As(err, &status) {
		return t.translateStatus(int(status))
	}

	code := CodeOf(err)
	m, ok := t.mappings[code]
	if !ok {
		return Translation{
			Status:  http.StatusInternalServerError,
			Message: t.format(fmt.Sprintf("System error code %s not recognized", code), err),
			Code:    code,
			Surface: true,
		}
	}
	return Translation{
		Status:  m.Status,
		Message: t.format(m.Message, err),
		Code:    code,
		Surface: t.shouldSurface(m.Status),
	}
}

func (t *Translator) translateStatus(code int) Translation {
	text := http.StatusText(code)
	if code < 100 || code > 599 {
		return Translation{
			Status:  http.StatusInternalServerError,
			Message: fmt.Sprintf("System error code %d not recognized", code),
			Surface: true,
		}
	}
	if text == "" {
		text = fmt.Sprintf("System error code %d not recognized", code)
	}
	return Translation{
		Status:  code,
		Message: text,
		Surface: t.shouldSurface(code),
	}
}

func (t *Translator) shouldSurface(status int) bool {
	if t.AlwaysThrow {
		return true
	}
	return status >= http.StatusInternalServerError
}

func (t *Translator) format(message string, err error) string {
	if t.Production || err == nil {
		return message
	}
	return fmt.Sprintf("%s (%s)", message, err.Error())
}

// CodeOf 提取 err 对应的 POSIX 错误码名称。
func CodeOf(err error) string {
	if err == nil {
		return "EUNKNOWN"
	}

	var coded *Code
	if errors.As(err, &coded) {
		return coded.Name
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name, ok := errnoNames[errno]; ok {
			return name
		}
		return fmt.Sprintf("errno-%d", int(errno))
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "ENOENT"
	case errors.Is(err, fs.ErrPermission):
		return "EACCES"
	case errors.Is(err, fs.ErrExist):
		return "EEXIST"
	}
	return "EUNKNOWN"
}
