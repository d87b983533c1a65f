package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultCacheTTL 是挂载点未配置 CacheTTL 时渲染缓存的有效期。
const DefaultCacheTTL = 5 * time.Minute

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// TTL 描述渲染缓存开关与有效期：false 关闭缓存，true 使用默认值，
// 数字按秒解析，字符串可以是 Go Duration 或 true/false。
type TTL struct {
	Enabled bool
	Value   time.Duration
}

// Disabled 返回关闭缓存的 TTL。
func Disabled() TTL { return TTL{} }

// Enable 返回指定有效期的 TTL；d<=0 视为关闭。
func Enable(d time.Duration) TTL {
	if d <= 0 {
		return TTL{}
	}
	return TTL{Enabled: true, Value: d}
}

// String 用于日志与诊断输出。
func (t TTL) String() string {
	if !t.Enabled {
		return "false"
	}
	return t.Value.String()
}

// UnmarshalText 与 ttlDecodeHook 使用同一套解析规则。
func (t *TTL) UnmarshalText(text []byte) error {
	parsed, err := parseTTL(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func parseTTL(raw string) (TTL, error) {
	switch strings.ToLower(raw) {
	case "", "false", "off":
		return Disabled(), nil
	case "true", "on":
		return Enable(DefaultCacheTTL), nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		if parsed < 0 {
			return TTL{}, fmt.Errorf("negative ttl: %s", raw)
		}
		return Enable(parsed), nil
	}
	if seconds, err := parseInt(raw); err == nil {
		if seconds < 0 {
			return TTL{}, fmt.Errorf("negative ttl: %s", raw)
		}
		return Enable(time.Duration(seconds) * time.Second), nil
	}
	return TTL{}, fmt.Errorf("invalid ttl value: %s", raw)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有挂载点共享同一份参数。
type GlobalConfig struct {
	ListenPort         int      `mapstructure:"ListenPort"`
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	Production         bool     `mapstructure:"Production"`
	DateCacheSize      int      `mapstructure:"DateCacheSize"`
	StatConcurrency    int      `mapstructure:"StatConcurrency"`
	CacheSweepInterval Duration `mapstructure:"CacheSweepInterval"`
}

// MountConfig 决定单个目录树如何对外暴露。指针字段在 Load 中补齐默认值，
// 以区分“未配置”与显式的 false。
type MountConfig struct {
	Name             string            `mapstructure:"Name"`
	Prefix           string            `mapstructure:"Prefix"`
	Root             string            `mapstructure:"Root"`
	CacheTTL         *TTL              `mapstructure:"CacheTTL"`
	DirAtTop         *bool             `mapstructure:"DirAtTop"`
	DisplayDate      *bool             `mapstructure:"DisplayDate"`
	DisplaySize      *bool             `mapstructure:"DisplaySize"`
	DisplayDotfiles  *bool             `mapstructure:"DisplayDotfiles"`
	Exclude          string            `mapstructure:"Exclude"`
	JSON             *bool             `mapstructure:"JSON"`
	Strict           *bool             `mapstructure:"Strict"`
	AlwaysThrowError *bool             `mapstructure:"AlwaysThrowError"`
	DateFormat       string            `mapstructure:"DateFormat"`
	CustomTemplate   string            `mapstructure:"CustomTemplate"`
	JSONFields       map[string]string `mapstructure:"JSONFields"`
	HumanSize        *bool             `mapstructure:"HumanSize"`
	LastModified     *bool             `mapstructure:"LastModified"`
	DetectCharset    *bool             `mapstructure:"DetectCharset"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig  `mapstructure:",squash"`
	Mounts []MountConfig `mapstructure:"Mount"`
}

// TTLValue 返回生效的缓存 TTL，未配置时为默认 5 分钟。
func (m MountConfig) TTLValue() TTL {
	if m.CacheTTL == nil {
		return Enable(DefaultCacheTTL)
	}
	return *m.CacheTTL
}

// Flag 读取布尔开关，nil 时返回 def。
func Flag(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// MountSummaries 返回所有挂载点的摘要，例如 docs:/docs，供启动日志使用。
func MountSummaries(mounts []MountConfig) []string {
	if len(mounts) == 0 {
		return nil
	}
	result := make([]string, len(mounts))
	for i, m := range mounts {
		result[i] = fmt.Sprintf("%s:%s", m.Name, m.Prefix)
	}
	return result
}
