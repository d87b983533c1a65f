package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvProduction 为 "production" 时默认开启 Production（隐藏错误细节）。
const EnvProduction = "ANY_INDEX_ENV"

// DefaultDateFormat 与 datefmt.DefaultLayout 保持一致。
const DefaultDateFormat = "%d?-%mo-%y %h:%mi"

// JSONFieldKeys 是 JSON 输出中允许被重命名的键。
var JSONFieldKeys = []string{"isDir", "name", "path", "time", "size"}

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectMountLevelPorts(v); err != nil {
		return nil, err
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), ttlDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Mounts {
		applyMountDefaults(&cfg.Mounts[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for i := range cfg.Mounts {
		m := &cfg.Mounts[i]
		absRoot, err := filepath.Abs(m.Root)
		if err != nil {
			return nil, fmt.Errorf("无法解析目录 %s: %w", mountField(m.Name, "Root"), err)
		}
		m.Root = absRoot
		if m.CustomTemplate != "" {
			absTmpl, err := filepath.Abs(m.CustomTemplate)
			if err != nil {
				return nil, fmt.Errorf("无法解析模板 %s: %w", mountField(m.Name, "CustomTemplate"), err)
			}
			m.CustomTemplate = absTmpl
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Production", strings.EqualFold(os.Getenv(EnvProduction), "production"))
	v.SetDefault("DateCacheSize", 1024)
	v.SetDefault("StatConcurrency", 16)
	v.SetDefault("CacheSweepInterval", 0)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.DateCacheSize == 0 {
		g.DateCacheSize = 1024
	}
	if g.StatConcurrency == 0 {
		g.StatConcurrency = 16
	}
}

// applyMountDefaults 补齐挂载点默认值。
func applyMountDefaults(m *MountConfig) {
	m.Name = strings.TrimSpace(m.Name)
	m.Prefix = strings.TrimSpace(m.Prefix)
	if m.Prefix == "" {
		m.Prefix = "/"
	}
	if m.Prefix != "/" {
		m.Prefix = strings.TrimRight(m.Prefix, "/")
		if m.Prefix == "" {
			m.Prefix = "/"
		}
	}
	if m.CacheTTL == nil {
		ttl := Enable(DefaultCacheTTL)
		m.CacheTTL = &ttl
	}
	if m.DateFormat == "" {
		m.DateFormat = DefaultDateFormat
	}

	setBool(&m.DirAtTop, true)
	setBool(&m.DisplayDate, true)
	setBool(&m.DisplaySize, true)
	setBool(&m.DisplayDotfiles, false)
	setBool(&m.JSON, false)
	setBool(&m.Strict, true)
	setBool(&m.AlwaysThrowError, false)
	setBool(&m.HumanSize, false)
	setBool(&m.LastModified, true)
	setBool(&m.DetectCharset, true)
}

func setBool(p **bool, def bool) {
	if *p == nil {
		v := def
		*p = &v
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// ttlDecodeHook 解析 CacheTTL：bool、秒数或 Duration 字符串。
func ttlDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(TTL{})

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case bool:
			if v {
				return Enable(DefaultCacheTTL), nil
			}
			return Disabled(), nil
		case string:
			ttl, err := parseTTL(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("无法解析 CacheTTL 字段: %w", err)
			}
			return ttl, nil
		case int:
			return secondsTTL(int64(v))
		case int64:
			return secondsTTL(v)
		case float64:
			if v < 0 {
				return nil, fmt.Errorf("CacheTTL 不能为负数: %v", v)
			}
			return Enable(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Enable(v), nil
		case TTL:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 CacheTTL 类型: %T", v)
		}
	}
}

func secondsTTL(seconds int64) (interface{}, error) {
	if seconds < 0 {
		return nil, fmt.Errorf("CacheTTL 不能为负数: %d", seconds)
	}
	return Enable(time.Duration(seconds) * time.Second), nil
}

// rejectMountLevelPorts 拒绝在 [[Mount]] 中声明 Port，所有挂载点共享全局 ListenPort。
func rejectMountLevelPorts(v *viper.Viper) error {
	raw := v.Get("Mount")
	mounts, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range mounts {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		for key := range m {
			if !strings.EqualFold(key, "Port") && !strings.EqualFold(key, "ListenPort") {
				continue
			}
			name := fmt.Sprintf("#%d", idx)
			for k, val := range m {
				if rawName, ok := val.(string); ok && rawName != "" && strings.EqualFold(k, "Name") {
					name = rawName
				}
			}
			return newFieldError(mountField(name, key), "挂载点不支持独立端口，请使用全局 ListenPort")
		}
	}

	return nil
}
