package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
// 目录是否存在、模板能否读取由 autoindex 在构建引擎时检查。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", "无法识别的日志级别: "+g.LogLevel)
		}
	}
	if g.DateCacheSize <= 0 {
		return newFieldError("Global.DateCacheSize", "必须大于 0")
	}
	if g.StatConcurrency <= 0 {
		return newFieldError("Global.StatConcurrency", "必须大于 0")
	}
	if g.CacheSweepInterval.DurationValue() < 0 {
		return newFieldError("Global.CacheSweepInterval", "不能为负数")
	}

	if len(c.Mounts) == 0 {
		return errors.New("至少需要配置一个 Mount")
	}

	seenNames := map[string]struct{}{}
	seenPrefixes := map[string]string{}
	for i := range c.Mounts {
		m := &c.Mounts[i]
		if m.Name == "" {
			return newFieldError("Mount[].Name", "不能为空")
		}
		if strings.ContainsAny(m.Name, "/ ") {
			return newFieldError(mountField(m.Name, "Name"), "不允许包含 / 或空格")
		}
		if _, exists := seenNames[m.Name]; exists {
			return newFieldError(mountField(m.Name, "Name"), "重复")
		}
		seenNames[m.Name] = struct{}{}

		if err := validatePrefix(m.Prefix); err != nil {
			return fmt.Errorf("%s: %w", mountField(m.Name, "Prefix"), err)
		}
		if other, exists := seenPrefixes[m.Prefix]; exists {
			return newFieldError(mountField(m.Name, "Prefix"), "与 "+other+" 重复")
		}
		seenPrefixes[m.Prefix] = m.Name

		if strings.TrimSpace(m.Root) == "" {
			return newFieldError(mountField(m.Name, "Root"), "不能为空")
		}
		if m.Exclude != "" {
			if _, err := regexp.Compile(m.Exclude); err != nil {
				return fmt.Errorf("%s: %w", mountField(m.Name, "Exclude"), err)
			}
		}
		if err := validateJSONFields(m.JSONFields); err != nil {
			return fmt.Errorf("%s: %w", mountField(m.Name, "JSONFields"), err)
		}
	}

	return nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return errors.New("Prefix 不能为空")
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("path '%s' not start with /", prefix)
	}
	if strings.HasPrefix(prefix, "/-/") || prefix == "/-" {
		return errors.New("/-/ 为诊断接口保留")
	}
	if strings.ContainsAny(prefix, "?#\x00") {
		return errors.New("Prefix 不允许包含 ? # 或 NUL")
	}
	for _, seg := range strings.Split(strings.Trim(prefix, "/"), "/") {
		if seg == "." || seg == ".." || (seg == "" && prefix != "/") {
			return errors.New("Prefix 必须是规范路径")
		}
	}
	return nil
}

func validateJSONFields(fields map[string]string) error {
	for key, renamed := range fields {
		if CanonicalJSONField(key) == "" {
			return fmt.Errorf("未知键 %s，仅支持 %s", key, strings.Join(JSONFieldKeys, "|"))
		}
		if strings.TrimSpace(renamed) == "" {
			return fmt.Errorf("键 %s 的新名称不能为空", key)
		}
	}
	return nil
}

// CanonicalJSONField 以大小写不敏感的方式匹配 JSON 键，未知键返回空串。
func CanonicalJSONField(key string) string {
	key = strings.TrimSpace(key)
	for _, k := range JSONFieldKeys {
		if strings.EqualFold(k, key) {
			return k
		}
	}
	return ""
}
