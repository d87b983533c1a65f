package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-index/internal/config"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供挂载点/路径/响应类型/命中状态字段，供索引请求日志复用。
func RequestFields(mount, prefix, path, kind string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"mount":     mount,
		"prefix":    prefix,
		"path":      path,
		"kind":      kind,
		"cache_hit": cacheHit,
	}
}

// MountFields 描述挂载点配置，用于启动日志与引擎构建失败时定位。
func MountFields(m config.MountConfig) logrus.Fields {
	return logrus.Fields{
		"mount":     m.Name,
		"prefix":    m.Prefix,
		"root":      m.Root,
		"cache_ttl": m.TTLValue().String(),
		"json":      config.Flag(m.JSON, false),
		"strict":    config.Flag(m.Strict, true),
	}
}
