package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/any-hub/any-index/internal/config"
)

// MountRoute 将挂载点配置与派生属性聚合在一起，供路由与索引处理器直接复用。
type MountRoute struct {
	// Config 是用户在 config.toml 中声明的 Mount 字段副本，避免外部修改。
	Config config.MountConfig
	// ListenPort 记录当前 CLI 监听端口，方便日志与诊断输出。
	ListenPort int
	// CacheTTL 是对当前挂载点生效的渲染缓存 TTL。
	CacheTTL config.TTL
}

// Prefix 返回挂载前缀，根挂载点为 "/"。
func (r *MountRoute) Prefix() string {
	return r.Config.Prefix
}

// MountRegistry 按请求路径前缀查找挂载点，所有挂载点共享同一个监听端口。
type MountRegistry struct {
	byName  map[string]*MountRoute
	ordered []*MountRoute
	// byLength 按前缀长度降序排列，保证最长前缀优先匹配。
	byLength []*MountRoute
}

// NewMountRegistry 根据配置构建前缀映射。调用方应在启动阶段创建一次并复用。
func NewMountRegistry(cfg *config.Config) (*MountRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &MountRegistry{
		byName: make(map[string]*MountRoute, len(cfg.Mounts)),
	}

	seenPrefix := make(map[string]string, len(cfg.Mounts))
	for _, mount := range cfg.Mounts {
		prefix := normalizePrefix(mount.Prefix)
		if prefix == "" {
			return nil, fmt.Errorf("invalid prefix for mount %s", mount.Name)
		}
		if other, exists := seenPrefix[prefix]; exists {
			return nil, fmt.Errorf("duplicate prefix %s for mounts %s and %s", prefix, other, mount.Name)
		}
		if _, exists := registry.byName[mount.Name]; exists {
			return nil, fmt.Errorf("duplicate mount name %s", mount.Name)
		}
		seenPrefix[prefix] = mount.Name

		mount.Prefix = prefix
		route := &MountRoute{
			Config:     mount,
			ListenPort: cfg.Global.ListenPort,
			CacheTTL:   mount.TTLValue(),
		}
		registry.byName[mount.Name] = route
		registry.ordered = append(registry.ordered, route)
	}

	registry.byLength = append([]*MountRoute(nil), registry.ordered...)
	sort.SliceStable(registry.byLength, func(i, j int) bool {
		return len(registry.byLength[i].Config.Prefix) > len(registry.byLength[j].Config.Prefix)
	})

	return registry, nil
}

// Lookup 以路径段为边界匹配最长前缀，返回挂载点与去掉前缀后的相对路径。
// 请求恰好等于前缀（如 /docs）时相对路径为空串。
func (r *MountRegistry) Lookup(requestPath string) (*MountRoute, string, bool) {
	if r == nil {
		return nil, "", false
	}
	if requestPath == "" {
		requestPath = "/"
	}

	for _, route := range r.byLength {
		prefix := route.Config.Prefix
		if prefix == "/" {
			return route, requestPath, true
		}
		if requestPath == prefix {
			return route, "", true
		}
		if strings.HasPrefix(requestPath, prefix+"/") {
			return route, requestPath[len(prefix):], true
		}
	}
	return nil, "", false
}

// Get 按名称查找挂载点，用于诊断接口。
func (r *MountRegistry) Get(name string) (*MountRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.byName[name]
	return route, ok
}

// List 返回当前注册的 MountRoute 列表（按配置定义的顺序），用于调试或诊断输出。
func (r *MountRegistry) List() []MountRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]MountRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

func normalizePrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "/" {
		return "/"
	}
	if !strings.HasPrefix(raw, "/") {
		return ""
	}
	return strings.TrimRight(raw, "/")
}
