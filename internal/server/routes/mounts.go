package routes

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/any-index/internal/cache"
	"github.com/any-hub/any-index/internal/config"
	"github.com/any-hub/any-index/internal/metrics"
	"github.com/any-hub/any-index/internal/server"
)

// RegisterMountRoutes 暴露 /-/mounts 与 /-/metrics 诊断接口，供 SRE 查询挂载点配置与缓存状态。
// store 可为 nil，此时不返回缓存记录数。
func RegisterMountRoutes(app *fiber.App, registry *server.MountRegistry, store cache.Store) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/mounts", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"mounts": encodeMounts(registry.List()),
		}
		if store != nil {
			payload["cache_records"] = store.Len()
		}
		return c.JSON(payload)
	})

	app.Get("/-/mounts/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mount_name_required"})
		}
		route, ok := registry.Get(name)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mount_not_found"})
		}
		return c.JSON(encodeMount(*route))
	})

	app.Get("/-/metrics", adaptor.HTTPHandler(metrics.Handler()))
}

type mountPayload struct {
	Name            string `json:"name"`
	Prefix          string `json:"prefix"`
	Root            string `json:"root"`
	Port            int    `json:"port"`
	CacheEnabled    bool   `json:"cache_enabled"`
	CacheTTLSeconds int64  `json:"cache_ttl_seconds"`
	JSON            bool   `json:"json"`
	Strict          bool   `json:"strict"`
	DisplayDotfiles bool   `json:"display_dotfiles"`
	Exclude         string `json:"exclude,omitempty"`
	CustomTemplate  bool   `json:"custom_template"`
}

func encodeMounts(routes []server.MountRoute) []mountPayload {
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Config.Name < routes[j].Config.Name
	})
	result := make([]mountPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, encodeMount(route))
	}
	return result
}

func encodeMount(route server.MountRoute) mountPayload {
	m := route.Config
	payload := mountPayload{
		Name:            m.Name,
		Prefix:          route.Prefix(),
		Root:            m.Root,
		Port:            route.ListenPort,
		CacheEnabled:    route.CacheTTL.Enabled,
		JSON:            config.Flag(m.JSON, false),
		Strict:          config.Flag(m.Strict, true),
		DisplayDotfiles: config.Flag(m.DisplayDotfiles, false),
		Exclude:         m.Exclude,
		CustomTemplate:  m.CustomTemplate != "",
	}
	if route.CacheTTL.Enabled {
		payload.CacheTTLSeconds = int64(route.CacheTTL.Value.Seconds())
	}
	return payload
}
