package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfigPath 返回 testdata 下的固定配置。
func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

// writeTempConfig 把 TOML 内容写入临时目录并返回路径。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// singleMount 生成只有一个 docs 挂载点的配置，extra 追加到该挂载点表内。
func singleMount(extra ...string) string {
	lines := append([]string{`[[Mount]]`, `Name = "docs"`, `Root = "."`}, extra...)
	return strings.Join(lines, "\n")
}
