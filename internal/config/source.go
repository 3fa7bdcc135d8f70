package config

import (
	"os"
	"path/filepath"
	"strings"
)

// RelPath 为配置文件相对于 XDG 配置目录的路径。
const RelPath = "bitbar/plugins/mediawiki-watchlist.json"

// EnvPath 指定配置文件路径的环境变量，优先于 XDG 搜索。
const EnvPath = "MEDIAWIKI_WATCHLIST_CONFIG"

// Source 提供已解析的配置；找不到返回 ErrMissingConfig，解析失败返回 *FormatError。
type Source interface {
	Load() (*Config, error)
}

// FileSource 从固定路径加载。
type FileSource struct {
	Path string
}

func (s FileSource) Load() (*Config, error) { return Load(s.Path) }

// XDGSource 依次在 XDG_CONFIG_HOME 与 XDG_CONFIG_DIRS 中查找 RelPath，第一个可打开的文件生效。
type XDGSource struct {
	// Getenv 为空时使用 os.Getenv（测试可注入）。
	Getenv func(string) string
}

func (s XDGSource) Load() (*Config, error) {
	for _, dir := range s.Dirs() {
		p := filepath.Join(dir, RelPath)
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		defer f.Close()
		return Parse(p, f)
	}
	return nil, ErrMissingConfig
}

// Dirs 返回按优先级排列的候选配置目录。
func (s XDGSource) Dirs() []string {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	var dirs []string
	if home := getenv("XDG_CONFIG_HOME"); home != "" && filepath.IsAbs(home) {
		dirs = append(dirs, home)
	} else if h := getenv("HOME"); h != "" {
		dirs = append(dirs, filepath.Join(h, ".config"))
	}
	cfgDirs := getenv("XDG_CONFIG_DIRS")
	if cfgDirs == "" {
		cfgDirs = "/etc/xdg"
	}
	for _, d := range strings.Split(cfgDirs, string(os.PathListSeparator)) {
		if d != "" && filepath.IsAbs(d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// DefaultSource 按 flag > 环境变量 > XDG 的优先级选择配置来源。
func DefaultSource(flagPath string) Source {
	if flagPath != "" {
		return FileSource{Path: flagPath}
	}
	if p := os.Getenv(EnvPath); p != "" {
		return FileSource{Path: p}
	}
	return XDGSource{}
}
