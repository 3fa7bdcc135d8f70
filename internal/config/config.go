// 包 config 负责发现、加载与校验插件配置（mediawiki-watchlist.json），
// 对外提供 Config/Wiki 结构体与可注入的 Source 接口。
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMissingConfig 表示所有候选目录中都没有可读的配置文件。
var ErrMissingConfig = errors.New("missing or invalid configuration file")

// FormatError 表示配置文件存在但无法解析或未通过校验。
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("error in config file %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Config 为插件配置。配置文件是 JSON，以 jsoniter 解析；非 JSON 内容按 YAML 解析。
type Config struct {
	Wikis          []Wiki   `json:"wikis" yaml:"wikis"`
	Concurrency    int      `json:"concurrency" yaml:"concurrency" env:"MW_WATCHLIST_CONCURRENCY"`
	TimeoutSeconds int      `json:"timeoutSeconds" yaml:"timeoutSeconds" env:"MW_WATCHLIST_TIMEOUT"`
	UserAgent      string   `json:"userAgent" yaml:"userAgent" env:"MW_WATCHLIST_USER_AGENT"`
	Browser        string   `json:"browser" yaml:"browser" env:"MW_WATCHLIST_BROWSER"`
	Proxy          Proxy    `json:"proxy" yaml:"proxy"`
	Database       Database `json:"database" yaml:"database"`
	LogLevel       string   `json:"logLevel" yaml:"logLevel" env:"MW_WATCHLIST_LOG_LEVEL"`
	LogFormat      string   `json:"logFormat" yaml:"logFormat" env:"MW_WATCHLIST_LOG_FORMAT"` // text|json|pretty
	LogLocale      string   `json:"logLocale" yaml:"logLocale" env:"MW_WATCHLIST_LOG_LOCALE"` // en|zh-CN
	LogColor       string   `json:"logColor" yaml:"logColor" env:"MW_WATCHLIST_LOG_COLOR"`    // auto|always|never
}

// Wiki 描述一个 wiki 站点。DisplayName 是唯一键，也是 open_all 的参数。
type Wiki struct {
	DisplayName    string `json:"displayName" yaml:"displayName"`
	APIURL         string `json:"apiUrl" yaml:"apiUrl"`
	IndexURL       string `json:"indexUrl" yaml:"indexUrl"`
	Username       string `json:"username" yaml:"username"`
	WatchlistToken string `json:"watchlistToken" yaml:"watchlistToken"`
	// DiscoverAPI 为 true 且 APIURL 为空时，从 IndexURL 页面的 EditURI 链接发现 API 地址。
	DiscoverAPI bool `json:"discoverApi" yaml:"discoverApi"`
}

type Proxy struct {
	HTTP  string `json:"http" yaml:"http" env:"MW_WATCHLIST_PROXY_HTTP"`
	HTTPS string `json:"https" yaml:"https" env:"MW_WATCHLIST_PROXY_HTTPS"`
}

// Database 为可选的运行记录存储；DSN 为空时不启用。
type Database struct {
	Type string `json:"type" yaml:"type" env:"MW_WATCHLIST_DB_TYPE"` // sqlite|leveldb
	DSN  string `json:"dsn" yaml:"dsn" env:"MW_WATCHLIST_DB_DSN"`
}

// Timeout 返回单个 wiki 请求的超时时间。
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Find 按显示名精确匹配 wiki（Validate 保证显示名唯一）。
func (c *Config) Find(displayName string) (Wiki, bool) {
	for _, w := range c.Wikis {
		if w.DisplayName == displayName {
			return w, true
		}
	}
	return Wiki{}, false
}

// Parse 解析配置内容、应用环境变量覆盖并校验；path 仅用于错误信息。
func Parse(path string, r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("read: %w", err)}
	}
	var c Config
	if err := decode(b, &c); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	// 环境变量覆盖文件中的值（未设置的变量不改变字段）
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("env: %w", err)}
	}
	if err := c.Validate(); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return &c, nil
}

// decode 以首个非空白字符区分 JSON 与 YAML。
func decode(b []byte, c *Config) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, c)
	}
	return yaml.Unmarshal(b, c)
}

// Validate 负责合法性检查与默认值填充。
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Wikis))
	for i, w := range c.Wikis {
		if strings.TrimSpace(w.DisplayName) == "" {
			return fmt.Errorf("wikis[%d]: displayName required", i)
		}
		if seen[w.DisplayName] {
			return fmt.Errorf("wikis[%d]: duplicate displayName %q", i, w.DisplayName)
		}
		seen[w.DisplayName] = true
		if w.IndexURL == "" {
			return fmt.Errorf("wiki %s: indexUrl required", w.DisplayName)
		}
		if w.APIURL == "" && !w.DiscoverAPI {
			return fmt.Errorf("wiki %s: apiUrl required (or set discoverApi)", w.DisplayName)
		}
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.Browser == "" {
		c.Browser = defaultBrowser()
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	switch c.Database.Type {
	case "sqlite", "leveldb":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "en"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

func defaultBrowser() string {
	if runtime.GOOS == "darwin" {
		return "open"
	}
	return "xdg-open"
}

// Load 从指定文件加载配置。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	return Parse(path, f)
}
