package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediawiki-watchlist/internal/config"
)

const sampleJSON = `{
  "wikis": [
    {
      "displayName": "Wikipedia",
      "apiUrl": "https://en.wikipedia.org/w/api.php",
      "indexUrl": "https://en.wikipedia.org/w/index.php",
      "username": "Example",
      "watchlistToken": "abc123"
    }
  ]
}`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, config.RelPath)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestParse_JSONAndDefaults(t *testing.T) {
	c, err := config.Parse("inline", strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(c.Wikis) != 1 {
		t.Fatalf("wikis=%d want=1", len(c.Wikis))
	}
	w := c.Wikis[0]
	if w.DisplayName != "Wikipedia" || w.IndexURL != "https://en.wikipedia.org/w/index.php" || w.WatchlistToken != "abc123" {
		t.Fatalf("unexpected wiki: %+v", w)
	}
	if c.Concurrency != 4 || c.TimeoutSeconds != 30 || c.Browser == "" {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.LogLevel != "warn" || c.LogFormat != "pretty" || c.Database.Type != "sqlite" {
		t.Fatalf("log/db defaults not applied: %+v", c)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("MW_WATCHLIST_LOG_LEVEL", "debug")
	t.Setenv("MW_WATCHLIST_BROWSER", "firefox")
	c, err := config.Parse("inline", strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.LogLevel != "debug" || c.Browser != "firefox" {
		t.Fatalf("env overrides not applied: level=%q browser=%q", c.LogLevel, c.Browser)
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := config.Parse("bad.json", strings.NewReader(`{"wikis": [`))
	var fe *config.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expect FormatError, got %v", err)
	}
	if fe.Path != "bad.json" {
		t.Fatalf("path=%q", fe.Path)
	}
}

func TestParse_JSONEscapesAndDuplicateKeys(t *testing.T) {
	body := `{
	"wikis": [{
		"displayName": "A",
		"apiUrl": "https:\/\/a.example\/w\/api.php",
		"indexUrl": "https:\/\/a.example\/w\/index.php",
		"username": "U",
		"watchlistToken": "t"
	}],
	"logLevel": "info",
	"logLevel": "debug"
}`
	c, err := config.Parse("escaped.json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("valid JSON rejected: %v", err)
	}
	if c.Wikis[0].APIURL != "https://a.example/w/api.php" || c.Wikis[0].IndexURL != "https://a.example/w/index.php" {
		t.Fatalf("escaped slashes not decoded: %+v", c.Wikis[0])
	}
	if c.LogLevel != "debug" {
		t.Fatalf("last duplicate key should win, got %q", c.LogLevel)
	}
}

func TestParse_YAML(t *testing.T) {
	body := "wikis:\n  - displayName: A\n    apiUrl: https://a/api.php\n    indexUrl: https://a/index.php\nconcurrency: 2\n"
	c, err := config.Parse("config.yaml", strings.NewReader(body))
	if err != nil {
		t.Fatalf("yaml rejected: %v", err)
	}
	if len(c.Wikis) != 1 || c.Wikis[0].APIURL != "https://a/api.php" || c.Concurrency != 2 {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty name":   `{"wikis":[{"displayName":"","apiUrl":"a","indexUrl":"i"}]}`,
		"duplicate":    `{"wikis":[{"displayName":"A","apiUrl":"a","indexUrl":"i"},{"displayName":"A","apiUrl":"a","indexUrl":"i"}]}`,
		"no index":     `{"wikis":[{"displayName":"A","apiUrl":"a"}]}`,
		"no api":       `{"wikis":[{"displayName":"A","indexUrl":"i"}]}`,
		"bad database": `{"wikis":[],"database":{"type":"postgres"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Parse("x", strings.NewReader(body)); err == nil {
				t.Fatalf("expect validation error")
			}
		})
	}
	// discoverApi 允许省略 apiUrl
	ok := `{"wikis":[{"displayName":"A","indexUrl":"i","discoverApi":true}]}`
	if _, err := config.Parse("x", strings.NewReader(ok)); err != nil {
		t.Fatalf("discoverApi wiki rejected: %v", err)
	}
}

func TestFind(t *testing.T) {
	c, err := config.Parse("inline", strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := c.Find("Wikipedia"); !ok {
		t.Fatalf("expect match")
	}
	if _, ok := c.Find("wikipedia"); ok {
		t.Fatalf("lookup must be exact")
	}
}

func TestXDGSource_SearchOrder(t *testing.T) {
	home := t.TempDir()
	sys1 := t.TempDir()
	sys2 := t.TempDir()
	writeConfig(t, sys2, strings.Replace(sampleJSON, "Wikipedia", "Second", 1))
	env := map[string]string{
		"XDG_CONFIG_HOME": home,
		"XDG_CONFIG_DIRS": sys1 + string(os.PathListSeparator) + sys2,
	}
	src := config.XDGSource{Getenv: func(k string) string { return env[k] }}
	c, err := src.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Wikis[0].DisplayName != "Second" {
		t.Fatalf("expect config from second system dir, got %q", c.Wikis[0].DisplayName)
	}

	// 用户目录优先
	writeConfig(t, home, sampleJSON)
	c, err = src.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Wikis[0].DisplayName != "Wikipedia" {
		t.Fatalf("expect config from XDG_CONFIG_HOME, got %q", c.Wikis[0].DisplayName)
	}
}

func TestXDGSource_Missing(t *testing.T) {
	empty := t.TempDir()
	env := map[string]string{"XDG_CONFIG_HOME": empty, "XDG_CONFIG_DIRS": empty}
	_, err := config.XDGSource{Getenv: func(k string) string { return env[k] }}.Load()
	if !errors.Is(err, config.ErrMissingConfig) {
		t.Fatalf("expect ErrMissingConfig, got %v", err)
	}
}

func TestXDGSource_DefaultDirs(t *testing.T) {
	env := map[string]string{"HOME": "/home/u"}
	dirs := config.XDGSource{Getenv: func(k string) string { return env[k] }}.Dirs()
	if len(dirs) != 2 || dirs[0] != "/home/u/.config" || dirs[1] != "/etc/xdg" {
		t.Fatalf("unexpected dirs: %v", dirs)
	}
}

func TestFileSource_Missing(t *testing.T) {
	_, err := config.FileSource{Path: filepath.Join(t.TempDir(), "nope.json")}.Load()
	if !errors.Is(err, config.ErrMissingConfig) {
		t.Fatalf("expect ErrMissingConfig, got %v", err)
	}
}
