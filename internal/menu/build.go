package menu

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/pretty"

	"mediawiki-watchlist/internal/aggregate"
	"mediawiki-watchlist/internal/feeds"
	"mediawiki-watchlist/internal/watchlist"
)

// OpenAllCommand 为 wiki 标题行调用的子命令名。
const OpenAllCommand = "open_all"

// Build 把聚合结果渲染为菜单。exePath 为空表示无法确定自身路径，此时 wiki 标题退化为纯文本。
func Build(res aggregate.Result, exePath string) Menu {
	total := res.Total()
	if total == 0 {
		return Menu{}
	}
	m := Menu{{Text: strconv.Itoa(total), TemplateImage: icon}}
	for _, e := range res {
		if e.Watchlist.Len() == 0 {
			continue
		}
		m = append(m, Sep())
		if exePath != "" {
			m = append(m, Item{
				Text:    e.Wiki.DisplayName,
				Command: []string{exePath, OpenAllCommand, e.Wiki.DisplayName},
				Refresh: true,
			})
		} else {
			m = append(m, Label(e.Wiki.DisplayName))
		}
		for _, it := range e.Watchlist.Items() {
			m = append(m, Link(it.Title, watchlist.DiffURL(e.Wiki, it)))
		}
	}
	return m
}

// FeedMenu 渲染 recent 子命令：标题为 "<wiki>: <条目数>"，之后每条订阅一项。
func FeedMenu(displayName string, items []feeds.Item) Menu {
	m := Menu{{Text: displayName + ": " + strconv.Itoa(len(items)), TemplateImage: icon}}
	if len(items) == 0 {
		return m
	}
	m = append(m, Sep())
	for _, it := range items {
		text := it.Title
		if it.Author != "" {
			text += " (" + it.Author + ")"
		}
		m = append(m, Link(text, it.Link))
	}
	return m
}

// ErrorMenu 在默认调用失败时替代正常菜单：图标标题 + 可读的错误描述。
func ErrorMenu(err error) Menu {
	m := Menu{{Text: "?", TemplateImage: icon}, Sep()}
	var outer *watchlist.FormatOuterError
	var inner *watchlist.FormatInnerError
	switch {
	case errors.As(err, &outer):
		m = append(m,
			Label("did not receive watchlist for "+outer.Wiki.DisplayName+", received:"),
			Label(compactJSON(outer.Raw)),
		)
	case errors.As(err, &inner):
		m = append(m,
			Label("received incorrectly formatted watchlist for "+inner.Wiki.DisplayName),
			Label(inner.Err.Error()),
		)
	default:
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				m = append(m, Label(line))
			}
		}
	}
	return m
}

// compactJSON 把原始 JSON 压成单行，保证在菜单中只占一项。
func compactJSON(raw []byte) string {
	return strings.TrimSpace(string(pretty.Ugly(raw)))
}
