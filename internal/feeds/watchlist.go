// 包 feeds 读取 wiki 的监视列表订阅（action=feedwatchlist），
// 使用 gofeed 解析 Atom/RSS 并归一化为 Item，供 recent 子命令展示。
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/fetch"
	"mediawiki-watchlist/internal/mediawiki"
)

// MaxHours 为 feedwatchlist 允许的最大时间窗口。
const MaxHours = 72

// maxFeedBytes 为订阅响应体读取上限。
const maxFeedBytes = 8 << 20

// Item 为归一化后的订阅条目。
type Item struct {
	Title   string
	Link    string
	Author  string
	Updated time.Time
}

// WatchlistURL 构造监视列表订阅地址；hours 超出 [1, 72] 时截断。
func WatchlistURL(apiURL string, wiki config.Wiki, hours int) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url %s: %w", apiURL, err)
	}
	if hours < 1 {
		hours = 1
	}
	if hours > MaxHours {
		hours = MaxHours
	}
	q := url.Values{
		"action":     {"feedwatchlist"},
		"feedformat": {"atom"},
		"hours":      {strconv.Itoa(hours)},
		"wlowner":    {wiki.Username},
		"wltoken":    {wiki.WatchlistToken},
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Watchlist 抓取并解析订阅，最多返回 max 条（0 表示不限制），顺序与订阅一致（新的在前）。
func Watchlist(ctx context.Context, cl *fetch.Client, apiURL string, wiki config.Wiki, hours, max int) ([]Item, error) {
	feedURL, err := WatchlistURL(apiURL, wiki, hours)
	if err != nil {
		return nil, err
	}
	resp, err := cl.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("GET watchlist feed for %s: %w", wiki.DisplayName, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read watchlist feed for %s: %w", wiki.DisplayName, err)
	}
	// 令牌错误等情况下 API 返回 JSON 错误对象，gofeed 会把它当成空的 JSON Feed
	if isJSON(resp.Header.Get("Content-Type"), body) {
		return nil, fmt.Errorf("watchlist feed for %s: %w", wiki.DisplayName, jsonError(body))
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse watchlist feed for %s: %w", wiki.DisplayName, err)
	}
	if feed.FeedType == "json" {
		return nil, fmt.Errorf("watchlist feed for %s: %w", wiki.DisplayName, jsonError(body))
	}
	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, Item{
			Title:   strings.TrimSpace(it.Title),
			Link:    strings.TrimSpace(it.Link),
			Author:  authorName(it),
			Updated: pickTime(it.UpdatedParsed, it.PublishedParsed),
		})
		if max > 0 && len(items) >= max {
			break
		}
	}
	return items, nil
}

func isJSON(contentType string, body []byte) bool {
	if mt, _, _ := mime.ParseMediaType(contentType); mt == "application/json" {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// jsonError 取出 API 的 error 对象；没有时返回通用错误。
func jsonError(body []byte) error {
	var env struct {
		Error *struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := mediawiki.JSON.Unmarshal(body, &env); err == nil && env.Error != nil {
		return &mediawiki.APIError{Code: env.Error.Code, Info: env.Error.Info}
	}
	return errors.New("expected an Atom feed, got JSON")
}

func pickTime(a, b *time.Time) time.Time {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return time.Time{}
}

func authorName(it *gofeed.Item) string {
	if it.Author != nil {
		if it.Author.Name != "" {
			return it.Author.Name
		}
		return it.Author.Email
	}
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		return it.Authors[0].Name
	}
	return ""
}
