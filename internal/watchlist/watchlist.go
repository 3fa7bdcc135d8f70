// 包 watchlist 负责单个 wiki 的未读监视列表：
// - Fetch：调用 API 取得原始记录（每个修订一条）
// - Reduce：按页面归并，只保留最早的未读修订
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/fetch"
	"mediawiki-watchlist/internal/mediawiki"
	"mediawiki-watchlist/internal/model"
)

// FormatOuterError 表示响应中没有 query.watchlist，Raw 为原始 JSON。
type FormatOuterError struct {
	Wiki config.Wiki
	Raw  []byte
}

func (e *FormatOuterError) Error() string {
	return fmt.Sprintf("did not receive watchlist for %s, received: %s", e.Wiki.DisplayName, e.Raw)
}

// FormatInnerError 表示 query.watchlist 存在但无法解析为条目列表。
type FormatInnerError struct {
	Wiki config.Wiki
	Err  error
}

func (e *FormatInnerError) Error() string {
	return fmt.Sprintf("received incorrectly formatted watchlist for %s: %v", e.Wiki.DisplayName, e.Err)
}

func (e *FormatInnerError) Unwrap() error { return e.Err }

// Querier 为 wiki API 的抽象：给定参数返回解析后的 JSON。
type Querier interface {
	Query(ctx context.Context, params url.Values) (map[string]any, error)
}

// Source 抓取单个 wiki 的原始未读记录。
type Source interface {
	Fetch(ctx context.Context, wiki config.Wiki) ([]model.WatchlistItem, error)
}

// APISource 通过 MediaWiki API 抓取。
type APISource struct {
	HTTP *fetch.Client
}

func (s APISource) Fetch(ctx context.Context, wiki config.Wiki) ([]model.WatchlistItem, error) {
	c, err := mediawiki.Connect(ctx, s.HTTP, wiki)
	if err != nil {
		return nil, err
	}
	return Fetch(ctx, c, wiki)
}

// Params 返回查询未读监视列表的参数：全部修订、时间正序、最大分页、仅未读。
func Params(wiki config.Wiki) url.Values {
	return url.Values{
		"action":   {"query"},
		"list":     {"watchlist"},
		"wlallrev": {"1"},
		"wldir":    {"newer"},
		"wllimit":  {"max"},
		"wlshow":   {"unread"},
		"wlowner":  {wiki.Username},
		"wltoken":  {wiki.WatchlistToken},
	}
}

// Fetch 查询并提取原始记录。
func Fetch(ctx context.Context, q Querier, wiki config.Wiki) ([]model.WatchlistItem, error) {
	raw, err := q.Query(ctx, Params(wiki))
	if err != nil {
		return nil, fmt.Errorf("fetch watchlist for %s: %w", wiki.DisplayName, err)
	}
	return Extract(wiki, raw)
}

// Extract 从 query.watchlist 取出条目列表。
func Extract(wiki config.Wiki, raw map[string]any) ([]model.WatchlistItem, error) {
	var list any
	found := false
	if q, ok := raw["query"].(map[string]any); ok {
		list, found = q["watchlist"]
	}
	if !found {
		b, err := mediawiki.JSON.Marshal(raw)
		if err != nil {
			b = []byte(fmt.Sprintf("%v", raw))
		}
		return nil, &FormatOuterError{Wiki: wiki, Raw: b}
	}
	b, err := mediawiki.JSON.Marshal(list)
	if err != nil {
		return nil, &FormatInnerError{Wiki: wiki, Err: err}
	}
	var rawItems []rawItem
	if err := mediawiki.JSON.Unmarshal(b, &rawItems); err != nil {
		return nil, &FormatInnerError{Wiki: wiki, Err: err}
	}
	items := make([]model.WatchlistItem, 0, len(rawItems))
	for i, ri := range rawItems {
		it, err := ri.item()
		if err != nil {
			return nil, &FormatInnerError{Wiki: wiki, Err: fmt.Errorf("watchlist[%d]: %w", i, err)}
		}
		items = append(items, it)
	}
	return items, nil
}

// rawItem 用指针区分字段缺失与零值，三个字段都是必需的。
type rawItem struct {
	PageID   *uint64 `json:"pageid"`
	OldRevID *uint64 `json:"old_revid"`
	Title    *string `json:"title"`
}

func (r rawItem) item() (model.WatchlistItem, error) {
	switch {
	case r.PageID == nil:
		return model.WatchlistItem{}, errors.New("missing field `pageid`")
	case r.OldRevID == nil:
		return model.WatchlistItem{}, errors.New("missing field `old_revid`")
	case r.Title == nil:
		return model.WatchlistItem{}, errors.New("missing field `title`")
	}
	return model.WatchlistItem{PageID: *r.PageID, OldRevID: *r.OldRevID, Title: *r.Title}, nil
}

// FetchReduced 抓取并归并，供菜单聚合与 open_all 共用。
func FetchReduced(ctx context.Context, src Source, wiki config.Wiki) (*Reduced, error) {
	items, err := src.Fetch(ctx, wiki)
	if err != nil {
		return nil, err
	}
	return Reduce(items), nil
}
