package watchlist

import (
	"fmt"
	"sort"

	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/model"
)

// Reduced 为 pageid → 最早未读记录 的映射，遍历按 pageid 升序。
type Reduced struct {
	byPage map[uint64]model.WatchlistItem
}

// Reduce 按接收顺序遍历：页面首次出现时插入，之后仅当 old_revid 严格更小时替换。
// 这样链接跳到该页第一个未读差异，而不是最新的一个。
func Reduce(items []model.WatchlistItem) *Reduced {
	r := &Reduced{byPage: make(map[uint64]model.WatchlistItem, len(items))}
	for _, it := range items {
		cur, ok := r.byPage[it.PageID]
		if !ok || it.OldRevID < cur.OldRevID {
			r.byPage[it.PageID] = it
		}
	}
	return r
}

// Len 返回页面数。
func (r *Reduced) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byPage)
}

func (r *Reduced) Get(pageID uint64) (model.WatchlistItem, bool) {
	if r == nil {
		return model.WatchlistItem{}, false
	}
	it, ok := r.byPage[pageID]
	return it, ok
}

// Items 返回按 pageid 升序排列的副本。
func (r *Reduced) Items() []model.WatchlistItem {
	if r == nil {
		return nil
	}
	out := make([]model.WatchlistItem, 0, len(r.byPage))
	for _, it := range r.byPage {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageID < out[j].PageID })
	return out
}

// DiffURL 构造 <indexUrl>?pageid=<id>&diff=next&oldid=<oldRevId>。
func DiffURL(wiki config.Wiki, it model.WatchlistItem) string {
	return fmt.Sprintf("%s?pageid=%d&diff=next&oldid=%d", wiki.IndexURL, it.PageID, it.OldRevID)
}
