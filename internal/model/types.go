// 包 model 定义跨包共享的数据模型（监视列表条目/运行记录）。
package model

import "time"

// WatchlistItem 为 API 返回的一条未读变更记录。
// 同一页面可能出现多条（多个未读修订）。
type WatchlistItem struct {
	PageID   uint64 `json:"pageid"`
	OldRevID uint64 `json:"old_revid"`
	Title    string `json:"title"`
}

// WikiCount 为一次运行中单个 wiki 的未读页面数。
type WikiCount struct {
	Wiki   string `json:"wiki"`
	Unread int    `json:"unread"`
}

// Run 为一次菜单渲染的统计记录（仅保存数量，不保存修订号）。
type Run struct {
	ID        string      `json:"id"`
	StartedAt time.Time   `json:"started_at"`
	Total     int         `json:"total"`
	Wikis     []WikiCount `json:"wikis"`
	Error     string      `json:"error,omitempty"`
}

// Snapshot 为 --export 导出的 JSON 顶层结构。
type Snapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Total       int            `json:"total"`
	Wikis       []WikiSnapshot `json:"wikis"`
}

// WikiSnapshot 为单个 wiki 的导出内容，条目按 pageid 升序。
type WikiSnapshot struct {
	DisplayName string         `json:"display_name"`
	IndexURL    string         `json:"index_url"`
	Items       []SnapshotItem `json:"items"`
}

// SnapshotItem 为导出条目，附带差异链接。
type SnapshotItem struct {
	WatchlistItem
	DiffURL string `json:"diff_url"`
}
