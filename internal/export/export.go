// 包 export 负责 --export：将一次聚合结果写为 JSON 快照（含差异链接）。
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"mediawiki-watchlist/internal/aggregate"
	"mediawiki-watchlist/internal/model"
	"mediawiki-watchlist/internal/watchlist"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot 将聚合结果转换为导出结构，顺序与配置一致，条目按 pageid 升序。
func Snapshot(res aggregate.Result, now time.Time) model.Snapshot {
	out := model.Snapshot{GeneratedAt: now.UTC(), Total: res.Total(), Wikis: make([]model.WikiSnapshot, 0, len(res))}
	for _, e := range res {
		ws := model.WikiSnapshot{DisplayName: e.Wiki.DisplayName, IndexURL: e.Wiki.IndexURL, Items: []model.SnapshotItem{}}
		for _, it := range e.Watchlist.Items() {
			ws.Items = append(ws.Items, model.SnapshotItem{WatchlistItem: it, DiffURL: watchlist.DiffURL(e.Wiki, it)})
		}
		out.Wikis = append(out.Wikis, ws)
	}
	return out
}

// ToJSON 写入 JSON 文件（带缩进格式）。先写临时文件再改名。
func ToJSON(res aggregate.Result, path string, now time.Time) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.json")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Snapshot(res, now)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
