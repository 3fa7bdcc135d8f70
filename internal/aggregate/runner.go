// 包 aggregate 负责多 wiki 编排：
// - 并发抓取并归并每个 wiki 的未读监视列表
// - 结果按配置顺序排列，与完成顺序无关
// - 任一 wiki 失败即整体失败（不做部分成功）
package aggregate

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/logx"
	"mediawiki-watchlist/internal/model"
	"mediawiki-watchlist/internal/watchlist"
)

// Entry 为单个 wiki 的配置与归并后的监视列表。
type Entry struct {
	Wiki      config.Wiki
	Watchlist *watchlist.Reduced
}

// Result 与输入的 wiki 列表一一对应、顺序一致。
type Result []Entry

// Total 为所有 wiki 的未读页面数之和。
func (r Result) Total() int {
	n := 0
	for _, e := range r {
		n += e.Watchlist.Len()
	}
	return n
}

// Counts 返回每个 wiki 的未读数（用于运行记录）。
func (r Result) Counts() []model.WikiCount {
	out := make([]model.WikiCount, 0, len(r))
	for _, e := range r {
		out = append(out, model.WikiCount{Wiki: e.Wiki.DisplayName, Unread: e.Watchlist.Len()})
	}
	return out
}

// Runner 聚合执行器。
type Runner struct {
	src         watchlist.Source
	concurrency int
}

// New 创建 Runner；concurrency <= 0 时按 1 处理（串行）。
func New(src watchlist.Source, concurrency int) *Runner {
	return &Runner{src: src, concurrency: max(1, concurrency)}
}

// Run 抓取全部 wiki。第一个错误会取消其余请求并原样返回。
func (r *Runner) Run(ctx context.Context, wikis []config.Wiki) (Result, error) {
	out := make(Result, len(wikis))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, w := range wikis {
		i, w := i, w
		g.Go(func() error {
			start := time.Now()
			reduced, err := watchlist.FetchReduced(gctx, r.src, w)
			if err != nil {
				logx.Warnf("[%s] 抓取监视列表失败：%v", w.DisplayName, err)
				return err
			}
			logx.Debugf("[%s] 未读页面=%d 耗时=%s", w.DisplayName, reduced.Len(), time.Since(start).Round(time.Millisecond))
			out[i] = Entry{Wiki: w, Watchlist: reduced}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
