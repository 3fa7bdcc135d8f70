// 包 openall 实现 open_all 子命令：重新抓取某个 wiki 的未读列表，为每个页面打开一个浏览器标签，
// 等待全部进程退出后再停顿一段时间，让 wiki 先把这些页面记为已读，
// 否则宿主程序随后的刷新会看到旧的未读状态。
package openall

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/launcher"
	"mediawiki-watchlist/internal/logx"
	"mediawiki-watchlist/internal/watchlist"
)

// SettleDelay 为全部浏览器进程退出后的固定等待时间。
const SettleDelay = 2 * time.Second

// ErrMissingDisplayName 表示调用 open_all 时没有给出 wiki 显示名。
var ErrMissingDisplayName = errors.New("open_all command called with no display name")

// UnknownWikiError 表示配置中没有该显示名。
type UnknownWikiError struct {
	Name string
}

func (e *UnknownWikiError) Error() string {
	return "error in open_all command: unknown wiki: " + e.Name
}

// LaunchError 表示浏览器进程启动或等待失败。
type LaunchError struct {
	URL string
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("open %s: %v", e.URL, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Command 为 open_all 的执行体，依赖均可注入以便测试。
type Command struct {
	Source  watchlist.Source
	Browser launcher.Browser
	// Sleep 为空时使用 time.Sleep。
	Sleep func(time.Duration)
}

// Run 执行 open_all，返回打开的页面数。
func (c *Command) Run(ctx context.Context, cfg *config.Config, name string) (int, error) {
	if name == "" {
		return 0, ErrMissingDisplayName
	}
	wiki, ok := cfg.Find(name)
	if !ok {
		return 0, &UnknownWikiError{Name: name}
	}
	reduced, err := watchlist.FetchReduced(ctx, c.Source, wiki)
	if err != nil {
		return 0, err
	}
	items := reduced.Items()
	// 先全部启动再逐个等待，使浏览器启动开销重叠
	procs := make([]launcher.Process, 0, len(items))
	urls := make([]string, 0, len(items))
	var firstErr error
	for _, it := range items {
		u := watchlist.DiffURL(wiki, it)
		p, err := c.Browser.Open(u)
		if err != nil {
			firstErr = &LaunchError{URL: u, Err: err}
			break
		}
		procs = append(procs, p)
		urls = append(urls, u)
	}
	for i, p := range procs {
		err := p.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// 只有等待本身出错才算失败，进程退出码不计
			logx.Debugf("[%s] 浏览器进程退出：%s %v", wiki.DisplayName, urls[i], err)
			continue
		}
		if err != nil && firstErr == nil {
			firstErr = &LaunchError{URL: urls[i], Err: err}
		}
	}
	if firstErr != nil {
		return len(procs), firstErr
	}
	logx.Infof("[%s] 已打开 %d 个页面", wiki.DisplayName, len(procs))
	c.sleep(SettleDelay)
	return len(procs), nil
}

func (c *Command) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}
