// 包 cli 基于 cobra 组装命令行：
// - 无参数：抓取全部 wiki 并输出菜单（失败时输出错误菜单，退出码 0）
// - open_all <显示名>：打开该 wiki 全部未读差异（失败时发送桌面通知，退出码 1）
// - recent <显示名>：以菜单形式输出监视列表订阅
// - history：输出运行记录
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mediawiki-watchlist/internal/aggregate"
	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/export"
	"mediawiki-watchlist/internal/feeds"
	"mediawiki-watchlist/internal/fetch"
	"mediawiki-watchlist/internal/launcher"
	"mediawiki-watchlist/internal/logx"
	"mediawiki-watchlist/internal/mediawiki"
	"mediawiki-watchlist/internal/menu"
	"mediawiki-watchlist/internal/model"
	"mediawiki-watchlist/internal/openall"
	"mediawiki-watchlist/internal/store"
	"mediawiki-watchlist/internal/watchlist"
)

const appName = "mediawiki-watchlist"

// App 持有命令行的外部依赖，字段为空时使用真实实现。
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	// Browser 根据配置返回浏览器启动器。
	Browser    func(cfg *config.Config) launcher.Browser
	Notifier   launcher.Notifier
	Executable func() (string, error)
	Sleep      func(time.Duration)
	Now        func() time.Time

	configPath string
	exportPath string
}

// New 返回使用真实依赖的 App。
func New() *App {
	return &App{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Browser: func(cfg *config.Config) launcher.Browser {
			return launcher.ExecBrowser{Command: cfg.Browser}
		},
		Notifier:   launcher.DesktopNotifier{},
		Executable: os.Executable,
		Sleep:      time.Sleep,
		Now:        time.Now,
	}
}

// Execute 运行命令并返回进程退出码。
func (a *App) Execute(ctx context.Context, args []string) int {
	cmd := a.Command()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		logx.Errorf("%v", err)
		return 1
	}
	return 0
}

// Command 构造根命令。
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Show unread MediaWiki watchlist entries as a BitBar/SwiftBar menu",
		Version:       fetch.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// 配置加载前先用默认级别，避免配置错误时无日志
			logx.InitWriter(a.stderr(), "warn", "pretty", "en", "auto")
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMenu(cmd.Context())
		},
	}
	root.SetOut(a.stdout())
	root.SetErr(a.stderr())
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file path (default: $"+config.EnvPath+" or XDG lookup of "+config.RelPath+")")
	root.Flags().StringVar(&a.exportPath, "export", "", "write the aggregated watchlist as JSON to this path")

	root.AddCommand(a.openAllCommand(), a.recentCommand(), a.historyCommand())
	return root
}

func (a *App) openAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   menu.OpenAllCommand + " <displayName>",
		Short: "Open every unread diff of one wiki in the browser",
		// 参数个数由 RunE 检查，以便缺参也走通知流程
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.runOpenAll(cmd.Context(), args)
			if err != nil {
				if nerr := a.notifier().Notify(appName, err.Error()); nerr != nil {
					logx.Warnf("发送通知失败：%v", nerr)
				}
				return err
			}
			logx.Debugf("open_all 完成：页面=%d", n)
			return nil
		},
	}
}

func (a *App) recentCommand() *cobra.Command {
	var hours, maxItems int
	cmd := &cobra.Command{
		Use:   "recent <displayName>",
		Short: "Show recent watchlist feed entries of one wiki as a menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.recentMenu(cmd.Context(), args[0], hours, maxItems)
			if err != nil {
				logx.Warnf("读取监视列表订阅失败：%v", err)
				m = menu.ErrorMenu(err)
			}
			_, err = m.WriteTo(a.stdout())
			return err
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "time window in hours (1-72)")
	cmd.Flags().IntVar(&maxItems, "max", 20, "maximum number of entries, 0 for all")
	return cmd
}

func (a *App) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded menu runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runHistory(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs, 0 for all")
	return cmd
}

// runMenu 为默认调用：任何错误都渲染为错误菜单，不影响退出码。
func (a *App) runMenu(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		logx.Warnf("加载配置失败：%v", err)
		return a.writeMenu(menu.ErrorMenu(err))
	}
	cl, err := httpClient(cfg)
	if err != nil {
		return a.writeMenu(menu.ErrorMenu(err))
	}
	started := a.now()
	res, err := aggregate.New(watchlist.APISource{HTTP: cl}, cfg.Concurrency).Run(ctx, cfg.Wikis)
	a.record(ctx, cfg, store.NewRun(res, err, started))
	if err != nil {
		return a.writeMenu(menu.ErrorMenu(err))
	}
	logx.Infof("聚合完成：wiki=%d 未读页面=%d 耗时=%s", len(res), res.Total(), a.now().Sub(started).Round(time.Millisecond))
	if a.exportPath != "" {
		if err := export.ToJSON(res, a.exportPath, a.now()); err != nil {
			logx.Warnf("导出失败：%v", err)
		} else {
			logx.Infof("已导出 %s", a.exportPath)
		}
	}
	return a.writeMenu(menu.Build(res, a.executable()))
}

func (a *App) runOpenAll(ctx context.Context, args []string) (int, error) {
	switch {
	case len(args) == 0:
		return 0, openall.ErrMissingDisplayName
	case len(args) > 1:
		return 0, fmt.Errorf("open_all command takes one display name, got %d arguments", len(args))
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return 0, err
	}
	cl, err := httpClient(cfg)
	if err != nil {
		return 0, err
	}
	c := &openall.Command{
		Source:  watchlist.APISource{HTTP: cl},
		Browser: a.browser(cfg),
		Sleep:   a.Sleep,
	}
	return c.Run(ctx, cfg, args[0])
}

func (a *App) recentMenu(ctx context.Context, name string, hours, maxItems int) (menu.Menu, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	wiki, ok := cfg.Find(name)
	if !ok {
		return nil, fmt.Errorf("unknown wiki: %s", name)
	}
	cl, err := httpClient(cfg)
	if err != nil {
		return nil, err
	}
	api, err := mediawiki.Connect(ctx, cl, wiki)
	if err != nil {
		return nil, err
	}
	items, err := feeds.Watchlist(ctx, cl, api.APIURL(), wiki, hours, maxItems)
	if err != nil {
		return nil, err
	}
	return menu.FeedMenu(wiki.DisplayName, items), nil
}

func (a *App) runHistory(ctx context.Context, limit int) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("history requires database.dsn in the configuration")
	}
	defer st.Close()
	runs, err := st.Recent(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTOTAL\tWIKIS\tERROR")
	for _, r := range runs {
		counts := make([]string, 0, len(r.Wikis))
		for _, c := range r.Wikis {
			counts = append(counts, fmt.Sprintf("%s=%d", c.Wiki, c.Unread))
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.StartedAt.Local().Format(time.RFC3339), r.Total, strings.Join(counts, " "), r.Error)
	}
	return tw.Flush()
}

// loadConfig 加载配置并按配置重新初始化日志。
func (a *App) loadConfig() (*config.Config, error) {
	cfg, err := config.DefaultSource(a.configPath).Load()
	if err != nil {
		return nil, err
	}
	logx.InitWriter(a.stderr(), cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)
	return cfg, nil
}

// record 保存运行记录；存储失败只记警告。
func (a *App) record(ctx context.Context, cfg *config.Config, run model.Run) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		logx.Warnf("打开运行记录存储失败：%v", err)
		return
	}
	if st == nil {
		return
	}
	defer st.Close()
	if err := st.RecordRun(ctx, run); err != nil {
		logx.Warnf("保存运行记录失败：%v", err)
	}
}

func (a *App) writeMenu(m menu.Menu) error {
	_, err := m.WriteTo(a.stdout())
	return err
}

func httpClient(cfg *config.Config) (*fetch.Client, error) {
	return fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.Timeout(),
		UserAgent:  cfg.UserAgent,
	})
}

func (a *App) stdout() io.Writer {
	if a.Stdout == nil {
		return os.Stdout
	}
	return a.Stdout
}

func (a *App) stderr() io.Writer {
	if a.Stderr == nil {
		return os.Stderr
	}
	return a.Stderr
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *App) notifier() launcher.Notifier {
	if a.Notifier == nil {
		return launcher.DesktopNotifier{}
	}
	return a.Notifier
}

func (a *App) browser(cfg *config.Config) launcher.Browser {
	if a.Browser == nil {
		return launcher.ExecBrowser{Command: cfg.Browser}
	}
	return a.Browser(cfg)
}

// executable 返回自身路径，失败时返回空串，菜单标题随之退化为纯文本。
func (a *App) executable() string {
	exe := a.Executable
	if exe == nil {
		exe = os.Executable
	}
	p, err := exe()
	if err != nil {
		logx.Warnf("无法确定可执行文件路径：%v", err)
		return ""
	}
	return p
}
