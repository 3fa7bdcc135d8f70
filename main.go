// 命令行入口：BitBar/SwiftBar 插件，显示各 wiki 监视列表中的未读页面。
// 具体命令见 internal/cli。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mediawiki-watchlist/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.New().Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
