// 包 launcher 负责外部进程：用浏览器打开 URL、发送桌面通知。
package launcher

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Process 为已启动的外部进程。*exec.Cmd 满足该接口。
type Process interface {
	Wait() error
}

// Browser 启动一个打开 url 的进程，不等待其退出。
type Browser interface {
	Open(url string) (Process, error)
}

// ExecBrowser 通过命令行打开 URL，例如 "open"、"xdg-open" 或 "open -a Firefox"。
type ExecBrowser struct {
	Command string
}

func (b ExecBrowser) Open(url string) (Process, error) {
	args := strings.Fields(b.Command)
	if len(args) == 0 {
		return nil, errors.New("browser command is empty")
	}
	cmd := exec.Command(args[0], append(args[1:], url)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	return cmd, nil
}

// Notifier 发送一条用户可见的通知。
type Notifier interface {
	Notify(title, body string) error
}

// DesktopNotifier 在 macOS 上使用 osascript，其余平台使用 notify-send。
type DesktopNotifier struct {
	GOOS string // 为空时取 runtime.GOOS
}

func (n DesktopNotifier) Notify(title, body string) error {
	goos := n.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	name, args := notifyCommand(goos, title, body)
	if out, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func notifyCommand(goos, title, body string) (string, []string) {
	if goos == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s", appleScriptString(body), appleScriptString(title))
		return "osascript", []string{"-e", script}
	}
	return "notify-send", []string{"--urgency=critical", title, body}
}

func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
