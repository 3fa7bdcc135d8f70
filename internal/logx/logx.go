// 包 logx 是对标准库 slog 的薄封装。
// 标准输出被 BitBar 菜单协议占用，因此日志统一写入 stderr（或调用方指定的 io.Writer）。
package logx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// InitWriter 根据 level/format/locale/colorMode 初始化全局日志器，输出到 w。
func InitWriter(w io.Writer, level, format, locale, colorMode string) {
	lv := parseSlogLevel(level)
	opts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty", "":
		handler = NewPrettyHandler(w, lv, locale, colorMode)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseSlogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		var l slog.Level = 100
		return l
	case "warn", "warning", "":
		fallthrough
	default:
		return slog.LevelWarn
	}
}

func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// PrettyHandler 面向人读的单行输出：时间 等级 消息 k=v...
type PrettyHandler struct {
	w      io.Writer
	level  slog.Leveler
	locale string
	color  bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	group  string
}

func NewPrettyHandler(w io.Writer, lv slog.Leveler, locale string, colorMode string) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	if locale == "" {
		locale = "en"
	}
	ph := &PrettyHandler{w: w, level: lv, locale: locale, mu: &sync.Mutex{}}
	ph.color = shouldColor(w, colorMode)
	return ph
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	if ll, ok := h.level.(slog.Level); ok {
		return l >= ll && ll < 100
	}
	return l >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var buf bytes.Buffer
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.Format("2006-01-02 15:04:05"))
	buf.WriteString(" ")
	lvl := levelLabel(h.locale, r.Level)
	if h.color {
		lvl = colorize(lvl, r.Level)
	}
	buf.WriteString(lvl)
	buf.WriteString(" ")
	buf.WriteString(r.Message)
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
	}
	buf.WriteByte('\n')
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	cp := *h
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group += "." + name
	}
	return &cp
}

// levelLabel 根据语言返回等级标签，zh* 使用中文，其余使用英文。
func levelLabel(locale string, l slog.Level) string {
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		switch l {
		case slog.LevelDebug:
			return "[调试]"
		case slog.LevelInfo:
			return "[信息]"
		case slog.LevelWarn:
			return "[警告]"
		case slog.LevelError:
			return "[错误]"
		default:
			return fmt.Sprintf("[L%d]", l)
		}
	}
	switch l {
	case slog.LevelDebug:
		return "[DEBUG]"
	case slog.LevelInfo:
		return "[INFO]"
	case slog.LevelWarn:
		return "[WARN]"
	case slog.LevelError:
		return "[ERROR]"
	default:
		return fmt.Sprintf("[L%d]", l)
	}
}

// shouldColor 遵循 NO_COLOR 与 logColor（auto|always|never）。
func shouldColor(w io.Writer, mode string) bool {
	if v := os.Getenv("NO_COLOR"); v != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "auto", "":
		// BitBar 下 stderr 不是终端，自动关闭颜色
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				return (fi.Mode() & os.ModeCharDevice) != 0
			}
		}
		return false
	default:
		return false
	}
}

func colorize(s string, l slog.Level) string {
	code := "0"
	switch l {
	case slog.LevelDebug:
		code = "90"
	case slog.LevelInfo:
		code = "36"
	case slog.LevelWarn:
		code = "33"
	case slog.LevelError:
		code = "31"
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
