// 包 menu 描述并输出 BitBar/SwiftBar 插件菜单：
// 第一个分隔线之前是状态栏标题，之后是下拉菜单；每行形如 `文本 | key=value ...`。
package menu

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
)

//go:embed assets/watchlist.png
var icon []byte

// Icon 返回状态栏模板图标（PNG）。
func Icon() []byte { return icon }

// Item 为一行菜单。Sep 为 true 时输出分隔线，其余字段忽略。
type Item struct {
	Sep           bool
	Text          string
	Href          string
	Command       []string // 可执行文件 + 参数
	Refresh       bool
	TemplateImage []byte
}

// Menu 为有序菜单描述。
type Menu []Item

func Sep() Item { return Item{Sep: true} }

// Label 为不可点击的纯文本行。
func Label(text string) Item { return Item{Text: text} }

// Link 为点击后打开 URL 的行。
func Link(text, href string) Item { return Item{Text: text, Href: href} }

// WriteTo 按插件协议输出菜单。
func (m Menu) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, it := range m {
		b.WriteString(it.line())
		b.WriteByte('\n')
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func (m Menu) String() string {
	var b strings.Builder
	_, _ = m.WriteTo(&b)
	return b.String()
}

func (it Item) line() string {
	if it.Sep {
		return "---"
	}
	var params []string
	if it.Href != "" {
		params = append(params, "href="+quote(it.Href))
	}
	if len(it.Command) > 0 {
		params = append(params, "bash="+quote(it.Command[0]))
		for i, arg := range it.Command[1:] {
			params = append(params, "param"+strconv.Itoa(i+1)+"="+quote(arg))
		}
		params = append(params, "terminal=false")
	}
	if it.Refresh {
		params = append(params, "refresh=true")
	}
	if len(it.TemplateImage) > 0 {
		params = append(params, "templateImage="+base64.StdEncoding.EncodeToString(it.TemplateImage))
	}
	text := sanitize(it.Text)
	if len(params) == 0 {
		return text
	}
	return fmt.Sprintf("%s | %s", text, strings.Join(params, " "))
}

// sanitize 去掉换行并替换 `|`，避免标题被解析成参数或拆成多行。
func sanitize(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "|", "¦").Replace(s)
	if strings.HasPrefix(s, "--") {
		// 以 -- 开头会被当作子菜单或分隔线
		s = "\u200b" + s
	}
	return s
}

// quote 在值包含空白或引号时加双引号。
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\"'") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
