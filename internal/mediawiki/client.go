// 包 mediawiki 是 MediaWiki Action API 的最小客户端：
// - Query：GET 请求并自动跟随 continue，合并 query 下的列表
// - DiscoverAPI：从 index.php 页面的 EditURI 链接发现 api.php 地址
package mediawiki

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/html/charset"

	"mediawiki-watchlist/internal/fetch"
	"mediawiki-watchlist/internal/logx"
)

// JSON 为全包使用的编解码配置（与 encoding/json 行为一致，map 键有序输出）。
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// maxContinuations 为 continue 翻页次数上限。
const maxContinuations = 50

// APIError 为 API 返回的 error 对象。
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("MediaWiki error: %s: %s", e.Code, e.Info)
}

// Client 绑定单个 wiki 的 api.php 地址。
type Client struct {
	http   *fetch.Client
	apiURL string
}

func New(cl *fetch.Client, apiURL string) *Client {
	return &Client{http: cl, apiURL: apiURL}
}

// APIURL 返回客户端使用的 api.php 地址。
func (c *Client) APIURL() string { return c.apiURL }

// Query 执行查询并跟随 continue，返回合并后的 JSON（数字保留为 json.Number）。
func (c *Client) Query(ctx context.Context, params url.Values) (map[string]any, error) {
	base := cloneValues(params)
	base.Set("format", "json")
	cont := url.Values{}
	var merged map[string]any
	for i := 0; i <= maxContinuations; i++ {
		q := cloneValues(base)
		for k, v := range cont {
			q[k] = v
		}
		page, err := c.get(ctx, q)
		if err != nil {
			return nil, err
		}
		if e, ok := page["error"].(map[string]any); ok {
			return nil, &APIError{Code: str(e["code"]), Info: str(e["info"])}
		}
		next, hasNext := page["continue"].(map[string]any)
		delete(page, "continue")
		if merged == nil {
			merged = page
		} else {
			mergeQuery(merged, page)
		}
		if !hasNext {
			return merged, nil
		}
		cont = url.Values{}
		for k, v := range next {
			cont.Set(k, str(v))
		}
		logx.Debugf("follow continue on %s: %v", c.apiURL, cont.Encode())
	}
	return nil, fmt.Errorf("too many continuations from %s", c.apiURL)
}

func (c *Client) get(ctx context.Context, q url.Values) (map[string]any, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url %s: %w", c.apiURL, err)
	}
	u.RawQuery = q.Encode()
	resp, err := c.http.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", c.apiURL, err)
	}
	defer resp.Body.Close()
	ct := resp.Header.Get("Content-Type")
	if mt, _, _ := mime.ParseMediaType(ct); mt == "text/html" {
		return nil, fmt.Errorf("expected JSON from %s, got HTML page %q", c.apiURL, pageTitle(resp.Body, ct))
	}
	var out map[string]any
	dec := JSON.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", c.apiURL, err)
	}
	return out, nil
}

// mergeQuery 把 next.query 下的数组追加到 dst.query 对应的数组上。
func mergeQuery(dst, next map[string]any) {
	nq, ok := next["query"].(map[string]any)
	if !ok {
		return
	}
	dq, ok := dst["query"].(map[string]any)
	if !ok {
		dst["query"] = nq
		return
	}
	for k, v := range nq {
		if add, ok := v.([]any); ok {
			if cur, ok := dq[k].([]any); ok {
				dq[k] = append(cur, add...)
				continue
			}
		}
		if _, exists := dq[k]; !exists {
			dq[k] = v
		}
	}
}

// pageTitle 提取 HTML 页面的 <title>，用于错误提示（例如 apiUrl 误填成了文章页）。
func pageTitle(body io.Reader, contentType string) string {
	r, err := charset.NewReader(io.LimitReader(body, 1<<20), contentType)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
