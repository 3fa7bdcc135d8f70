// 包 fetch 封装访问 wiki 的 HTTP 客户端（代理/超时/User-Agent）。
// 不做自动重试：单个 wiki 请求失败即本次运行失败。
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Version 写入默认 User-Agent。
const Version = "0.3.0"

// DefaultUserAgent 为未配置 userAgent 时使用的 User-Agent。
const DefaultUserAgent = "bitbar-mediawiki-watchlist/" + Version

// Client 为 HTTP 客户端。
type Client struct {
	http *http.Client
	ua   string
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	UserAgent  string
}

// New 创建客户端，支持 http/https 代理与整体超时（默认 30 秒）。
func New(opts Options) (*Client, error) {
	var httpsProxy, httpProxy *url.URL
	var err error
	if opts.ProxyHTTPS != "" {
		if httpsProxy, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}
	if opts.ProxyHTTP != "" {
		if httpProxy, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && httpsProxy != nil {
				return httpsProxy, nil
			}
			if req.URL.Scheme == "http" && httpProxy != nil {
				return httpProxy, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Client{http: &http.Client{Transport: transport, Timeout: opts.Timeout}, ua: opts.UserAgent}, nil
}

// Get 发起一次 GET 请求；非 2xx 状态视为错误并关闭响应体。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("http status: %s", resp.Status)
	}
	return resp, nil
}
