package mediawiki

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/fetch"
	"mediawiki-watchlist/internal/logx"
)

// Connect 返回 wiki 对应的客户端；APIURL 为空且开启 discoverApi 时先做发现。
func Connect(ctx context.Context, cl *fetch.Client, wiki config.Wiki) (*Client, error) {
	if wiki.APIURL != "" {
		return New(cl, wiki.APIURL), nil
	}
	if !wiki.DiscoverAPI {
		return nil, fmt.Errorf("wiki %s has no apiUrl", wiki.DisplayName)
	}
	api, err := DiscoverAPI(ctx, cl, wiki.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("discover api for %s: %w", wiki.DisplayName, err)
	}
	logx.Debugf("discovered api for %s: %s", wiki.DisplayName, api)
	return New(cl, api), nil
}

// DiscoverAPI 抓取 index 页面并解析 <link rel="EditURI">（RSD 声明），
// 其 href 形如 //host/w/api.php?action=rsd，去掉查询串即为 api.php 地址。
func DiscoverAPI(ctx context.Context, cl *fetch.Client, indexURL string) (string, error) {
	resp, err := cl.Get(ctx, indexURL)
	if err != nil {
		return "", fmt.Errorf("GET index %s: %w", indexURL, err)
	}
	defer resp.Body.Close()
	r, err := charset.NewReader(io.LimitReader(resp.Body, 4<<20), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode index html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse index html: %w", err)
	}
	var href string
	doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if strings.EqualFold(strings.TrimSpace(rel), "EditURI") {
			href, _ = s.Attr("href")
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("no EditURI link on %s", indexURL)
	}
	return resolveAPI(indexURL, href)
}

// resolveAPI 将 href 相对 base 绝对化（含 //host 协议相对写法）并去掉查询串与片段。
func resolveAPI(base, href string) (string, error) {
	bu, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", base, err)
	}
	ru, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse EditURI %s: %w", href, err)
	}
	u := bu.ResolveReference(ru)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
