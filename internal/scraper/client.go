package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"NoccStacks-Crew/pkg/logger"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultUserAgent = "stackscrew/1.0"
)

// Client 基于 colly 抓取单个页面，只把 200 响应交给回调。
type Client struct {
	timeout   time.Duration
	userAgent string
	transport http.RoundTripper
	log       *slog.Logger
}

// ClientOption 定义可选的抓取配置。
type ClientOption func(*Client)

// WithTimeout 设置单次请求超时时间。
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent 设置请求使用的 User-Agent。
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// WithTransport 替换底层 HTTP Transport，主要用于测试。
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithLogger 指定日志记录器。
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient 创建抓取客户端。
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.log == nil {
		c.log = logger.Named("scraper")
	}
	return c
}

// Visit 请求 url，在响应为 200 时以 <html> 根节点调用 fn。Content-Type 不是
// HTML 的响应体同样按 HTML 解析。非 200 或网络错误返回 error，调用方可直接跳过。
func (c *Client) Visit(ctx context.Context, url string, fn func(doc *goquery.Selection)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(c.timeout)
	if c.transport != nil {
		collector.WithTransport(c.transport)
	}

	parsed := false
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		if e.Response.StatusCode != http.StatusOK || parsed {
			return
		}
		parsed = true
		fn(e.DOM)
	})

	// colly 的 OnHTML 只处理 Content-Type 含 html 的响应，其余 200 响应在这里解析。
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK || parsed {
			return
		}
		if strings.Contains(strings.ToLower(r.Headers.Get("Content-Type")), "html") {
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			c.log.Debug("解析响应失败", slog.String("url", url), slog.Any("error", err))
			return
		}
		parsed = true
		fn(doc.Find("html"))
	})

	if err := collector.Visit(url); err != nil {
		return fmt.Errorf("抓取 %s 失败: %w", url, err)
	}
	if !parsed {
		return fmt.Errorf("抓取 %s 未得到可解析的 HTML", url)
	}
	return nil
}

// StrippedText 返回选中节点下所有文本节点去除首尾空白后的直接拼接结果。
func StrippedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				b.WriteString(strings.TrimSpace(child.Text()))
				return
			}
			walk(child)
		})
	}
	sel.Each(func(_ int, s *goquery.Selection) {
		walk(s)
	})
	return b.String()
}
