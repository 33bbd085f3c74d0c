package testgen

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NoccStacks-Crew/internal/scraper"
	"NoccStacks-Crew/pkg/logger"
)

// DefaultPatternURLs 是 Clarinet JS SDK 的测试指南页面。
var DefaultPatternURLs = []string{
	"https://docs.hiro.so/stacks/clarinet-js-sdk/guides/unit-testing",
	"https://docs.hiro.so/stacks/clarinet-js-sdk/guides/integration-testing",
	"https://docs.hiro.so/stacks/clarinet-js-sdk/guides/migrate-to-the-clarinet-sdk",
}

// Bucket 是代码片段的分类。
type Bucket string

const (
	BucketNone       Bucket = ""
	BucketImports    Bucket = "imports"
	BucketTestSetup  Bucket = "test_setup"
	BucketAssertions Bucket = "assertions"
	BucketExamples   Bucket = "examples"
)

// 分类关键字按顺序匹配，先命中者优先。
var bucketKeywords = []struct {
	bucket   Bucket
	keywords []string
}{
	{BucketImports, []string{"import"}},
	{BucketTestSetup, []string{"beforeeach", "beforeall", "aftereach", "afterall"}},
	{BucketAssertions, []string{"assert", "expect", "tobe", "equal"}},
	{BucketExamples, []string{"describe", "it(", "test(", "should"}},
}

// Categorize 返回片段所属的分类，未命中时返回 BucketNone。
func Categorize(code string) Bucket {
	lower := strings.ToLower(code)
	for _, entry := range bucketKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.bucket
			}
		}
	}
	return BucketNone
}

// Patterns 汇总了按分类保存的文档片段，保持抓取顺序。
type Patterns struct {
	Imports    []string `json:"imports"`
	TestSetup  []string `json:"test_setup"`
	Assertions []string `json:"assertions"`
	Examples   []string `json:"examples"`
}

// Add 将片段放入对应分类，未命中的片段被丢弃。
func (p *Patterns) Add(code string) {
	switch Categorize(code) {
	case BucketImports:
		p.Imports = append(p.Imports, code)
	case BucketTestSetup:
		p.TestSetup = append(p.TestSetup, code)
	case BucketAssertions:
		p.Assertions = append(p.Assertions, code)
	case BucketExamples:
		p.Examples = append(p.Examples, code)
	}
}

// PatternSource 提供生成测试时参考的片段。
type PatternSource interface {
	Patterns(ctx context.Context) Patterns
}

// StaticPatterns 直接返回固定片段，零值即离线模式。
type StaticPatterns Patterns

// Patterns 实现 PatternSource。
func (s StaticPatterns) Patterns(context.Context) Patterns {
	return Patterns(s)
}

// Harvester 从文档页面实时抓取片段。
type Harvester struct {
	client *scraper.Client
	urls   []string
	log    *slog.Logger
}

// NewHarvester 创建片段抓取器，urls 为空时使用 DefaultPatternURLs。
func NewHarvester(client *scraper.Client, urls []string, log *slog.Logger) *Harvester {
	if client == nil {
		client = scraper.NewClient()
	}
	if len(urls) == 0 {
		urls = DefaultPatternURLs
	}
	if log == nil {
		log = logger.Named("testgen")
	}
	return &Harvester{client: client, urls: append([]string(nil), urls...), log: log}
}

// Patterns 依次抓取页面中的 pre/code 片段，失败的页面被跳过。
func (h *Harvester) Patterns(ctx context.Context) Patterns {
	var patterns Patterns
	for _, url := range h.urls {
		if ctx.Err() != nil {
			break
		}
		err := h.client.Visit(ctx, url, func(doc *goquery.Selection) {
			doc.Find("pre, code").Each(func(_ int, sel *goquery.Selection) {
				patterns.Add(scraper.StrippedText(sel))
			})
		})
		if err != nil {
			h.log.Debug("跳过测试模式页面", slog.String("url", url), slog.String("error", err.Error()))
		}
	}
	return patterns
}

var (
	_ PatternSource = StaticPatterns{}
	_ PatternSource = (*Harvester)(nil)
)
