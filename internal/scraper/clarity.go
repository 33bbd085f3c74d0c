package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// 默认的文档地址。
const (
	DefaultBookBaseURL = "https://book.clarity-lang.org"
	bookChapters       = 12
)

// DefaultDocURLs 是 Clarity Book 之后追加抓取的 Stacks 文档页面。
var DefaultDocURLs = []string{
	"https://docs.stacks.co/docs/clarity/",
	"https://docs.stacks.co/docs/write-smart-contracts/",
}

// 片段类型。
const (
	SnippetExample     = "example"
	SnippetExplanation = "explanation"
)

const (
	exampleSelector     = "pre, code"
	explanationSelector = "p.content, p.explanation, div.content, div.explanation"
)

var exampleKeywords = []string{"define-", "contract-call?"}

// Snippet 是从文档页面中提取出的一段内容。
type Snippet struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// DocScraper 按主题抓取 Clarity 文档中的示例与说明。
type DocScraper struct {
	client      *Client
	bookBaseURL string
	docURLs     []string
	log         *slog.Logger
}

// NewDocScraper 创建文档抓取器，bookBaseURL 为空时使用默认地址；
// docURLs 为 nil 时使用 DefaultDocURLs。
func NewDocScraper(client *Client, bookBaseURL string, docURLs []string) *DocScraper {
	if client == nil {
		client = NewClient()
	}
	if strings.TrimSpace(bookBaseURL) == "" {
		bookBaseURL = DefaultBookBaseURL
	}
	if docURLs == nil {
		docURLs = DefaultDocURLs
	}
	return &DocScraper{
		client:      client,
		bookBaseURL: strings.TrimRight(bookBaseURL, "/"),
		docURLs:     append([]string(nil), docURLs...),
		log:         client.log,
	}
}

// URLs 返回主题对应的抓取地址，顺序即抓取顺序。
func (s *DocScraper) URLs(topic string) []string {
	slug := strings.ReplaceAll(strings.ToLower(topic), " ", "-")
	urls := make([]string, 0, bookChapters+len(s.docURLs))
	for i := 1; i <= bookChapters; i++ {
		urls = append(urls, fmt.Sprintf("%s/ch%02d-%s.html", s.bookBaseURL, i, slug))
	}
	return append(urls, s.docURLs...)
}

// Collect 依次抓取全部地址并返回匹配的片段。单个地址失败会被跳过，
// 只有 ctx 被取消时才返回错误。
func (s *DocScraper) Collect(ctx context.Context, topic string) ([]Snippet, error) {
	lowerTopic := strings.ToLower(topic)
	results := make([]Snippet, 0)

	for _, url := range s.URLs(topic) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var page []Snippet
		err := s.client.Visit(ctx, url, func(doc *goquery.Selection) {
			page = ExtractSnippets(doc, lowerTopic)
		})
		if err != nil {
			s.log.Debug("跳过文档页面", slog.String("url", url), slog.String("error", err.Error()))
			continue
		}
		results = append(results, page...)
	}
	return results, nil
}

// Scrape 返回片段列表的 JSON 文本；整体失败时返回 {"error": "..."}。
func (s *DocScraper) Scrape(ctx context.Context, topic string) string {
	snippets, err := s.Collect(ctx, topic)
	if err != nil {
		return errorJSON(err)
	}
	out, err := encodeSnippets(snippets)
	if err != nil {
		return errorJSON(err)
	}
	return out
}

// ExtractSnippets 从页面中提取示例与说明，lowerTopic 需已转为小写。
func ExtractSnippets(doc *goquery.Selection, lowerTopic string) []Snippet {
	var out []Snippet
	doc.Find(exampleSelector).Each(func(_ int, sel *goquery.Selection) {
		text := StrippedText(sel)
		if isExample(text, lowerTopic) {
			out = append(out, Snippet{Type: SnippetExample, Content: text})
		}
	})
	doc.Find(explanationSelector).Each(func(_ int, sel *goquery.Selection) {
		text := StrippedText(sel)
		if strings.Contains(strings.ToLower(text), lowerTopic) {
			out = append(out, Snippet{Type: SnippetExplanation, Content: text})
		}
	})
	return out
}

func isExample(text, lowerTopic string) bool {
	for _, kw := range exampleKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return strings.Contains(text, lowerTopic)
}

func encodeSnippets(snippets []Snippet) (string, error) {
	if snippets == nil {
		snippets = []Snippet{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snippets); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func errorJSON(err error) string {
	data, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error": "unknown error"}`
	}
	return string(data)
}
