package tools

import (
	"context"

	"NoccStacks-Crew/internal/contract"
	"NoccStacks-Crew/internal/scraper"
	"NoccStacks-Crew/internal/testgen"
)

// 内置工具名称。
const (
	ClarityDocScraper      = "clarity_doc_scraper"
	SmartContractGenerator = "smart_contract_generator"
	TestGenerator          = "test_generator"
)

// ScrapeInput 是文档抓取工具的输入。
type ScrapeInput struct {
	Topic string `json:"topic" validate:"required" jsonschema:"description=The Clarity documentation topic to search for"`
}

// Dependencies 汇总内置工具依赖的组件。
type Dependencies struct {
	Scraper *scraper.DocScraper
	Tests   *testgen.Generator
}

// NewBuiltinRegistry 注册三个内置工具。
func NewBuiltinRegistry(deps Dependencies) (*Registry, error) {
	if deps.Scraper == nil {
		deps.Scraper = scraper.NewDocScraper(nil, "", nil)
	}
	if deps.Tests == nil {
		deps.Tests = testgen.NewGenerator(nil)
	}

	handlers := []struct {
		name        string
		description string
		handler     any
	}{
		{
			name: ClarityDocScraper,
			description: "A tool for scraping and retrieving information from the Clarity language documentation. " +
				"Useful for finding best practices, syntax, and examples for Clarity smart contract development.",
			handler: func(ctx context.Context, in ScrapeInput) (string, error) {
				return deps.Scraper.Scrape(ctx, in.Topic), nil
			},
		},
		{
			name: SmartContractGenerator,
			description: "A tool for generating Clarity smart contract code based on specified features and requirements. " +
				"Generates contract scaffolding with proper syntax and best practices.",
			handler: func(_ context.Context, in contract.Request) (string, error) {
				return contract.Generate(in), nil
			},
		},
		{
			name: TestGenerator,
			description: "A tool for generating TypeScript test cases for Clarity smart contracts using the latest Clarinet SDK. " +
				"Creates comprehensive test suites covering main functionality and edge cases.",
			handler: func(ctx context.Context, in testgen.Request) (string, error) {
				return deps.Tests.Generate(ctx, in), nil
			},
		},
	}

	registry := NewRegistry()
	for _, h := range handlers {
		exec, err := NewHandler(h.name, h.description, h.handler)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(exec); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
