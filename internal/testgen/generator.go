package testgen

import (
	"context"
	"fmt"
	"strings"

	"NoccStacks-Crew/internal/descriptor"
)

// Request 是生成测试脚手架所需的输入。
type Request struct {
	ContractName        string                               `json:"contract_name" validate:"required" jsonschema:"description=Name of the smart contract to test"`
	ContractDescription string                               `json:"contract_description" validate:"required" jsonschema:"description=Description of what the contract does"`
	Functions           descriptor.List[descriptor.Function] `json:"functions" jsonschema:"required,description=Functions to test with their descriptions and expected behaviors"`
	TestScenarios       descriptor.List[descriptor.Scenario] `json:"test_scenarios,omitempty" jsonschema:"description=Specific test scenarios to include"`
}

// Validate 检查结构化校验无法表达的必填项。
func (r Request) Validate() error {
	if !r.Functions.Present {
		return fmt.Errorf("functions 不能为空")
	}
	return nil
}

const (
	blockchainClient = "@stacks/blockchain-api-client"

	defaultImport = "import { Chain, Clarinet, Tx, types } from '@stacks/blockchain-api-client';\n" +
		"import { describe, expect, it, beforeEach } from 'vitest';"
	defaultAssertion   = "expect(receipt.result).toBe(types.ok(true));"
	defaultScenarioFn  = "test-function"
	defaultScenarioTxt = "      // Add test implementation"
	assertionIndent    = "      "
)

// Generator 结合文档片段生成测试文件。
type Generator struct {
	source PatternSource
}

// NewGenerator 创建测试生成器，source 为 nil 时使用离线模式。
func NewGenerator(source PatternSource) *Generator {
	if source == nil {
		source = StaticPatterns{}
	}
	return &Generator{source: source}
}

// Generate 获取片段后渲染测试文件。
func (g *Generator) Generate(ctx context.Context, req Request) string {
	return Render(req, g.source.Patterns(ctx))
}

// Render 使用给定片段渲染测试文件，结果只取决于输入。
func Render(req Request, patterns Patterns) string {
	lines := []string{
		importHeader(patterns),
		"",
		fmt.Sprintf("describe('%s', () => {", req.ContractName),
		"  // " + req.ContractDescription,
		"  let chain: Chain;",
		"  let accounts: Map<string, Account>;",
		"",
		"  beforeEach(() => {",
		"    chain = new Chain();",
		"    accounts = new Map();",
		"    accounts.set('deployer', new Account('ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM'));",
		"    accounts.set('wallet_1', new Account('ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5'));",
		"  });",
		"",
	}

	for _, fn := range req.Functions.Items {
		if !fn.Name.Set() {
			continue
		}
		name := fn.Name.String()
		lines = append(lines,
			fmt.Sprintf("  describe('%s', () => {", name),
			fmt.Sprintf("    it('%s', () => {", testDescription(fn)),
			"      const deployer = accounts.get('deployer')!;",
			"      const receipt = chain.mineBlock([",
			"        Tx.contractCall(",
			fmt.Sprintf("          '%s',", req.ContractName),
			fmt.Sprintf("          '%s',", name),
			fmt.Sprintf("          [%s],", renderArgs(fn.Args)),
			"          deployer.address",
			"        )",
			"      ]).receipts[0];",
			"",
		)
		lines = append(lines, assertions(fn, patterns)...)
		lines = append(lines, "    });", "  });", "")
	}

	for _, sc := range req.TestScenarios.Items {
		if !sc.Description.Set() {
			continue
		}
		lines = append(lines,
			fmt.Sprintf("  describe('Scenario: %s', () => {", sc.Description.String()),
			"    it('should handle the scenario correctly', () => {",
		)
		if example, ok := matchExample(patterns.Examples, sc.Description.String()); ok {
			adapted := strings.ReplaceAll(example, "contract-name", req.ContractName)
			adapted = strings.ReplaceAll(adapted, "function-name", sc.Function.Or(defaultScenarioFn))
			lines = append(lines, assertionIndent+adapted)
		} else {
			lines = append(lines, sc.TestCode.Or(defaultScenarioTxt))
		}
		lines = append(lines, "    });", "  });", "")
	}

	lines = append(lines, "});")
	return strings.Join(lines, "\n")
}

func importHeader(patterns Patterns) string {
	for _, imp := range patterns.Imports {
		if strings.Contains(imp, blockchainClient) {
			return imp
		}
	}
	return defaultImport
}

func testDescription(fn descriptor.Function) string {
	if desc := fn.Description.String(); desc != "" {
		return "should " + strings.ToLower(desc)
	}
	if expected := fn.ExpectedBehavior.String(); expected != "" {
		return "should " + strings.ToLower(expected)
	}
	return "should execute " + strings.ReplaceAll(fn.Name.String(), "-", " ") + " successfully"
}

func assertions(fn descriptor.Function, patterns Patterns) []string {
	base := defaultAssertion
	keys := []string{"expect", "assert", strings.ToLower(fn.Name.String())}
	for _, p := range patterns.Assertions {
		if containsAny(strings.ToLower(p), keys) {
			base = p
			break
		}
	}
	out := []string{assertionIndent + base}

	behavior := strings.ToLower(fn.ExpectedBehavior.String())
	if behavior == "" {
		return out
	}
	if strings.Contains(behavior, "error") {
		out = append(out, assertionIndent+"expect(receipt.result).toHaveProperty('error');")
	}
	if strings.Contains(behavior, "return") {
		out = append(out, assertionIndent+"expect(receipt.result).not.toBeNull();")
	}
	if strings.Contains(behavior, "state") {
		out = append(out,
			assertionIndent+"// Verify state changes",
			assertionIndent+"const state = chain.getAssetsMaps();",
			assertionIndent+"expect(state).toBeDefined();",
		)
	}
	return out
}

// renderArgs 拼接调用参数：字符串原样输出，对象取其 name 字段。
func renderArgs(args descriptor.Values) string {
	parts := make([]string, 0, len(args.Items))
	for _, arg := range args.Items {
		if arg.IsObject() {
			var p descriptor.Param
			if arg.Decode(&p) && p.Name.Set() {
				parts = append(parts, p.Name.String())
			}
			continue
		}
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, ", ")
}

func matchExample(examples []string, description string) (string, bool) {
	words := strings.Fields(strings.ToLower(description))
	if len(words) == 0 {
		return "", false
	}
	for _, ex := range examples {
		if containsAny(strings.ToLower(ex), words) {
			return ex, true
		}
	}
	return "", false
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
