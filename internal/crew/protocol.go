package crew

import (
	"encoding/json"
	"regexp"
	"strings"

	"NoccStacks-Crew/internal/tools"
)

// ToolCall 是从模型回复中解析出的一次工具调用。
type ToolCall struct {
	Tool       string `json:"tool_name"`
	Parameters string `json:"parameters"`
}

// ToolResult 是回传给模型的工具输出。
type ToolResult struct {
	Tool   string `json:"tool_name"`
	Output string `json:"output"`
}

var (
	toolCallRegEx    = regexp.MustCompile(`(?s)<tool_call>\s*<tool_name>(.*?)</tool_name>\s*<parameters>\s*(.*?)\s*</parameters>\s*</tool_call>`)
	finalAnswerRegEx = regexp.MustCompile(`(?s)<final_answer>(.*?)</final_answer>`)
)

// ExtractToolCalls 解析回复中的全部工具调用，参数保持原始 JSON 文本。
func ExtractToolCalls(content string) []ToolCall {
	matches := toolCallRegEx.FindAllStringSubmatch(content, -1)
	calls := make([]ToolCall, 0, len(matches))
	for _, m := range matches {
		calls = append(calls, ToolCall{
			Tool:       strings.TrimSpace(m[1]),
			Parameters: strings.TrimSpace(m[2]),
		})
	}
	return calls
}

// FinalAnswer 返回 <final_answer> 中的内容，没有该标签时返回整段回复。
func FinalAnswer(content string) string {
	if m := finalAnswerRegEx.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

// FormatToolResults 生成回传给模型的 <tool_result> 消息。
func FormatToolResults(results []ToolResult) string {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		data = []byte("[]")
	}
	return "<tool_result>\n" + string(data) + "\n</tool_result>"
}

const toolInstructions = `You have access to the following tools. Each tool has a name, a description and a JSON schema for its parameters.
<tools>
%s
</tools>
Tools Usage Instructions:
1. Choose the most appropriate tool for the current step.
2. Provide every required parameter in the correct format.
3. Invoke a tool with exactly this format, one block per call:
<tool_call>
  <tool_name>name_of_the_tool</tool_name>
  <parameters>
    {"param1": "value1"}
  </parameters>
</tool_call>
4. Tool outputs are returned to you inside <tool_result> tags. Use them in your next step.
5. If a tool returns an error, fix the parameters or continue without it.
6. When you are done, reply with your complete answer inside <final_answer></final_answer> and no tool calls.`

const noToolInstructions = `When you are done, reply with your complete answer inside <final_answer></final_answer>.`

func toolCatalogue(descs []tools.Descriptor) string {
	data, err := json.MarshalIndent(descs, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
