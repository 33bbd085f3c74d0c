package crew

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "NoccStacks-Crew/internal/errors"
)

// CodeConfigInvalid 表示 agents/tasks 定义无法使用。
const CodeConfigInvalid xerrors.Code = "CREW_CONFIG_INVALID"

func init() {
	xerrors.Register(CodeConfigInvalid, xerrors.Attributes{Message: "invalid crew configuration", Severity: xerrors.SeverityWarning})
}

//go:embed defaults/agents.yaml defaults/tasks.yaml
var defaultFS embed.FS

// AgentDef 是 agents.yaml 中的一个智能体定义。
type AgentDef struct {
	Role          string   `yaml:"role" json:"role"`
	Goal          string   `yaml:"goal" json:"goal"`
	Backstory     string   `yaml:"backstory" json:"backstory"`
	Tools         []string `yaml:"tools" json:"tools,omitempty"`
	MaxIterations int      `yaml:"max_iterations" json:"max_iterations,omitempty"`
}

// TaskDef 是 tasks.yaml 中的一个任务定义。
type TaskDef struct {
	Description    string `yaml:"description" json:"description"`
	ExpectedOutput string `yaml:"expected_output" json:"expected_output"`
	Agent          string `yaml:"agent" json:"agent"`
}

// Definitions 汇总智能体与任务定义，Tasks 保持文件中的顺序。
type Definitions struct {
	Agents map[string]AgentDef
	Tasks  []NamedTask
}

// NamedTask 是带标识的任务定义。
type NamedTask struct {
	Name string
	TaskDef
}

// LoadDefinitions 读取 agents 与 tasks 定义，路径为空时使用内置定义。
func LoadDefinitions(agentsPath, tasksPath string) (*Definitions, error) {
	agentsData, err := readDefinition(agentsPath, "defaults/agents.yaml")
	if err != nil {
		return nil, err
	}
	tasksData, err := readDefinition(tasksPath, "defaults/tasks.yaml")
	if err != nil {
		return nil, err
	}
	return ParseDefinitions(agentsData, tasksData)
}

// DefaultDefinitions 返回内置定义。
func DefaultDefinitions() (*Definitions, error) {
	return LoadDefinitions("", "")
}

func readDefinition(path, embedded string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return defaultFS.ReadFile(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(CodeConfigInvalid, err, fmt.Sprintf("读取定义文件 %s 失败", path))
	}
	return data, nil
}

// ParseDefinitions 解析 YAML 内容，并校验任务引用的智能体存在。
func ParseDefinitions(agentsYAML, tasksYAML []byte) (*Definitions, error) {
	defs := &Definitions{Agents: make(map[string]AgentDef)}

	agentNodes, err := orderedMapping(agentsYAML, "agents")
	if err != nil {
		return nil, err
	}
	for _, entry := range agentNodes {
		var def AgentDef
		if err := entry.value.Decode(&def); err != nil {
			return nil, xerrors.Wrap(CodeConfigInvalid, err, fmt.Sprintf("解析智能体 %s 失败", entry.key))
		}
		defs.Agents[entry.key] = def.trimmed()
	}

	taskNodes, err := orderedMapping(tasksYAML, "tasks")
	if err != nil {
		return nil, err
	}
	for _, entry := range taskNodes {
		var def TaskDef
		if err := entry.value.Decode(&def); err != nil {
			return nil, xerrors.Wrap(CodeConfigInvalid, err, fmt.Sprintf("解析任务 %s 失败", entry.key))
		}
		def.Agent = strings.TrimSpace(def.Agent)
		if _, ok := defs.Agents[def.Agent]; !ok {
			return nil, xerrors.New(CodeConfigInvalid, fmt.Sprintf("任务 %s 引用了不存在的智能体 %q", entry.key, def.Agent))
		}
		def.Description = strings.TrimSpace(def.Description)
		def.ExpectedOutput = strings.TrimSpace(def.ExpectedOutput)
		defs.Tasks = append(defs.Tasks, NamedTask{Name: entry.key, TaskDef: def})
	}
	if len(defs.Tasks) == 0 {
		return nil, xerrors.New(CodeConfigInvalid, "未定义任何任务")
	}
	return defs, nil
}

type mappingEntry struct {
	key   string
	value *yaml.Node
}

// orderedMapping 按文档顺序返回顶层映射的键值。
func orderedMapping(data []byte, kind string) ([]mappingEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.Wrap(CodeConfigInvalid, err, fmt.Sprintf("解析 %s 定义失败", kind))
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, xerrors.New(CodeConfigInvalid, fmt.Sprintf("%s 定义必须是以标识为键的映射", kind))
	}
	entries := make([]mappingEntry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		entries = append(entries, mappingEntry{key: root.Content[i].Value, value: root.Content[i+1]})
	}
	return entries, nil
}

func (d AgentDef) trimmed() AgentDef {
	d.Role = strings.TrimSpace(d.Role)
	d.Goal = strings.TrimSpace(d.Goal)
	d.Backstory = strings.TrimSpace(d.Backstory)
	return d
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate 将 {key} 替换为 inputs 中的值，未知占位符保持原样。
func Interpolate(text string, inputs map[string]string) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := inputs[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

func (d AgentDef) interpolate(inputs map[string]string) AgentDef {
	d.Role = Interpolate(d.Role, inputs)
	d.Goal = Interpolate(d.Goal, inputs)
	d.Backstory = Interpolate(d.Backstory, inputs)
	return d
}

func (t TaskDef) interpolate(inputs map[string]string) TaskDef {
	t.Description = Interpolate(t.Description, inputs)
	t.ExpectedOutput = Interpolate(t.ExpectedOutput, inputs)
	return t
}
