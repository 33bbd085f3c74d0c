package contract

import (
	"strings"

	"NoccStacks-Crew/internal/descriptor"
)

// Request 是生成合约脚手架所需的输入。
type Request struct {
	ContractName string                                `json:"contract_name" validate:"required" jsonschema:"description=Name of the smart contract to generate"`
	Features     []string                              `json:"features" validate:"required" jsonschema:"description=List of features to include in the contract"`
	DataVars     descriptor.List[descriptor.DataVar]   `json:"data_vars,omitempty" jsonschema:"description=Data variables to include"`
	Maps         descriptor.List[descriptor.Map]       `json:"maps,omitempty" jsonschema:"description=Maps to include"`
	Functions    descriptor.List[descriptor.Function]  `json:"functions,omitempty" jsonschema:"description=Functions to implement"`
	ErrorCodes   descriptor.List[descriptor.ErrorCode] `json:"error_codes,omitempty" jsonschema:"description=Error codes to define"`
}

const (
	defaultInitial   = "false"
	defaultKeyType   = "principal"
	defaultValueType = "bool"
	defaultBody      = "(ok true)"
	bodyIndent       = "    "
)

// Generate 按输入顺序渲染合约文本。Features 只作为上下文，不参与输出。
// 缺少必要字段的描述被跳过，列表为空时对应分段整体省略。
func Generate(req Request) string {
	lines := []string{
		";; " + req.ContractName,
		";; Generated smart contract based on Clarity documentation patterns",
		"",
	}

	if !req.DataVars.Empty() {
		lines = append(lines, ";; Data vars")
		for _, v := range req.DataVars.Items {
			if !v.Name.Set() || !v.Type.Set() {
				continue
			}
			lines = append(lines, "(define-data-var "+v.Name.String()+" "+v.Type.String()+" "+v.Initial.Or(defaultInitial)+")")
		}
		lines = append(lines, "")
	}

	if !req.Maps.Empty() {
		lines = append(lines, ";; Maps")
		for _, m := range req.Maps.Items {
			if !m.Name.Set() {
				continue
			}
			key := m.KeyType.Or(m.Key.Or(defaultKeyType))
			value := m.ValueType.Or(m.Value.Or(defaultValueType))
			lines = append(lines, "(define-map "+m.Name.String()+" "+key+" "+value+")")
		}
		lines = append(lines, "")
	}

	if !req.Functions.Empty() {
		lines = append(lines, ";; Functions")
		for _, fn := range req.Functions.Items {
			if !fn.Name.Set() {
				continue
			}
			lines = append(lines,
				"("+functionKind(fn)+" ("+fn.Name.String()+" "+renderParams(fn.Params())+")",
				bodyIndent+fn.Body.Or(defaultBody),
				")",
				"",
			)
		}
	}

	if !req.ErrorCodes.Empty() {
		lines = append(lines, ";; Error codes")
		for _, e := range req.ErrorCodes.Items {
			if !e.Name.Set() || !e.Code.Set() {
				continue
			}
			if e.Message.Set() {
				lines = append(lines, ";; "+e.Message.String())
			}
			lines = append(lines, "(define-constant "+e.Name.String()+" (err u"+e.Code.String()+"))")
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

func functionKind(fn descriptor.Function) string {
	if fn.IsReadOnly.Truthy() {
		return "define-read-only"
	}
	return "define-public"
}

func renderParams(params []descriptor.Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, "("+p.Name.String()+" "+p.Type.String()+")")
	}
	return strings.Join(parts, " ")
}
