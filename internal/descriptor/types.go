package descriptor

// DataVar 描述一个 define-data-var。
type DataVar struct {
	Name    Literal `json:"name" jsonschema:"description=Variable name"`
	Type    Literal `json:"type" jsonschema:"description=Clarity type such as uint or principal"`
	Initial Literal `json:"initial,omitempty" jsonschema:"description=Initial value; defaults to false"`
}

// Map 描述一个 define-map，键值类型各有两种写法。
type Map struct {
	Name      Literal `json:"name"`
	KeyType   Literal `json:"key_type,omitempty"`
	Key       Literal `json:"key,omitempty"`
	ValueType Literal `json:"value_type,omitempty"`
	Value     Literal `json:"value,omitempty"`
}

// Param 是函数参数。
type Param struct {
	Name Literal `json:"name"`
	Type Literal `json:"type"`
}

// Function 描述一个合约函数，同时携带测试生成使用的字段。
type Function struct {
	Name             Literal     `json:"name"`
	Parameters       List[Param] `json:"parameters,omitempty"`
	Args             Values      `json:"args,omitempty"`
	Body             Literal     `json:"body,omitempty"`
	IsReadOnly       Literal     `json:"is_read_only,omitempty"`
	Description      Literal     `json:"description,omitempty"`
	ExpectedBehavior Literal     `json:"expected_behavior,omitempty"`
	ExpectedResult   Literal     `json:"expected_result,omitempty"`
}

// ErrorCode 描述一个错误常量。
type ErrorCode struct {
	Name    Literal `json:"name"`
	Code    Literal `json:"code"`
	Message Literal `json:"message,omitempty"`
}

// Scenario 描述一个额外的测试场景。
type Scenario struct {
	Description Literal `json:"description"`
	Function    Literal `json:"function,omitempty"`
	TestCode    Literal `json:"test_code,omitempty"`
}

// Params 返回函数的参数列表：优先 parameters，其次 args 中的对象元素。
// 缺少 name 或 type 的参数被跳过。
func (f Function) Params() []Param {
	var candidates []Param
	switch {
	case f.Parameters.Present:
		candidates = f.Parameters.Items
	case f.Args.Present:
		for _, arg := range f.Args.Items {
			var p Param
			if arg.Decode(&p) {
				candidates = append(candidates, p)
			}
		}
	}
	out := make([]Param, 0, len(candidates))
	for _, p := range candidates {
		if p.Name.Set() && p.Type.Set() {
			out = append(out, p)
		}
	}
	return out
}
