package descriptor

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// Literal 保存一个任意 JSON 标量的原始文本。字符串按内容渲染，
// 数字和布尔值按字面量渲染，对象和数组按紧凑 JSON 渲染。
type Literal struct {
	raw json.RawMessage
}

// Text 构造字符串字面量。
func Text(s string) Literal {
	data, _ := json.Marshal(s)
	return Literal{raw: data}
}

// Int 构造整数字面量。
func Int(n int64) Literal {
	return Literal{raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// Bool 构造布尔字面量。
func Bool(b bool) Literal {
	return Literal{raw: json.RawMessage(strconv.FormatBool(b))}
}

// UnmarshalJSON 记录原始文本，null 视为缺失。
func (l *Literal) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		l.raw = nil
		return nil
	}
	l.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// MarshalJSON 原样输出。
func (l Literal) MarshalJSON() ([]byte, error) {
	if l.raw == nil {
		return []byte("null"), nil
	}
	return l.raw, nil
}

// JSONSchema 声明字面量可以是字符串、数字或布尔值。
func (Literal) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "number"},
			{Type: "boolean"},
		},
	}
}

// Set 判断字段是否出现且不为 null。
func (l Literal) Set() bool {
	return l.raw != nil
}

// String 返回用于拼接脚手架的文本。
func (l Literal) String() string {
	if l.raw == nil {
		return ""
	}
	if l.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(l.raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, l.raw); err != nil {
		return string(l.raw)
	}
	return buf.String()
}

// Or 在字段缺失时返回 def。
func (l Literal) Or(def string) string {
	if !l.Set() {
		return def
	}
	return l.String()
}

// IsObject 判断是否为 JSON 对象。
func (l Literal) IsObject() bool {
	return len(l.raw) > 0 && l.raw[0] == '{'
}

// Decode 在字面量为对象时解码到 v。
func (l Literal) Decode(v any) bool {
	if !l.IsObject() {
		return false
	}
	return json.Unmarshal(l.raw, v) == nil
}

// Truthy 判断布尔语义：true、非零数字、可解析为 true 的字符串为真；
// 无法解析的非空字符串同样为真。
func (l Literal) Truthy() bool {
	if l.raw == nil {
		return false
	}
	switch l.raw[0] {
	case 't':
		return true
	case 'f':
		return false
	case '"':
		s := strings.TrimSpace(l.String())
		if s == "" {
			return false
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return true
	case '{', '[':
		return len(l.raw) > 2
	default:
		f, err := strconv.ParseFloat(string(l.raw), 64)
		return err == nil && f != 0
	}
}
