package descriptor

import (
	"bytes"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// List 是宽松解码的对象列表：非对象元素或解码失败的元素被丢弃，
// Len 记录原始元素个数，用于判断分段是否输出。
type List[T any] struct {
	Items   []T
	Len     int
	Present bool
}

// Of 由 Go 代码直接构造列表。
func Of[T any](items ...T) List[T] {
	return List[T]{Items: items, Len: len(items), Present: true}
}

// Empty 判断原始列表是否为空。
func (l List[T]) Empty() bool {
	return l.Len == 0
}

// UnmarshalJSON 逐个解码数组元素。非数组输入按空列表处理。
func (l *List[T]) UnmarshalJSON(data []byte) error {
	*l = List[T]{}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	l.Present = true

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil
	}
	l.Len = len(raws)
	for _, raw := range raws {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		l.Items = append(l.Items, item)
	}
	return nil
}

// MarshalJSON 只输出保留下来的元素，未出现的列表输出 null。
func (l List[T]) MarshalJSON() ([]byte, error) {
	if !l.Present {
		return []byte("null"), nil
	}
	if l.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Items)
}

// JSONSchema 描述为元素类型的数组。
func (List[T]) JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true, AllowAdditionalProperties: true}
	items := r.Reflect(new(T))
	items.Version = ""
	items.ID = ""
	return &jsonschema.Schema{Type: "array", Items: items}
}

// Values 是保留全部元素的值列表，元素可为字符串、数字或对象。
type Values struct {
	Items   []Literal
	Present bool
}

// ValuesOf 由 Go 代码直接构造值列表。
func ValuesOf(items ...Literal) Values {
	return Values{Items: items, Present: true}
}

// UnmarshalJSON 逐个保存数组元素。
func (v *Values) UnmarshalJSON(data []byte) error {
	*v = Values{}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	v.Present = true
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil
	}
	for _, raw := range raws {
		var lit Literal
		if err := lit.UnmarshalJSON(raw); err != nil || !lit.Set() {
			continue
		}
		v.Items = append(v.Items, lit)
	}
	return nil
}

// MarshalJSON 输出全部元素。
func (v Values) MarshalJSON() ([]byte, error) {
	if !v.Present {
		return []byte("null"), nil
	}
	if v.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.Items)
}

// JSONSchema 描述为任意元素的数组。
func (Values) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{}}
}
