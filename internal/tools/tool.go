package tools

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	xerrors "NoccStacks-Crew/internal/errors"
)

// 工具相关的错误码。
const (
	CodeToolNotFound     xerrors.Code = "TOOL_NOT_FOUND"
	CodeToolInputInvalid xerrors.Code = "TOOL_INPUT_INVALID"
)

func init() {
	xerrors.Register(CodeToolNotFound, xerrors.Attributes{Message: "tool not found", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeToolInputInvalid, xerrors.Attributes{Message: "invalid tool input", Severity: xerrors.SeverityInfo})
}

// Descriptor 描述工具的名称、用途与参数 JSON Schema。
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Executor 是可被智能体调用的工具。
type Executor interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, input string) (string, error)
}

// Validator 由输入类型实现，用于补充结构体标签无法表达的校验。
type Validator interface {
	Validate() error
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// handlerExecutor 通过反射调用 func(context.Context, In) (Out, error) 形式的处理函数。
type handlerExecutor struct {
	descriptor Descriptor
	inputType  reflect.Type
	handler    reflect.Value
}

// NewHandler 根据处理函数创建工具，参数 Schema 由输入类型推导。
func NewHandler(name, description string, handler any) (Executor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("工具名称不能为空")
	}
	value := reflect.ValueOf(handler)
	typ := value.Type()
	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("工具 %s 的处理函数必须是函数", name)
	}
	if typ.NumIn() != 2 || !typ.In(0).Implements(contextType) {
		return nil, fmt.Errorf("工具 %s 的处理函数必须接收 (context.Context, input)", name)
	}
	if typ.NumOut() != 2 || !typ.Out(1).Implements(errorType) {
		return nil, fmt.Errorf("工具 %s 的处理函数必须返回 (output, error)", name)
	}
	inputType := typ.In(1)
	if inputType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("工具 %s 的输入必须是结构体", name)
	}

	schema, err := reflectSchema(inputType)
	if err != nil {
		return nil, fmt.Errorf("生成工具 %s 参数 Schema 失败: %w", name, err)
	}

	return &handlerExecutor{
		descriptor: Descriptor{Name: name, Description: description, Parameters: schema},
		inputType:  inputType,
		handler:    value,
	}, nil
}

func reflectSchema(t reflect.Type) (json.RawMessage, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true, AllowAdditionalProperties: true}
	schema := r.ReflectFromType(t)
	schema.Version = ""
	schema.ID = ""
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (h *handlerExecutor) Descriptor() Descriptor {
	return h.descriptor
}

// Execute 解码并校验 JSON 输入后调用处理函数。字符串结果原样返回，
// 其他结果编码为 JSON。
func (h *handlerExecutor) Execute(ctx context.Context, input string) (string, error) {
	ptr := reflect.New(h.inputType)
	if strings.TrimSpace(input) == "" {
		input = "{}"
	}
	if err := json.Unmarshal([]byte(input), ptr.Interface()); err != nil {
		return "", xerrors.Wrap(CodeToolInputInvalid, err, "工具参数不是合法的 JSON",
			xerrors.WithMetadata("tool", h.descriptor.Name))
	}
	if err := validateInput(ptr.Interface()); err != nil {
		return "", xerrors.New(CodeToolInputInvalid, err.Error(),
			xerrors.WithMetadata("tool", h.descriptor.Name))
	}

	results := h.handler.Call([]reflect.Value{reflect.ValueOf(ctx), ptr.Elem()})
	if errValue := results[1].Interface(); errValue != nil {
		return "", errValue.(error)
	}

	out := results[0].Interface()
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("编码工具 %s 结果失败: %w", h.descriptor.Name, err)
	}
	return string(data), nil
}

func validateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if stdErrors.As(err, &fieldErrs) {
			missing := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				missing = append(missing, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("参数校验失败: %s", strings.Join(missing, ", "))
		}
		return err
	}
	if v, ok := input.(Validator); ok {
		return v.Validate()
	}
	return nil
}
