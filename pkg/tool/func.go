package tool

import (
	"context"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	bytesType   = reflect.TypeOf([]byte(nil))
)

// FuncOption adjusts a capability built by FromFunc.
type FuncOption func(map[string]any)

// WithDefault gives the named parameter a default value.
func WithDefault(name string, v any) FuncOption {
	return func(d map[string]any) { d[name] = v }
}

// FromFunc builds a capability from an ordinary Go function. Parameter
// names are taken from the "Args:" section of doc, in order. fn may take a
// context.Context first, and may return a value, an error, or both.
//
//	add := tool.Must(tool.FromFunc("add", `Adds.
//
//	Args:
//	    a: first
//	    b: second
//	`, func(a, b int) int { return a + b }))
func FromFunc(name, doc string, fn any, opts ...FuncOption) (*Capability, error) {
	if !identPattern.MatchString(name) {
		return nil, &NameError{Name: name}
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, &SignatureError{Tool: name, Msg: fmt.Sprintf("expected a function, got %T", fn)}
	}
	ft := v.Type()

	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		first = 1
	}

	if err := checkResults(name, ft); err != nil {
		return nil, err
	}

	parsed := ParseDoc(doc)
	if len(parsed.Args) != ft.NumIn()-first {
		return nil, fmt.Errorf("tool %s: %w: %d documented, %d declared", name, ErrDocMismatch, len(parsed.Args), ft.NumIn()-first)
	}

	defaults := map[string]any{}
	for _, opt := range opts {
		opt(defaults)
	}

	params := make([]Param, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		argName := parsed.Args[i-first].Name
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			return nil, &SignatureError{Tool: name, Param: argName, Msg: "variadic parameters are not supported"}
		}
		typ, ok := paramType(ft.In(i))
		if !ok {
			return nil, &SignatureError{Tool: name, Param: argName, Msg: fmt.Sprintf("unsupported type %s (only int, float, str, bool and bytes)", ft.In(i))}
		}
		p := Param{Name: argName, Type: typ}
		if d, ok := defaults[argName]; ok {
			p.Default, p.HasDefault = d, true
			delete(defaults, argName)
		}
		params = append(params, p)
	}
	for n := range defaults {
		return nil, &SignatureError{Tool: name, Param: n, Msg: "default for unknown parameter"}
	}

	return New(Definition{
		Name:    name,
		Doc:     doc,
		Params:  params,
		Handler: reflectHandler(v, params, first == 1),
	})
}

func checkResults(name string, ft reflect.Type) error {
	switch ft.NumOut() {
	case 0:
		return nil
	case 1:
		return nil
	case 2:
		if ft.Out(1) == errorType {
			return nil
		}
	}
	return &SignatureError{Tool: name, Msg: "function must return nothing, a value, an error, or a value and an error"}
}

func paramType(t reflect.Type) (Type, bool) {
	if t == bytesType {
		return TypeBytes, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt, true
	case reflect.Float32, reflect.Float64:
		return TypeFloat, true
	case reflect.String:
		return TypeStr, true
	case reflect.Bool:
		return TypeBool, true
	}
	return "", false
}

func reflectHandler(fn reflect.Value, params []Param, withCtx bool) Handler {
	ft := fn.Type()
	return func(ctx context.Context, args Values) (any, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		for _, p := range params {
			at := ft.In(len(in))
			arg, err := convertArg(args[p.Name], at)
			if err != nil {
				return nil, modelErrorf(KindValue, "argument %q: %v", p.Name, err)
			}
			in = append(in, arg)
		}

		out := fn.Call(in)
		switch len(out) {
		case 0:
			return nil, nil
		case 1:
			if ft.Out(0) == errorType {
				return nil, asError(out[0])
			}
			return out[0].Interface(), nil
		default:
			return out[0].Interface(), asError(out[1])
		}
	}
}

func convertArg(v any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if reflect.Zero(t).OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Int()
		if n < 0 || reflect.Zero(t).OverflowUint(uint64(n)) {
			return reflect.Value{}, fmt.Errorf("%d overflows %s", n, t)
		}
		return reflect.ValueOf(uint64(n)).Convert(t), nil
	}
	return rv.Convert(t), nil
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
