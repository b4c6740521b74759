// Package tool describes the local functions a model may call: their names,
// parameters and documentation, the catalog text shown to the model, and the
// parsing of the literal argument lists the model writes.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Type is a parameter type the call grammar can express.
type Type string

const (
	TypeInt   Type = "int"
	TypeFloat Type = "float"
	TypeStr   Type = "str"
	TypeBool  Type = "bool"
	TypeBytes Type = "bytes"
)

func (t Type) valid() bool {
	switch t {
	case TypeInt, TypeFloat, TypeStr, TypeBool, TypeBytes:
		return true
	}
	return false
}

// Param declares one parameter.
type Param struct {
	Name string
	Type Type
	// Default is used when HasDefault is set and the model omits the argument.
	Default    any
	HasDefault bool
	// Variadic parameters cannot be expressed and are rejected.
	Variadic bool
}

// Handler runs the tool with bound argument values.
type Handler func(ctx context.Context, args Values) (any, error)

// Definition is everything needed to build a Capability.
type Definition struct {
	Name    string
	Doc     string
	Params  []Param
	Handler Handler
}

// Capability is an immutable, validated tool.
type Capability struct {
	name        string
	description string
	params      []Param
	argDocs     []ArgDoc
	handler     Handler
	prompt      string
}

// New validates def and builds a Capability.
func New(def Definition) (*Capability, error) {
	if !identPattern.MatchString(def.Name) {
		return nil, &NameError{Name: def.Name}
	}
	if def.Handler == nil {
		return nil, &SignatureError{Tool: def.Name, Msg: "handler is required"}
	}

	seen := make(map[string]bool, len(def.Params))
	params := make([]Param, len(def.Params))
	for i, p := range def.Params {
		if !identPattern.MatchString(p.Name) {
			return nil, &SignatureError{Tool: def.Name, Param: p.Name, Msg: "name is not an identifier"}
		}
		if seen[p.Name] {
			return nil, &SignatureError{Tool: def.Name, Param: p.Name, Msg: "duplicate parameter"}
		}
		seen[p.Name] = true
		if p.Variadic {
			return nil, &SignatureError{Tool: def.Name, Param: p.Name, Msg: "variadic parameters are not supported"}
		}
		if !p.Type.valid() {
			return nil, &SignatureError{Tool: def.Name, Param: p.Name, Msg: fmt.Sprintf("unsupported type %q (only int, float, str, bool and bytes)", p.Type)}
		}
		if p.HasDefault {
			v, err := coerce(p.Default, p.Type)
			if err != nil {
				return nil, &SignatureError{Tool: def.Name, Param: p.Name, Msg: "default: " + err.Error()}
			}
			p.Default = v
		}
		params[i] = p
	}

	doc := ParseDoc(def.Doc)
	if len(doc.Args) != len(params) {
		return nil, fmt.Errorf("tool %s: %w: %d documented, %d declared", def.Name, ErrDocMismatch, len(doc.Args), len(params))
	}

	c := &Capability{
		name:        def.Name,
		description: doc.Description,
		params:      params,
		argDocs:     doc.Args,
		handler:     def.Handler,
	}
	c.prompt = c.render()
	return c, nil
}

// Must is like New but panics on error. Use it for package-level tools.
func Must(c *Capability, err error) *Capability {
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Capability) Name() string        { return c.name }
func (c *Capability) Description() string { return c.description }

// Params returns a copy of the declared parameters.
func (c *Capability) Params() []Param {
	return append([]Param(nil), c.params...)
}

// Prompt is the catalog entry shown to the model:
//
//	name(a: int, b: str="x")
//	<description>
//	a - <description of a>
//	b - <description of b>
//
// with "No args." in place of the parameter lines when there are none.
func (c *Capability) Prompt() string {
	return c.prompt
}

func (c *Capability) render() string {
	sig := make([]string, len(c.params))
	for i, p := range c.params {
		s := p.Name + ": " + string(p.Type)
		if p.HasDefault {
			s += "=" + FormatLiteral(p.Default)
		}
		sig[i] = s
	}

	lines := []string{
		c.name + "(" + strings.Join(sig, ", ") + ")",
		c.description,
	}
	if len(c.params) == 0 {
		lines = append(lines, "No args.")
	}
	for i, p := range c.params {
		lines = append(lines, p.Name+" - "+c.argDocs[i].Description)
	}
	return strings.Join(lines, "\n")
}

// Bind matches parsed arguments to the declared parameters. Every failure is
// a ModelError since the arguments were written by the model.
func (c *Capability) Bind(args Args) (Values, error) {
	if len(args.Positional) > len(c.params) {
		return nil, modelErrorf(KindType, "%s() takes %d positional argument(s) but %d were given", c.name, len(c.params), len(args.Positional))
	}

	values := make(Values, len(c.params))
	for i, v := range args.Positional {
		values[c.params[i].Name] = v
	}

	for _, name := range args.Order {
		if _, ok := c.param(name); !ok {
			return nil, modelErrorf(KindType, "%s() got an unexpected keyword argument %q", c.name, name)
		}
		if _, dup := values[name]; dup {
			return nil, modelErrorf(KindType, "%s() got multiple values for argument %q", c.name, name)
		}
		values[name] = args.Keyword[name]
	}

	for _, p := range c.params {
		v, ok := values[p.Name]
		if !ok {
			if !p.HasDefault {
				return nil, modelErrorf(KindType, "%s() missing required argument %q", c.name, p.Name)
			}
			values[p.Name] = p.Default
			continue
		}
		cv, err := coerce(v, p.Type)
		if err != nil {
			return nil, modelErrorf(KindType, "%s() argument %q: %v", c.name, p.Name, err)
		}
		values[p.Name] = cv
	}

	return values, nil
}

// Call binds args and runs the handler. Handler errors are returned as-is.
func (c *Capability) Call(ctx context.Context, args Args) (any, error) {
	values, err := c.Bind(args)
	if err != nil {
		return nil, err
	}
	return c.handler(ctx, values)
}

// CallText parses the raw argument text of a detected call and runs it.
func (c *Capability) CallText(ctx context.Context, raw string) (any, error) {
	args, err := ParseArgs(raw)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, args)
}

func (c *Capability) param(name string) (Param, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// coerce normalizes v to the Go representation of t: int64, float64,
// string, bool or []byte. Ints widen to float; nothing else converts.
func coerce(v any, t Type) (any, error) {
	switch t {
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case TypeStr:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %s", t, typeName(v))
}

func typeName(v any) string {
	switch v.(type) {
	case int, int32, int64:
		return "int"
	case float32, float64:
		return "float"
	case string:
		return "str"
	case bool:
		return "bool"
	case []byte:
		return "bytes"
	case nil:
		return "None"
	}
	return fmt.Sprintf("%T", v)
}

// FormatLiteral renders v in the argument grammar.
func FormatLiteral(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(x)
	case []byte:
		return "b" + strconv.Quote(string(x))
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	case int64:
		return strconv.FormatInt(x, 10)
	case nil:
		return "None"
	}
	return fmt.Sprint(v)
}

// FormatResult turns a handler result into the text recorded in the
// conversation.
func FormatResult(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	case bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		return fmt.Sprint(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Values are bound arguments keyed by parameter name.
type Values map[string]any

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Int(name string) int64 {
	n, _ := v[name].(int64)
	return n
}

func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

func (v Values) Bytes(name string) []byte {
	b, _ := v[name].([]byte)
	return b
}
