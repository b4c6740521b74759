package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ramptix/leicht/pkg/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

// schemaTypes maps JSON Schema types to call-grammar types. Arrays and
// objects have no literal form in a call and are not supported.
var schemaTypes = map[string]tool.Type{
	"integer": tool.TypeInt,
	"number":  tool.TypeFloat,
	"string":  tool.TypeStr,
	"boolean": tool.TypeBool,
}

// ToolName is the capability name of an MCP tool: server_tool, with
// characters outside identifiers replaced by underscores.
func ToolName(server, name string) string {
	return nonIdent.ReplaceAllString(server+"_"+name, "_")
}

// NewCapability adapts an MCP tool to a capability that forwards calls to
// the client's server.
//
// Required properties come first in the order the schema lists them, then the
// optional ones by name. Optional properties without a schema default are
// sent only when the model passes a non-zero value.
func NewCapability(c *Client, t *mcp.Tool) (*tool.Capability, error) {
	schema, err := inputSchema(t)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", t.Name, err)
	}

	required := make(map[string]bool, len(schema.Required))
	names := make([]string, 0, len(schema.Properties))
	for _, name := range schema.Required {
		if _, ok := schema.Properties[name]; ok && !required[name] {
			required[name] = true
			names = append(names, name)
		}
	}
	var optional []string
	for name := range schema.Properties {
		if !required[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	names = append(names, optional...)

	params := make([]tool.Param, 0, len(names))
	sendAlways := make(map[string]bool, len(names))
	types := make(map[string]tool.Type, len(names))
	var doc strings.Builder
	doc.WriteString(description(c.Name(), t.Description))
	if len(names) > 0 {
		doc.WriteString("\n\nArgs:\n")
	}

	for _, name := range names {
		prop := schema.Properties[name]
		typ, ok := schemaTypes[prop.Type]
		if !ok {
			return nil, fmt.Errorf("tool %s: parameter %s has unsupported type %q", t.Name, name, prop.Type)
		}

		p := tool.Param{Name: name, Type: typ}
		types[name] = typ
		switch {
		case required[name]:
			sendAlways[name] = true
		case prop.Default != nil:
			p.Default, p.HasDefault = schemaDefault(prop.Default, typ), true
			sendAlways[name] = true
		default:
			p.Default, p.HasDefault = zero(typ), true
		}
		params = append(params, p)

		fmt.Fprintf(&doc, "    %s (%s): %s\n", name, typ, oneLine(prop.Description))
	}

	remote := t.Name
	return tool.New(tool.Definition{
		Name:   ToolName(c.Name(), t.Name),
		Doc:    doc.String(),
		Params: params,
		Handler: func(ctx context.Context, args tool.Values) (any, error) {
			arguments := make(map[string]any, len(args))
			for name, v := range args {
				if sendAlways[name] || v != zero(types[name]) {
					arguments[name] = v
				}
			}

			result, err := c.CallTool(ctx, remote, arguments)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Name(), err)
			}
			if result.IsError {
				return "Error: " + formatContent(result.Content), nil
			}
			return formatContent(result.Content), nil
		},
	})
}

type propertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default"`
}

type objectSchema struct {
	Properties map[string]propertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// inputSchema decodes the tool's input schema, whatever form the SDK holds
// it in.
func inputSchema(t *mcp.Tool) (*objectSchema, error) {
	var schema objectSchema
	if t.InputSchema == nil {
		return &schema, nil
	}

	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return &schema, nil
}

func description(server, desc string) string {
	desc = oneLine(desc)
	if desc == "" {
		desc = fmt.Sprintf("MCP tool from %s server", server)
	}
	return fmt.Sprintf("%s [MCP server: %s]", desc, server)
}

// oneLine collapses whitespace so that free text cannot break the
// documentation layout.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func zero(t tool.Type) any {
	switch t {
	case tool.TypeInt:
		return int64(0)
	case tool.TypeFloat:
		return float64(0)
	case tool.TypeBool:
		return false
	default:
		return ""
	}
}

// schemaDefault turns JSON numbers that are whole into integers for
// integer parameters.
func schemaDefault(v any, t tool.Type) any {
	if f, ok := v.(float64); ok && t == tool.TypeInt && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

// formatContent converts MCP content to text
func formatContent(content []mcp.Content) string {
	var parts []string

	for _, item := range content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s]", c.MIMEType))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[Audio: %s]", c.MIMEType))
		default:
			data, err := json.Marshal(item)
			if err != nil {
				parts = append(parts, fmt.Sprintf("[Unknown content type: %T]", item))
			} else {
				parts = append(parts, string(data))
			}
		}
	}

	if len(parts) == 0 {
		return "(no content)"
	}
	return strings.Join(parts, "\n")
}
