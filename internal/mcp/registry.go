// ABOUTME: Immutable tool registry and input schema generation
// ABOUTME: Tools keep their registration order; lookup by name is a map index

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/shelf-gateway/internal/auth"
)

// ErrToolCollision indicates two tools were registered under the same name.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidTool indicates a tool definition is incomplete.
var ErrInvalidTool = errors.New("invalid tool definition")

// ParamType is the primitive type tag of a tool parameter. It drives the
// generated input schema; arguments are not validated against it.
type ParamType int

const (
	ParamString ParamType = iota
	ParamInteger
	ParamNumber
	ParamBoolean
)

// SchemaType returns the JSON Schema type name. Unknown tags fall back to "string".
func (t ParamType) SchemaType() string {
	switch t {
	case ParamInteger:
		return "integer"
	case ParamNumber:
		return "number"
	case ParamBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Param is one named parameter of a tool. Every parameter is required.
type Param struct {
	Name string
	Type ParamType
}

// Handler executes a tool for a principal with arguments already filtered to
// the tool's declared parameters. Returned values are serialized as JSON text.
type Handler func(ctx context.Context, p *auth.Principal, args Arguments) (any, error)

// Tool is a registry entry.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// HasParam reports whether name is a declared parameter.
func (t Tool) HasParam(name string) bool {
	for _, p := range t.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// InputSchema is the JSON-Schema-like descriptor of a tool's arguments.
type InputSchema struct {
	Type       string           `json:"type"`
	Properties SchemaProperties `json:"properties"`
	Required   []string         `json:"required"`
}

// SchemaProperty describes one parameter. Descriptions are always empty;
// documentation lives in the tool description.
type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SchemaProperties is an ordered property list that marshals as a JSON object
// with keys in parameter order.
type SchemaProperties []NamedProperty

// NamedProperty pairs a parameter name with its schema.
type NamedProperty struct {
	Name     string
	Property SchemaProperty
}

// MarshalJSON writes the properties as an object, preserving order.
func (p SchemaProperties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, np := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(np.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(np.Property)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of properties. Key order is not recoverable
// from a generic decode, so the result is in document order.
func (p *SchemaProperties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object")
	}
	var out SchemaProperties
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var prop SchemaProperty
		if err := dec.Decode(&prop); err != nil {
			return err
		}
		out = append(out, NamedProperty{Name: key, Property: prop})
	}
	*p = out
	return nil
}

// InputSchema derives the tool's input schema. Every parameter is listed in
// required, in declaration order.
func (t Tool) InputSchema() InputSchema {
	schema := InputSchema{
		Type:       "object",
		Properties: make(SchemaProperties, 0, len(t.Params)),
		Required:   make([]string, 0, len(t.Params)),
	}
	for _, p := range t.Params {
		schema.Properties = append(schema.Properties, NamedProperty{
			Name:     p.Name,
			Property: SchemaProperty{Type: p.Type.SchemaType(), Description: ""},
		})
		schema.Required = append(schema.Required, p.Name)
	}
	return schema
}

// Describe returns the tools/list entry for the tool.
func (t Tool) Describe() ToolInfo {
	return ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema(),
	}
}

// Registry is a fixed tool catalogue. It is built once and never mutated, so
// concurrent reads need no locking.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry builds a registry from tools in the given order.
// Returns ErrToolCollision for duplicate names and ErrInvalidTool for tools
// without a name or handler, or with repeated parameter names.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make([]Tool, 0, len(tools)),
		index: make(map[string]int, len(tools)),
	}
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidTool)
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("%w: tool '%s' has no handler", ErrInvalidTool, t.Name)
		}
		if _, exists := r.index[t.Name]; exists {
			return nil, fmt.Errorf("%w: tool '%s' already registered", ErrToolCollision, t.Name)
		}
		seen := make(map[string]struct{}, len(t.Params))
		for _, p := range t.Params {
			if _, dup := seen[p.Name]; dup || p.Name == "" {
				return nil, fmt.Errorf("%w: tool '%s' has bad parameter '%s'", ErrInvalidTool, t.Name, p.Name)
			}
			seen[p.Name] = struct{}{}
		}

		params := make([]Param, len(t.Params))
		copy(params, t.Params)
		t.Params = params

		r.index[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Lookup returns the named tool. Names are case-sensitive.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Tools returns all tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Describe returns tools/list entries for every tool in registration order.
func (r *Registry) Describe() []ToolInfo {
	out := make([]ToolInfo, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Describe()
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
