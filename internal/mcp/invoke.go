// ABOUTME: Tool invocation engine: argument filtering, handler execution, result serialization
// ABOUTME: Handler failures and panics become isError results, never JSON-RPC errors

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/2389/shelf-gateway/internal/auth"
)

// ErrUnknownTool indicates a tools/call named a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Engine runs registered tools on behalf of a principal.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Invoke runs the named tool. The only returned error is ErrUnknownTool;
// everything that goes wrong inside the tool is reported in the result.
func (e *Engine) Invoke(ctx context.Context, name string, raw map[string]any, p *auth.Principal) (CallToolResult, error) {
	tool, ok := e.registry.Lookup(name)
	if !ok {
		return CallToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args := FilterArguments(tool, raw)

	result, err := callHandler(ctx, tool, p, args)
	if err != nil {
		e.logger.Warn("tool execution failed",
			"tool_name", name,
			"error", err,
		)
		return textResult(fmt.Sprintf("Error executing tool %s: %s", name, err.Error()), true), nil
	}

	return textResult(SerializeResult(result), false), nil
}

// FilterArguments keeps only the keys the tool declares. Unknown keys are
// dropped without error and nothing is checked for presence or type.
func FilterArguments(tool Tool, raw map[string]any) Arguments {
	args := make(Arguments, len(tool.Params))
	for _, p := range tool.Params {
		if v, ok := raw[p.Name]; ok {
			args[p.Name] = v
		}
	}
	return args
}

// callHandler invokes the handler and converts a panic into an error.
func callHandler(ctx context.Context, tool Tool, p *auth.Principal, args Arguments) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%v", r)
		}
	}()
	return tool.Handler(ctx, p, args)
}

// SerializeResult renders a handler result as indented JSON without HTML
// escaping. Values that cannot be encoded are replaced by their fmt form, so
// serialization itself never fails.
func SerializeResult(v any) string {
	if text, err := encodeIndented(v); err == nil {
		return text
	}
	if text, err := encodeIndented(stringifyUnencodable(reflect.ValueOf(v))); err == nil {
		return text
	}
	return fmt.Sprint(v)
}

func encodeIndented(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// stringifyUnencodable walks maps, slices and pointers and swaps any leaf the
// JSON encoder rejects for its fmt.Sprint text.
func stringifyUnencodable(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if _, err := json.Marshal(v.Interface()); err == nil {
			return v.Interface()
		}
		return stringifyUnencodable(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		for _, k := range v.MapKeys() {
			out[fmt.Sprint(k.Interface())] = stringifyUnencodable(v.MapIndex(k))
		}
		return out
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = stringifyUnencodable(v.Index(i))
		}
		return out
	}

	if !v.CanInterface() {
		return fmt.Sprint(v)
	}
	iface := v.Interface()
	if _, err := json.Marshal(iface); err == nil {
		return iface
	}
	return fmt.Sprint(iface)
}
