// ABOUTME: MCP method router: JSON-RPC 2.0 over HTTP POST behind the token gate
// ABOUTME: Handles the lifecycle, catalogue and tools/call methods without session state

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/shelf-gateway/internal/auth"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultProtocolVersion = "2024-11-05"
	DefaultServerName      = "anx-calibre-manager"
	DefaultServerVersion   = "0.1.0"

	// MaxRequestBodySize is the default maximum request body size (1MB).
	MaxRequestBodySize = 1 << 20
)

// Config holds configuration for the MCP server.
type Config struct {
	Registry        *Registry
	Logger          *slog.Logger
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
	MaxBodyBytes    int64
}

// Server answers MCP JSON-RPC requests. It keeps no per-client state: every
// request is handled on its own and initialize is advisory.
type Server struct {
	registry        *Registry
	engine          *Engine
	logger          *slog.Logger
	info            ServerInfo
	protocolVersion string
	maxBodyBytes    int64
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp")

	s := &Server{
		registry:        cfg.Registry,
		engine:          NewEngine(cfg.Registry, logger),
		logger:          logger,
		info:            ServerInfo{Name: cfg.ServerName, Version: cfg.ServerVersion},
		protocolVersion: cfg.ProtocolVersion,
		maxBodyBytes:    cfg.MaxBodyBytes,
	}
	if s.info.Name == "" {
		s.info.Name = DefaultServerName
	}
	if s.info.Version == "" {
		s.info.Version = DefaultServerVersion
	}
	if s.protocolVersion == "" {
		s.protocolVersion = DefaultProtocolVersion
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = MaxRequestBodySize
	}
	return s, nil
}

// RegisterRoutes registers POST /mcp on mux, wrapped by authMiddleware.
// Other HTTP methods on /mcp get the mux's 405.
func (s *Server) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /mcp", authMiddleware(s))
}

// ServeHTTP handles one JSON-RPC request. The caller must already be
// authenticated; the principal is read from the request context.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.sendInternalError(w, fmt.Errorf("%v", rec))
		}
	}()

	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.sendInternalError(w, errors.New("request is not authenticated"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	if err != nil {
		s.sendInternalError(w, fmt.Errorf("reading request body: %w", err))
		return
	}
	if int64(len(body)) > s.maxBodyBytes {
		s.sendInternalError(w, errors.New("request body too large"))
		return
	}
	if !json.Valid(body) {
		s.sendInternalError(w, errors.New("request body is not valid JSON"))
		return
	}

	env, ok := parseEnvelope(body)
	if !ok {
		s.sendJSONRPCError(w, http.StatusBadRequest, nil, JSONRPCInvalidRequest, "Invalid Request")
		return
	}

	s.logger.Debug("MCP request",
		"method", env.method,
		"user_id", principal.ID,
	)

	switch env.method {
	case "initialize":
		s.sendJSONRPCResult(w, env.id, s.initializeResult())
	case "notifications/initialized":
		w.WriteHeader(http.StatusNoContent)
	case "ping":
		s.sendJSONRPCResult(w, env.id, struct{}{})
	case "tools/list":
		s.sendJSONRPCResult(w, env.id, ListToolsResult{Tools: s.registry.Describe()})
	case "resources/list":
		s.sendJSONRPCResult(w, env.id, map[string][]any{"resources": {}})
	case "resources/templates/list":
		s.sendJSONRPCResult(w, env.id, map[string][]any{"resourceTemplates": {}})
	case "prompts/list":
		s.sendJSONRPCResult(w, env.id, map[string][]any{"prompts": {}})
	case "tools/call":
		s.handleToolsCall(w, r, env, principal)
	default:
		s.sendJSONRPCError(w, http.StatusNotFound, env.id, JSONRPCMethodNotFound, "Method not found")
	}
}

// envelope is the part of a request the router needs. params is left raw
// because only tools/call looks at it.
type envelope struct {
	id     json.RawMessage
	method string
	params json.RawMessage
}

// parseEnvelope accepts only a JSON object whose jsonrpc member is the string "2.0".
func parseEnvelope(body []byte) (envelope, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return envelope{}, false
	}

	var version string
	if err := json.Unmarshal(fields["jsonrpc"], &version); err != nil || version != "2.0" {
		return envelope{}, false
	}

	env := envelope{params: fields["params"]}
	if id, ok := fields["id"]; ok {
		env.id = id
	}
	// A non-string method simply matches nothing and ends up as method-not-found.
	_ = json.Unmarshal(fields["method"], &env.method)
	return env, true
}

func (s *Server) initializeResult() InitializeResult {
	return InitializeResult{
		ProtocolVersion: s.protocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     ToolsCapability{ListChanged: false},
			Resources: ResourcesCapability{Subscribe: false, ListChanged: false},
		},
		ServerInfo: s.info,
	}
}

// handleToolsCall resolves the tool name and delegates to the engine.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, env envelope, principal *auth.Principal) {
	var params map[string]json.RawMessage
	if isPresent(env.params) {
		if err := json.Unmarshal(env.params, &params); err != nil {
			s.sendInternalError(w, errors.New("params must be an object"))
			return
		}
	}

	name, isString := toolName(params["name"])
	if !isString {
		s.sendJSONRPCError(w, http.StatusNotFound, env.id, JSONRPCInvalidParams, "Unknown tool: "+name)
		return
	}
	if _, ok := s.registry.Lookup(name); !ok {
		s.sendJSONRPCError(w, http.StatusNotFound, env.id, JSONRPCInvalidParams, "Unknown tool: "+name)
		return
	}

	arguments := map[string]any{}
	if raw := params["arguments"]; isPresent(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&arguments); err != nil {
			s.sendInternalError(w, errors.New("arguments must be an object"))
			return
		}
	}

	s.logger.Debug("tools/call",
		"tool_name", name,
		"user_id", principal.ID,
	)

	result, err := s.engine.Invoke(r.Context(), name, arguments, principal)
	if err != nil {
		s.sendJSONRPCError(w, http.StatusNotFound, env.id, JSONRPCInvalidParams, "Unknown tool: "+name)
		return
	}

	s.logger.Debug("tools/call complete",
		"tool_name", name,
		"is_error", result.IsError,
	)

	s.sendJSONRPCResult(w, env.id, result)
}

// toolName decodes the name member. A missing or non-string name is reported
// by its JSON text ("null" when absent) and false.
func toolName(raw json.RawMessage) (string, bool) {
	if !isPresent(raw) {
		return "null", false
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return string(raw), false
	}
	if name == "" {
		return name, false
	}
	return name, true
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// sendJSONRPCResult sends a successful JSON-RPC response.
func (s *Server) sendJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	s.writeJSON(w, http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

// sendJSONRPCError sends a JSON-RPC error response with the given HTTP status.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	s.writeJSON(w, status, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	})
}

// sendInternalError reports a request the router could not process.
func (s *Server) sendInternalError(w http.ResponseWriter, err error) {
	s.logger.Warn("MCP request failed", "error", err)
	s.sendJSONRPCError(w, http.StatusInternalServerError, nil, JSONRPCInternalError, "Internal error: "+err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
