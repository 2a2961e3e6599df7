// Package mcp implements the Model Context Protocol endpoint of shelf-gateway.
//
// # Protocol
//
// The endpoint speaks JSON-RPC 2.0, one request per HTTP POST to /mcp. Every
// request must first pass the auth token gate. The router keeps no session
// state: initialize is advisory, and tools/call is answered whether or not a
// client has initialized.
//
// Recognized methods:
//
//   - initialize: fixed protocol version, capabilities and server info
//   - notifications/initialized: HTTP 204, no body
//   - ping: empty result object
//   - tools/list: the full catalogue with generated input schemas
//   - resources/list, resources/templates/list, prompts/list: always empty
//   - tools/call: runs a tool through the Engine
//
// # Two Kinds of Errors
//
// Protocol errors are JSON-RPC error objects with a non-2xx status:
//
//   - -32600 Invalid Request (400): not an object, or jsonrpc != "2.0"
//   - -32601 Method not found (404)
//   - -32602 Unknown tool (404)
//   - -32603 Internal error (500): unparseable body and other router faults
//
// Tool errors are successful JSON-RPC results with isError set:
//
//	{"content":[{"type":"text","text":"Error executing tool t: boom"}],"isError":true}
//
// A handler error or panic always produces the second kind.
//
// # Tools
//
// A Registry is built once from Tool values and never changes:
//
//	registry, err := mcp.NewRegistry(
//		mcp.Tool{
//			Name:        "get_recent_books",
//			Description: "List recently added books.",
//			Params: []mcp.Param{
//				{Name: "library_type", Type: mcp.ParamString},
//				{Name: "limit", Type: mcp.ParamInteger},
//			},
//			Handler: recentBooks,
//		},
//	)
//
// Every parameter appears in the input schema's required list. Arguments not
// declared by the tool are dropped before the handler runs; presence and type
// are left to the handler, which reads them through Arguments.
package mcp
