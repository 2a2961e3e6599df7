// Package tools defines the MCP tools the gateway exposes and binds them to
// the library, delivery, audiobook and reading statistics services.
//
// Tools report expected failures such as an unknown library_type or an
// out-of-range chapter as {"error": "..."} results. Returned Go errors become
// isError tool results through the invocation engine.
package tools
