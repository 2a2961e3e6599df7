// Package gateway assembles the shelf-gateway server.
//
// # Overview
//
// The gateway owns the store and builds everything else on top of it:
//
//	store ──► auth.Gate ──► auth.Middleware ─┐
//	Calibre client ─► CalibreLibrary ─┐      │
//	Anx data dir   ─► AnxLibrary    ──┼─► delivery / audiobook / stats
//	ebook-convert  ───────────────────┘      │
//	                                 tools.NewRegistry ─► mcp.Server ─► POST /mcp
//
// # HTTP Routes
//
//   - GET /health - Liveness check, always "OK"
//   - POST /mcp - JSON-RPC 2.0 MCP endpoint, token required
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	err = gw.Run(ctx) // blocks; cancel() triggers graceful shutdown
//
// Run closes the store on the way out. Shutdown may also be called directly
// when Run was never started.
package gateway
