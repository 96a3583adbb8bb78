// Package server implements the MCP (Model Context Protocol) server for the
// document scanner.
//
// The server communicates over stdio using JSON-RPC 2.0, one request per
// line on stdin and one response per line on stdout. Logs go to stderr.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Document pipeline:
//   - document_scan: Detect, rectify and sharpen the page; optional OCR
//   - document_detect: Ordered corners and area, with an optional overlay
//   - document_candidates: Every four-cornered outline, largest first
//   - document_rectify: Rectify along user-supplied corners
//
// Manual fallbacks and inspection:
//   - image_load, image_dimensions: Metadata
//   - image_crop: Rectangular crop
//   - image_rotate: Quarter-turn rotation before rescanning
//   - image_edge_detect: The edge map the detector works from
//
// # Error Handling
//
// Tool failures are JSON-RPC errors with code -32000. When the pipeline
// fails, the data string starts with the failure kind followed by ": ":
//
//	not_found: detect: not found: no 4-point contour located
//
// Clients should offer document_rectify or image_crop on not_found and
// degenerate_geometry.
//
// # Usage
//
//	srv := server.New(server.WithScanner(scanner), server.WithLogger(logger))
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
