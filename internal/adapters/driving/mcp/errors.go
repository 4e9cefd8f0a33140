// Package mcp provides an MCP (Model Context Protocol) server adapter for folio.
// It lets AI assistants ask questions over an ingested corpus and inspect its chunks.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
