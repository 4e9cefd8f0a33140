package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/folio/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for folio resources.
	uriScheme = "folio://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "corpus",
		Name:        "corpus",
		Description: "Stored chunk counts per type and degraded chunk ids",
		MIMEType:    "application/json",
	}, s.handleCorpusResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "chunks/{chunkId}",
		Name:        "chunk",
		Description: "Full content and summary of a stored chunk",
		MIMEType:    "application/json",
	}, s.handleChunkResource)
}

// handleCorpusResource returns the content store statistics.
func (s *Server) handleCorpusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type corpusInfo struct {
		Chunks   map[domain.ChunkType]int `json:"chunks"`
		Degraded []string                 `json:"degraded"`
	}

	info := corpusInfo{Chunks: map[domain.ChunkType]int{}, Degraded: []string{}}
	if s.ports.Chunks != nil {
		counts, err := s.ports.Chunks.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting chunks: %w", err)
		}
		degraded, err := s.ports.Chunks.Degraded(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing degraded chunks: %w", err)
		}
		info.Chunks = counts
		if degraded != nil {
			info.Degraded = degraded
		}
	}

	return jsonResult(req.Params.URI, info)
}

// handleChunkResource returns one stored chunk with its summary.
func (s *Server) handleChunkResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Chunks == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract chunkId from URI: folio://chunks/{chunkId}
	id := extractChunkID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	chunk, err := s.ports.Chunks.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk: %w", err)
	}

	type chunkInfo struct {
		*domain.Chunk
		Summary       string `json:"summary,omitempty"`
		SummaryStatus string `json:"summary_status,omitempty"`
	}
	info := chunkInfo{Chunk: chunk}
	if sum, err := s.ports.Chunks.GetSummary(ctx, id); err == nil {
		info.Summary = sum.Text
		info.SummaryStatus = string(sum.Status)
	}

	return jsonResult(req.Params.URI, info)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractChunkID extracts the chunk id from a URI like folio://chunks/{chunkId}.
func extractChunkID(uri string) string {
	const prefix = uriScheme + "chunks/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
