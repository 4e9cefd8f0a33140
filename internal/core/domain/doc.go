// Package domain defines the core entities of folio's retrieval pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A typed retrievable unit (text, table or image) of one page
//   - Summary: The short surrogate text embedded in place of a chunk
//   - IndexRecord: One embedding-addressable unit with denormalised filter fields
//   - Query, Strategy, EvidenceSet, Answer: Ephemeral query-time values
//   - Settings: The explicit configuration value passed to constructors
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
