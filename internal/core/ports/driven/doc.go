// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Normaliser: Turns raw document bytes into pages
//   - PostProcessor: Turns a page into typed chunks
//   - ContentStore: Chunk id to full content and summary
//   - VectorIndex: Summary embeddings and similarity search
//   - EmbeddingService: Generates vector embeddings
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Without it, queries are answered with the retrieved evidence only
//     and decomposition falls back to the original query.
//   - VisionService: Without it, every image chunk gets a degraded summary.
//   - ChunkLog: Without it, the text chunk log is not written.
//   - Metrics: Without it, nothing is recorded.
//   - EmbeddingCache: Without it, query embeddings are always recomputed.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, normaliser or postprocessor package
package driven
