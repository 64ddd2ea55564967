// Package domain defines the core business entities for docuchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded file and its extracted text
//   - Chunk: A bounded span of a document's text stored in the vector index
//   - ChatSession: A conversation and its append-only message history
//   - RetrievalResult: A ranked hit returned by the vector index
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
