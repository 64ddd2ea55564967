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
//   - DocumentStore: Document persistence with a unique fingerprint constraint
//   - ChatStore: Chat session persistence
//   - Generator: Chat completion against a language-model backend
//   - Extractor: Text extraction for one or more media types
//   - SessionLocker: Serialises turns per chat session
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These may fail or be nil - the application degrades gracefully:
//
//   - VectorIndex: Chunk storage and similarity search. Failures never fail an
//     upload, delete or chat turn; they are reported as a degraded outcome.
//   - EmbeddingService: Generates vector embeddings for engines that need them.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
