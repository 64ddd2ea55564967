package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Document Errors.

	// ErrExtractionEmpty indicates chunking was requested for a document
	// whose text could not be extracted.
	ErrExtractionEmpty = errors.New("no extracted text")

	// ErrUnsupportedType indicates no extractor handles the media type.
	// The document is still stored, without content or chunks.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrDuplicateContent indicates an uploaded document's fingerprint
	// matches an existing document.
	ErrDuplicateContent = errors.New("document with identical content already exists")

	// ErrIndexUnavailable indicates the vector engine cannot be reached.
	// Callers degrade rather than fail the surrounding operation.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or unreachable. Engines that embed client-side report it as index unavailability.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Turn Errors.

	// ErrInvalidMessage indicates an empty user message.
	ErrInvalidMessage = errors.New("message content is required")

	// ErrNoQueryFound indicates the history holds no user message to retrieve with.
	ErrNoQueryFound = errors.New("no user message found in chat history")

	// ErrGeneration indicates the language model failed to produce a reply.
	ErrGeneration = errors.New("generation failed")

	// Generation Backend Errors.

	// ErrBackendUnavailable indicates a transport-level failure talking to the model backend.
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrBackendRejected indicates the model backend answered with an error payload.
	ErrBackendRejected = errors.New("generation backend rejected request")
)
