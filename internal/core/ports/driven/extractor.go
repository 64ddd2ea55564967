package driven

import "context"

// Extractor turns raw file bytes into plain text.
// Each extractor handles specific MIME types (e.g., text/plain, DOCX).
type Extractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Extract returns the text content of the file.
	Extract(ctx context.Context, content []byte) (string, error)
}

// ExtractorRegistry selects the extractor for a media type.
type ExtractorRegistry interface {
	// Extract returns the text of a file of the given media type and name.
	// Returns domain.ErrUnsupportedType when no extractor matches.
	Extract(ctx context.Context, mediaType, filename string, content []byte) (string, error)
}
