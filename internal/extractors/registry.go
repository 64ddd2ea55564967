package extractors

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/extractors/docx"
	"github.com/custodia-labs/docuchat/internal/extractors/eml"
	"github.com/custodia-labs/docuchat/internal/extractors/html"
	"github.com/custodia-labs/docuchat/internal/extractors/markdown"
	"github.com/custodia-labs/docuchat/internal/extractors/pdf"
	"github.com/custodia-labs/docuchat/internal/extractors/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// extensionTypes maps file extensions to the media type used for lookup
// when the declared type is missing or too generic to pick an extractor.
var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".xml":      "application/xml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".java":     "text/x-java",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".cpp":      "text/x-c++",
	".rb":       "text/x-ruby",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".js":       "text/javascript",
	".ts":       "text/typescript",
	".css":      "text/css",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".eml":      "message/rfc822",
	".docx":     docx.MIMEType,
	".pdf":      pdf.MIMEType,
}

// genericTypes carry no format information on their own.
var genericTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"application/zip":          true,
	"text/plain":               true,
}

// Registry dispatches extraction to the extractor registered for a media type.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]driven.Extractor)}
}

// NewDefaultRegistry creates a registry with all built-in extractors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(eml.New())
	r.Register(pdf.New())
	return r
}

// Register adds an extractor for each media type it supports.
// A later registration for the same type replaces the earlier one.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mt := range e.SupportedMIMETypes() {
		r.extractors[strings.ToLower(mt)] = e
	}
}

// SupportedMIMETypes returns every registered media type.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.extractors))
	for mt := range r.extractors {
		types = append(types, mt)
	}
	return types
}

// Extract returns the text of content. The extractor is chosen by
// mediaType, or by the extension of filename when mediaType is generic.
func (r *Registry) Extract(ctx context.Context, mediaType, filename string, content []byte) (string, error) {
	e := r.lookup(mediaType, filename)
	if e == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mediaType)
	}
	return e.Extract(ctx, content)
}

func (r *Registry) lookup(mediaType, filename string) driven.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if !genericTypes[mediaType] {
		if e, ok := r.extractors[mediaType]; ok {
			return e
		}
	}
	if byExt, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		if e, ok := r.extractors[byExt]; ok {
			return e
		}
	}
	return r.extractors[mediaType]
}
