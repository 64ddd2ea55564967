// Package chunker provides a recursive character text splitter.
package chunker

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// defaultSeparators are tried coarsest first: paragraphs, lines, sentences,
// words and finally single characters.
var defaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", " ", ""}

var newlineRun = regexp.MustCompile(`[\r\n]+`)

// Processor splits text into overlapping chunks of bounded length.
// Lengths are measured in runes.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: defaultSeparators,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document content into chunks keyed by document ID.
// Returns ErrExtractionEmpty when the document has no extracted text.
func (p *Processor) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if !doc.HasContent() {
		return nil, domain.ErrExtractionEmpty
	}
	return domain.NewChunks(doc, p.Split(doc.Content)), nil
}

// Split breaks text into chunks no longer than the chunk size.
// Each chunk is trimmed and has newline runs collapsed to one space.
// Whitespace-only chunks are dropped.
func (p *Processor) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	raw := p.split(text, p.separators)

	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(newlineRun.ReplaceAllString(c, " "))
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// split recursively divides text using the first separator present in it.
func (p *Processor) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var finer []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			finer = separators[i+1:]
			break
		}
	}

	var out, pending []string
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) <= p.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, p.merge(pending)...)
			pending = nil
		}
		if len(finer) == 0 {
			out = append(out, piece)
			continue
		}
		out = append(out, p.split(piece, finer)...)
	}
	if len(pending) > 0 {
		out = append(out, p.merge(pending)...)
	}
	return out
}

// merge greedily packs pieces into chunks. When a chunk is emitted, trailing
// pieces totalling at most overlap characters start the next chunk.
func (p *Processor) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > p.chunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (total > p.overlap || total+n > p.chunkSize) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

// splitKeep splits text on sep, keeping sep attached to the end of each
// piece so the pieces concatenate back to text. An empty sep splits runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.SplitAfter(text, sep)
	pieces := parts[:0]
	for _, part := range parts {
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
