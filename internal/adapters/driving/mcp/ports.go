package mcp

import (
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces used by the MCP server.
type Ports struct {
	// Document provides upload listing and similarity search.
	Document driving.DocumentService

	// Chat runs grounded chat turns. Optional: chat tools fail without it.
	Chat driving.ChatService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	return nil
}
