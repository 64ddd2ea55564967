// Package mcp provides an MCP (Model Context Protocol) server adapter for docuchat.
// It lets AI assistants search uploaded documents and hold grounded chat sessions.
package mcp

import "errors"

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("mcp: document service is required")

// ErrChatUnavailable is returned by chat tools when no chat service is configured.
var ErrChatUnavailable = errors.New("mcp: chat service is not configured")
