package llm

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is quoted in errors.
const maxErrorBody = 512

// Unavailable wraps a transport failure talking to provider.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, domain.ErrBackendUnavailable, err)
}

// Rejected reports an error payload or non-success status from provider.
func Rejected(provider string, status int, message string) error {
	message = strings.TrimSpace(message)
	if len(message) > maxErrorBody {
		message = message[:maxErrorBody] + "..."
	}
	if message == "" {
		message = "empty response"
	}
	if status > 0 {
		return fmt.Errorf("%s: %w (status %d): %s", provider, domain.ErrBackendRejected, status, message)
	}
	return fmt.Errorf("%s: %w: %s", provider, domain.ErrBackendRejected, message)
}
