package driving

import "github.com/custodia-labs/docuchat/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set updates a single setting by its dot-notation key.
	Set(key, value string) error

	// Keys returns the recognised setting keys.
	Keys() []string

	// Validate checks the current settings are usable.
	Validate() error

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig() error

	// ValidateGenerationConfig pings the configured generation backend.
	ValidateGenerationConfig() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
