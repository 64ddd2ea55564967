package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change generation, embedding, vector index, chunking, retrieval
and lock settings. Values are stored in ~/.docuchat/config.toml; environment
variables such as OLLAMA_URL or CHUNK_SIZE override them at runtime.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Change one setting by its dot-notation key, for example:

  docuchat settings set generation.provider openai
  docuchat settings set chunking.size 800
  docuchat settings set retrieval.timeout 5s`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List recognised setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and reach the configured providers",
	Args:  cobra.NoArgs,
	RunE:  runSettingsValidate,
}

var validateOffline bool

func init() {
	settingsValidateCmd.Flags().BoolVar(&validateOffline, "offline", false, "skip provider connectivity checks")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")

	values := settingValues(settings)
	var section string
	for _, key := range sortedKeys(values) {
		group, name, _ := strings.Cut(key, ".")
		if group != section {
			section = group
			cmd.Println()
			cmd.Printf("[%s]\n", group)
		}
		cmd.Printf("  %s = %s\n", name, values[key])
	}

	cmd.Println()
	cmd.Printf("[status]\n")
	cmd.Printf("  generation = %s\n", configured(settings.Generation.IsConfigured()))
	cmd.Printf("  embedding = %s\n", configured(settings.Embedding.IsConfigured()))
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	value, ok := settingValues(settings)[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q (see 'docuchat settings keys')", domain.ErrInvalidInput, args[0])
	}
	cmd.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	cmd.Println("Settings: ok")
	if validateOffline {
		return nil
	}

	if err := settingsService.ValidateGenerationConfig(); err != nil {
		return fmt.Errorf("generation backend: %w", err)
	}
	cmd.Println("Generation backend: reachable")

	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	cmd.Println("Embedding provider: reachable")
	return nil
}

// settingValues renders every setting by key. API keys are masked.
func settingValues(s *domain.AppSettings) map[string]string {
	return map[string]string{
		"generation.provider":            s.Generation.Provider.String(),
		"generation.model":               s.Generation.Model,
		"generation.base_url":            s.Generation.BaseURL,
		"generation.api_key":             maskAPIKey(s.Generation.APIKey),
		"generation.temperature":         strconv.FormatFloat(s.Generation.Temperature, 'g', -1, 64),
		"generation.max_tokens":          strconv.Itoa(s.Generation.MaxTokens),
		"generation.top_p":               strconv.FormatFloat(s.Generation.TopP, 'g', -1, 64),
		"generation.requests_per_minute": strconv.Itoa(s.Generation.RequestsPerMinute),
		"generation.timeout":             s.Generation.Timeout.String(),
		"embedding.provider":             s.Embedding.Provider.String(),
		"embedding.model":                s.Embedding.Model,
		"embedding.base_url":             s.Embedding.BaseURL,
		"embedding.api_key":              maskAPIKey(s.Embedding.APIKey),
		"vector_index.engine":            s.VectorIndex.Engine.String(),
		"vector_index.url":               s.VectorIndex.URL,
		"vector_index.collection":        s.VectorIndex.Collection,
		"chunking.size":                  strconv.Itoa(s.Chunking.Size),
		"chunking.overlap":               strconv.Itoa(s.Chunking.Overlap),
		"retrieval.max_results":          strconv.Itoa(s.Retrieval.MaxResults),
		"retrieval.timeout":              s.Retrieval.Timeout.String(),
		"lock.backend":                   string(s.Lock.Backend),
		"lock.redis_addr":                s.Lock.RedisAddr,
		"lock.ttl":                       s.Lock.TTL.String(),
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

// maskAPIKey masks an API key for display, showing only first and last 4 chars.
func maskAPIKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
