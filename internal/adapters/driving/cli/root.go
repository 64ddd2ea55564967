// Package cli provides the cobra command tree for docuchat.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Services injected by main. Commands report a clear error when one is nil.
var (
	documentService driving.DocumentService
	chatService     driving.ChatService
	settingsService driving.SettingsService

	// unavailableReason explains why chat or document services are missing.
	unavailableReason string
)

var (
	verbose       bool
	logTimestamps bool
)

var rootCmd = &cobra.Command{
	Use:   "docuchat",
	Short: "Chat with your documents",
	Long: `docuchat uploads documents, indexes their text in a vector index and
answers questions grounded in the most relevant passages.

Configuration lives in ~/.docuchat/config.toml and can be overridden with
environment variables or a .env file in the working directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
		logger.SetTimestamps(logTimestamps)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logTimestamps, "log-timestamps", false, "prefix log lines with the time")
}

// Services groups the driving ports used by the CLI.
type Services struct {
	Document driving.DocumentService
	Chat     driving.ChatService
	Settings driving.SettingsService

	// Unavailable is shown when Document or Chat is nil.
	Unavailable string
}

// SetServices injects the services used by commands.
func SetServices(s Services) {
	documentService = s.Document
	chatService = s.Chat
	settingsService = s.Settings
	unavailableReason = s.Unavailable
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the root command, for embedding and documentation tools.
func Root() *cobra.Command {
	return rootCmd
}

func notConfigured(name string) error {
	if unavailableReason != "" {
		return fmt.Errorf("%s service not configured: %s", name, unavailableReason)
	}
	return fmt.Errorf("%s service not configured", name)
}

func requireDocuments() error {
	if documentService == nil {
		return notConfigured("document")
	}
	return nil
}

func requireChat() error {
	if chatService == nil {
		return notConfigured("chat")
	}
	return nil
}

func requireSettings() error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return nil
}

// printOutcome reports a degraded index operation without failing the command.
func printOutcome(cmd *cobra.Command, what string, o domain.Outcome) {
	if o.IsDegraded() {
		cmd.Printf("  Warning: %s degraded: %v\n", what, o.Err)
	}
}

const timeFormat = "2006-01-02 15:04:05"
