// Command docuchat uploads documents and answers questions about them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docuchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/docuchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docuchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docuchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/core/services"
	"github.com/custodia-labs/docuchat/internal/extractors"
	"github.com/custodia-labs/docuchat/internal/logger"
	"github.com/custodia-labs/docuchat/internal/postprocessors/chunker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is normal.
	_ = godotenv.Load()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	svc := cli.Services{Settings: settingsService}

	var index driven.VectorIndex
	adapters, err := ai.Initialise(ctx, settings, store)
	if err != nil {
		logger.Warn("chat disabled: %v", err)
		svc.Unavailable = err.Error()
		closeIndex, idx := documentIndex(settings, store)
		defer closeIndex()
		index = idx
	} else {
		defer adapters.Close()
		for _, w := range adapters.Warnings {
			logger.Debug("startup: %s", w)
		}
		index = adapters.VectorIndex
		svc.Chat = services.NewChatService(
			store.ChatStore(),
			adapters.VectorIndex,
			adapters.Generator,
			adapters.Locker,
			services.ChatConfigFromSettings(settings),
		)
	}

	svc.Document = services.NewDocumentService(
		store.DocumentStore(),
		extractors.NewDefaultRegistry(),
		chunker.New(
			chunker.WithChunkSize(settings.Chunking.Size),
			chunker.WithOverlap(settings.Chunking.Overlap),
		),
		index,
	)

	cli.SetServices(svc)
	cli.SetVersion(version)
	return cli.Execute()
}

// documentIndex opens the vector index without a generation backend, so
// uploads are still indexed when chat is unavailable.
func documentIndex(settings *domain.AppSettings, store *sqlite.Store) (func(), driven.VectorIndex) {
	embedding, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil || embedding == nil {
		return func() {}, nil
	}
	index, err := ai.CreateVectorIndex(&settings.VectorIndex, store, embedding)
	if err != nil {
		embedding.Close()
		return func() {}, nil
	}
	return func() {
		index.Close()
		embedding.Close()
	}, index
}
