package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search uploaded documents",
	Long: `Returns the indexed chunks most similar to the query, ranked by cosine
similarity, together with the document each chunk came from.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultMaxResults, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	hits, err := documentService.Search(cmd.Context(), query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, hits)
	}
	return outputSearchTable(cmd, hits)
}

func outputSearchJSON(cmd *cobra.Command, hits []domain.SearchHit) error {
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, hits []domain.SearchHit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range hits {
		source := hits[i].Metadata.Filename
		if hits[i].Document != nil {
			source = hits[i].Document.Filename
		}
		if source == "" {
			source = hits[i].Key
		}
		cmd.Printf("[%d] %s (similarity %.3f)\n", i+1, source, hits[i].Similarity)
		if hits[i].Metadata.TotalChunks > 0 {
			cmd.Printf("    Chunk %d of %d\n", hits[i].Metadata.SequenceIndex+1, hits[i].Metadata.TotalChunks)
		}
		cmd.Printf("    %s\n\n", snippet(hits[i].Content, 200))
	}
	return nil
}

// snippet flattens whitespace and truncates to at most n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
