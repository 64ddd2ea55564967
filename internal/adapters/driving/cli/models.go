package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the generation backend",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	if err := requireChat(); err != nil {
		return err
	}

	models, err := chatService.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if len(models) == 0 {
		cmd.Println("No models available.")
		return nil
	}

	cmd.Println("Models:")
	for _, m := range models {
		line := "  " + m.Name
		if m.Size > 0 {
			line += fmt.Sprintf("  (%s)", formatSize(m.Size))
		}
		if !m.ModifiedAt.IsZero() {
			line += "  " + m.ModifiedAt.Local().Format("2006-01-02")
		}
		cmd.Println(line)
	}
	return nil
}
