package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stepwise/pkg/domain"
)

var (
	generateSave bool
	generateJSON bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <context...>",
	Short: "Generate 3-5 tasks for a goal",
	Example: `  stepwise generate "I'd like to build a PC"
  stepwise generate --save How can I prepare for exam`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		content := strings.Join(args, " ")
		candidates, err := services.Generation.Generate(cmd.Context(), content, domain.NewThreadID().String())
		if err != nil {
			return MapError(err)
		}

		out := cmd.OutOrStdout()
		if generateSave {
			created, err := services.Store.SetAll(cmd.Context(), candidates)
			if err != nil {
				return fmt.Errorf("save tasks: %w", err)
			}
			if generateJSON {
				return writeJSON(out, map[string]any{"tasks": created})
			}
			fmt.Fprintf(out, "Generated %d tasks successfully!\n\n", len(created))
			printTasks(out, created)
			return nil
		}

		if generateJSON {
			return writeJSON(out, map[string]any{"tasks": candidates})
		}
		for i, c := range candidates {
			fmt.Fprintf(out, "%d. %s (%s)\n   %s\n", i+1, c.Name, c.Timeframe, c.Description)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().BoolVar(&generateSave, "save", false, "Replace the stored task list with the result")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Print JSON instead of text")
	RootCmd.AddCommand(generateCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
