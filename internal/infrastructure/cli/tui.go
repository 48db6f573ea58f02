package cli

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal view",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		return tui.Run(cmd.Context(), services.Generation, services.Store)
	},
}

func init() {
	RootCmd.AddCommand(tuiCmd)
}
