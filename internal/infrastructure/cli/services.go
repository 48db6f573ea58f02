package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/wiring"
)

// loadServices wires the services for the current directory. A provider
// configuration problem is logged and the default provider used instead.
func loadServices(cmd *cobra.Command) (*wiring.AppServices, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	services, err := wiring.BuildAppServices(cmd.Context(), cwd, slog.Default())
	if services == nil {
		return nil, err
	}
	if err != nil {
		slog.Warn("using fallback AI provider", "error", err)
	}
	return services, nil
}
