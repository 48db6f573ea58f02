package cli

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func withTempDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })

	t.Setenv("STEPWISE_AI_PROVIDER", "mock")
	t.Setenv("STEPWISE_AI_MODEL", "")
	t.Setenv("STEPWISE_WEBHOOK_URL", "")
	t.Setenv("STEPWISE_ADDR", "")
	return dir
}

// runCmd executes the root command with args and returns what it printed.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCmdContext(t, context.Background(), args...)
}

func runCmdContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	resetFlags(RootCmd)

	buf := new(bytes.Buffer)
	RootCmd.SetOut(buf)
	RootCmd.SetErr(buf)
	RootCmd.SilenceErrors = true
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// resetFlags restores every flag to its default, since RootCmd is shared
// between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
