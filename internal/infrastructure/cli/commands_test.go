package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

func listTasks(t *testing.T) (list []tasks.Task, completed, total int) {
	t.Helper()

	out, err := runCmd(t, "tasks", "list", "--json")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	var doc struct {
		Tasks     []tasks.Task `json:"tasks"`
		Completed int          `json:"completed"`
		Total     int          `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return doc.Tasks, doc.Completed, doc.Total
}

func TestGenerateSaveAndManageTasks(t *testing.T) {
	withTempDir(t)

	out, err := runCmd(t, "generate", "--save", "I'd", "like", "to", "build", "a", "PC")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "Generated 4 tasks successfully!") {
		t.Fatalf("unexpected output: %q", out)
	}

	list, completed, total := listTasks(t)
	if len(list) != 4 || total != 4 || completed != 0 {
		t.Fatalf("got %d tasks, %d/%d completed", len(list), completed, total)
	}
	id := list[0].ID

	out, err = runCmd(t, "tasks", "toggle", id)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !strings.Contains(out, "completed.") {
		t.Fatalf("unexpected toggle output: %q", out)
	}

	out, err = runCmd(t, "tasks", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "1 of 4 completed") || !strings.Contains(out, "[x] "+id) {
		t.Fatalf("unexpected list output: %q", out)
	}

	if _, err := runCmd(t, "tasks", "edit", id, "--timeframe", "2 days"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	list, completed, _ = listTasks(t)
	if list[0].Timeframe != "2 days" || list[0].Name == "" || !list[0].Completed {
		t.Fatalf("edit should only touch the timeframe: %+v", list[0])
	}
	if completed != 1 {
		t.Fatalf("completed = %d, want 1", completed)
	}

	if _, err := runCmd(t, "tasks", "toggle", id); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, completed, _ = listTasks(t); completed != 0 {
		t.Fatalf("completed = %d after reopen", completed)
	}

	if _, err := runCmd(t, "tasks", "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err = runCmd(t, "tasks", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No tasks yet") {
		t.Fatalf("expected empty list, got %q", out)
	}
}

func TestGenerateWithoutSaveLeavesStore(t *testing.T) {
	withTempDir(t)

	out, err := runCmd(t, "generate", "--json", "prepare for exam")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var doc struct {
		Tasks []tasks.Candidate `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Tasks) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(doc.Tasks))
	}

	if list, _, _ := listTasks(t); len(list) != 0 {
		t.Fatalf("store should stay empty, got %d tasks", len(list))
	}
}

func TestGenerateBlankContext(t *testing.T) {
	withTempDir(t)

	_, err := runCmd(t, "generate", "   ")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %v", err)
	}
	if cliErr.Message != "context is required" {
		t.Fatalf("message = %q", cliErr.Message)
	}
}

func TestTasksUnknownID(t *testing.T) {
	withTempDir(t)

	for _, args := range [][]string{
		{"tasks", "toggle", "missing"},
		{"tasks", "edit", "missing", "--name", "x"},
	} {
		_, err := runCmd(t, args...)
		var cliErr *CLIError
		if !errors.As(err, &cliErr) {
			t.Fatalf("%v: expected CLIError, got %v", args, err)
		}
		if cliErr.Hint != "Run 'stepwise tasks list' to see task IDs" {
			t.Fatalf("%v: hint = %q", args, cliErr.Hint)
		}
	}
}

func TestTasksEditRequiresAField(t *testing.T) {
	withTempDir(t)

	_, err := runCmd(t, "tasks", "edit", "t-1")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) || cliErr.Message != "nothing to update" {
		t.Fatalf("expected nothing to update, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := withTempDir(t)

	out, err := runCmd(t, "config", "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".stepwise", "config.yaml")); err != nil {
		t.Fatalf("config not written: %v (%s)", err, out)
	}

	if _, err := runCmd(t, "config", "init"); err == nil {
		t.Fatal("second init without --force should fail")
	}
	if _, err := runCmd(t, "config", "init", "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}

	out, err = runCmd(t, "config", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"provider: openai", "backend: file", "addr: localhost:3000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShowInvalid(t *testing.T) {
	dir := withTempDir(t)

	if err := os.MkdirAll(filepath.Join(dir, ".stepwise"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".stepwise", "config.yaml"), []byte("storage:\n  backend: redis\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := runCmd(t, "config", "show")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %v", err)
	}
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	withTempDir(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	var out string
	go func() {
		var err error
		out, err = runCmdContext(t, ctx, "serve", "--addr", "127.0.0.1:0")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
	if !strings.Contains(out, "Serving on http://127.0.0.1:0") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestMCPRejectsUnknownTransport(t *testing.T) {
	withTempDir(t)

	_, err := runCmd(t, "mcp", "--transport", "carrier-pigeon")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) || !strings.Contains(cliErr.Message, "unsupported transport") {
		t.Fatalf("expected unsupported transport, got %v", err)
	}
}
