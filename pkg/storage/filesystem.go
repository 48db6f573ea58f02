package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

const StepwiseDir = ".stepwise"
const ConfigFile = "config.yaml"
const DatabaseFile = "stepwise.db"

// FileSlot stores a slot as <root>/.stepwise/<name>.json.
type FileSlot struct {
	root        string
	name        string
	retryConfig retry.Config
}

func NewFileSlot(root, name string) *FileSlot {
	if name == "" {
		name = tasks.DefaultSlot
	}
	return &FileSlot{
		root: root,
		name: name,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the workspace root directory.
func (s *FileSlot) Root() string {
	return s.root
}

// Name returns the slot name.
func (s *FileSlot) Name() string {
	return s.name
}

// ResolvePath ensures the path is within the .stepwise directory and prevents traversal.
func ResolvePath(root, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	baseDir := filepath.Join(root, StepwiseDir)
	cleanPath := filepath.Clean(filepath.Join(baseDir, filename))

	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}
	return cleanPath, nil
}

// Path returns the file backing the slot.
func (s *FileSlot) Path() (string, error) {
	return ResolvePath(s.root, s.name+".json")
}

// Initialize creates the .stepwise directory.
func Initialize(root string) error {
	// G301: Use 0700 for directories
	if err := os.MkdirAll(filepath.Join(root, StepwiseDir), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", StepwiseDir, err)
	}
	return nil
}

func (s *FileSlot) Read(ctx context.Context) ([]byte, error) {
	path, err := s.Path()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, tasks.ErrSlotEmpty
	}

	retryer := retry.New[[]byte](s.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) ([]byte, error) {
		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read slot %s: %w", s.name, err)
		}
		return data, nil
	})
}

// Write replaces the slot contents through a temp file and rename so a crash
// never leaves a half-written list behind.
func (s *FileSlot) Write(_ context.Context, data []byte) error {
	path, err := s.Path()
	if err != nil {
		return err
	}
	if err := Initialize(s.root); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+s.name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write slot %s: %w", s.name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close slot %s: %w", s.name, err)
	}
	// G306: Use 0600 for files
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to chmod slot %s: %w", s.name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace slot %s: %w", s.name, err)
	}
	return nil
}

func (s *FileSlot) Clear(_ context.Context) error {
	path, err := s.Path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear slot %s: %w", s.name, err)
	}
	return nil
}
