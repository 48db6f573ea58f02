package tasks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaViolation is matched by every *SchemaViolationError.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrSlotEmpty is returned by Slot.Read when nothing has been stored.
	ErrSlotEmpty = errors.New("slot is empty")
	// ErrPersistenceParse marks a stored blob that could not be decoded.
	ErrPersistenceParse = errors.New("persisted task list is unreadable")
)

// SchemaViolationError lists why a generated document was rejected.
type SchemaViolationError struct {
	Issues []string
}

func (e *SchemaViolationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrSchemaViolation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(e.Issues, "; "))
}

func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}
