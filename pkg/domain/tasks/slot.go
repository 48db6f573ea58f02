package tasks

import "context"

// DefaultSlot is the name of the storage slot holding the task list.
const DefaultSlot = "ai-tasks"

// Slot is a single named blob in local storage. Read returns ErrSlotEmpty
// when nothing has been written yet.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}
