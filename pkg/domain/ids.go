package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const threadPrefix = "thread_"

// idPattern matches valid thread ids: the prefix followed by letters, digits, hyphens or underscores
var idPattern = regexp.MustCompile(`^thread_[a-zA-Z0-9_-]+$`)

// ThreadID labels one view session. It is only ever logged.
type ThreadID struct {
	value string
}

// NewThreadID returns a fresh, time-ordered id of the form thread_<ulid>.
func NewThreadID() ThreadID {
	return ThreadID{value: threadPrefix + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()}
}

// ParseThreadID validates a caller supplied id.
func ParseThreadID(value string) (ThreadID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ThreadID{}, fmt.Errorf("thread ID cannot be empty")
	}
	if !idPattern.MatchString(value) {
		return ThreadID{}, fmt.Errorf("invalid thread ID format: %s", value)
	}
	return ThreadID{value: value}, nil
}

// String returns the string representation of the ThreadID.
func (id ThreadID) String() string {
	return id.value
}

// IsZero returns true if the ThreadID is empty.
func (id ThreadID) IsZero() bool {
	return id.value == ""
}
