package domain_test

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/stepwise/pkg/domain"
)

func TestParseThreadID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"ulid", "thread_01HZX3K5W9Q2J7P8R4T6V0Y1AB", false},
		{"millis", "thread_1717171717171", false},
		{"padded", "  thread_abc  ", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"missing prefix", "abc123", true},
		{"prefix only", "thread_", true},
		{"special chars", "thread_a@b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := domain.ParseThreadID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseThreadID() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && id.String() != strings.TrimSpace(tt.value) {
				t.Errorf("String() = %v, want %v", id.String(), tt.value)
			}
		})
	}
}

func TestNewThreadID(t *testing.T) {
	a := domain.NewThreadID()
	b := domain.NewThreadID()

	if a.IsZero() {
		t.Fatal("expected non-zero id")
	}
	if a.String() == b.String() {
		t.Error("expected distinct ids")
	}
	if _, err := domain.ParseThreadID(a.String()); err != nil {
		t.Errorf("generated id should parse: %v", err)
	}

	var zero domain.ThreadID
	if !zero.IsZero() {
		t.Error("expected zero value to be zero")
	}
}
