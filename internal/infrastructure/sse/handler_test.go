package sse_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/sse"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

// openStream connects and waits for the greeting so the client is registered.
func openStream(t *testing.T, url string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", resp.Header.Get("Content-Type"))
	}

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	if err != nil || line != ": connected\n" {
		cancel()
		t.Fatalf("greeting = %q, %v", line, err)
	}
	_, _ = r.ReadString('\n')
	return r, cancel
}

func readEvent(t *testing.T, r *bufio.Reader) (string, tasks.Change) {
	t.Helper()

	var name string
	var change tasks.Change
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "":
			return name, change
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &change); err != nil {
				t.Fatalf("decode data: %v", err)
			}
		}
	}
}

func TestBroker_StreamsChanges(t *testing.T) {
	broker := sse.NewBroker(nil)
	server := httptest.NewServer(broker)
	defer server.Close()

	r, cancel := openStream(t, server.URL)
	defer cancel()

	if broker.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", broker.Clients())
	}

	broker.Publish(tasks.Change{Kind: tasks.ChangeCompleted, TaskID: "t-1", Completed: 1, Total: 4})

	name, change := readEvent(t, r)
	if name != "task.completed" {
		t.Fatalf("event = %q", name)
	}
	if change.TaskID != "t-1" || change.Completed != 1 || change.Total != 4 {
		t.Fatalf("unexpected change: %+v", change)
	}
}

func TestBroker_FiltersTypes(t *testing.T) {
	broker := sse.NewBroker(nil)
	server := httptest.NewServer(broker)
	defer server.Close()

	r, cancel := openStream(t, server.URL+"?types=task.reopened")
	defer cancel()

	broker.Publish(tasks.Change{Kind: tasks.ChangeCompleted, TaskID: "t-1"})
	broker.Publish(tasks.Change{Kind: tasks.ChangeReopened, TaskID: "t-2"})

	name, change := readEvent(t, r)
	if name != "task.reopened" || change.TaskID != "t-2" {
		t.Fatalf("got %q %+v, want only the reopened change", name, change)
	}
}

func TestBroker_UnregistersOnDisconnect(t *testing.T) {
	broker := sse.NewBroker(nil)
	server := httptest.NewServer(broker)
	defer server.Close()

	_, cancel := openStream(t, server.URL)
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for broker.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Publishing with no clients must not block.
	broker.Publish(tasks.Change{Kind: tasks.ChangeReplaced})
}
