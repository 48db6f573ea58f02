package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stepwise/pkg/application"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
	"github.com/felixgeelhaar/stepwise/pkg/infrastructure/webhook"
	"github.com/felixgeelhaar/stepwise/pkg/storage/memory"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []tasks.Task
	err  error
}

func (n *recordingNotifier) NotifyCompleted(_ context.Context, t tasks.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, t)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var pcCandidates = []tasks.Candidate{
	{Name: "Research compatible parts", Description: "Pick parts", Timeframe: "2 hours"},
	{Name: "Order components", Description: "Buy parts", Timeframe: "30 minutes"},
	{Name: "Prepare workspace", Description: "Clear a desk", Timeframe: "20 minutes"},
	{Name: "Assemble and boot test", Description: "Build it", Timeframe: "1 hour"},
}

func newStore(t *testing.T, slot *memory.Slot, n application.CompletionNotifier) *application.TaskStore {
	t.Helper()
	s, err := application.NewTaskStore(application.TaskStoreConfig{Slot: slot, Notifier: n})
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestTaskStore_Load(t *testing.T) {
	tests := map[string]struct {
		slot     *memory.Slot
		expTasks []tasks.Task
	}{
		"Missing slot should start empty": {
			slot:     memory.NewSlot(nil),
			expTasks: []tasks.Task{},
		},
		"Corrupted slot should start empty": {
			slot:     memory.NewSlot([]byte(`{not json`)),
			expTasks: []tasks.Task{},
		},
		"Tasks without ids should be discarded": {
			slot:     memory.NewSlot([]byte(`[{"name":"x"}]`)),
			expTasks: []tasks.Task{},
		},
		"Stored tasks should be loaded in order": {
			slot: memory.NewSlot([]byte(`[{"id":"a","name":"A","description":"d","timeframe":"1h","completed":true},{"id":"b","name":"B","description":"d","timeframe":"2h","completed":false}]`)),
			expTasks: []tasks.Task{
				{ID: "a", Name: "A", Description: "d", Timeframe: "1h", Completed: true},
				{ID: "b", Name: "B", Description: "d", Timeframe: "2h"},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, test.slot, nil)
			assert.Equal(t, test.expTasks, s.Tasks())
		})
	}
}

func TestTaskStore_SetAllScenario(t *testing.T) {
	ctx := context.Background()
	slot := memory.NewSlot(nil)
	s := newStore(t, slot, nil)

	got, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, task := range s.Tasks() {
		assert.NotEmpty(t, task.ID)
		assert.False(t, task.Completed)
		assert.Equal(t, pcCandidates[i], task.Candidate())
	}
	assert.Equal(t, tasks.Stats{Total: 4, Completed: 0}, s.Stats())

	// A new batch replaces the previous one.
	_, err = s.SetAll(ctx, pcCandidates[:3])
	require.NoError(t, err)
	assert.Len(t, s.Tasks(), 3)
}

func TestTaskStore_UpdateLeavesOtherFieldsAlone(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memory.NewSlot(nil), nil)
	_, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)

	before := s.Tasks()
	target := before[1]
	name := "X"

	updated, found, err := s.Update(ctx, target.ID, tasks.Patch{Name: &name})
	require.NoError(t, err)
	require.True(t, found)

	want := target
	want.Name = "X"
	assert.Equal(t, want, updated)

	after := s.Tasks()
	for i := range before {
		if i == 1 {
			assert.Equal(t, want, after[i])
			continue
		}
		assert.Equal(t, before[i], after[i])
	}
}

func TestTaskStore_UpdateUnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	slot := memory.NewSlot(nil)
	s := newStore(t, slot, nil)
	_, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)
	writes := slot.Writes()

	name := "X"
	_, found, err := s.Update(ctx, "missing", tasks.Patch{Name: &name})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, writes, slot.Writes())
}

func TestTaskStore_ToggleCompletion(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	s := newStore(t, memory.NewSlot(nil), notifier)
	_, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)
	id := s.Tasks()[0].ID

	res, found, err := s.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, res.CompletedNow)
	assert.True(t, res.Task.Completed)
	assert.NoError(t, res.NotifyErr)
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, "Research compatible parts", notifier.sent[0].Name)

	res, _, err = s.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.CompletedNow)
	assert.False(t, res.Task.Completed)
	assert.Equal(t, 1, notifier.count(), "reopening must not notify")

	assert.Equal(t, tasks.Stats{Total: 4, Completed: 0}, s.Stats())
}

func TestTaskStore_ToggleKeepsStateWhenNotificationFails(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{err: errors.New("sink returned 500")}
	s := newStore(t, memory.NewSlot(nil), notifier)
	_, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)
	id := s.Tasks()[2].ID

	res, found, err := s.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Error(t, res.NotifyErr)

	task, err := s.Get(id)
	require.NoError(t, err)
	assert.True(t, task.Completed)
}

func TestTaskStore_ToggleNotifiesAfterCallerCancels(t *testing.T) {
	var hits atomic.Int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	notifier := webhook.NewCompletionNotifier(webhook.NewRelay(sink.URL, sink.Client(), nil), nil)
	s := newStore(t, memory.NewSlot(nil), notifier)
	_, err := s.SetAll(context.Background(), pcCandidates)
	require.NoError(t, err)
	id := s.Tasks()[1].ID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, found, err := s.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, res.CompletedNow)
	assert.NoError(t, res.NotifyErr)
	assert.Equal(t, int32(1), hits.Load())
}

type failingSlot struct {
	memory.Slot
	fail bool
}

func (f *failingSlot) Write(ctx context.Context, data []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Slot.Write(ctx, data)
}

func (f *failingSlot) Clear(ctx context.Context) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Slot.Clear(ctx)
}

func TestTaskStore_FailedWriteKeepsPreviousList(t *testing.T) {
	tests := map[string]struct {
		mutate func(t *testing.T, s *application.TaskStore, id string) error
	}{
		"replace": {
			mutate: func(t *testing.T, s *application.TaskStore, _ string) error {
				_, err := s.SetAll(context.Background(), pcCandidates[:3])
				return err
			},
		},
		"clear": {
			mutate: func(t *testing.T, s *application.TaskStore, _ string) error {
				return s.Clear(context.Background())
			},
		},
		"update": {
			mutate: func(t *testing.T, s *application.TaskStore, id string) error {
				name := "Renamed"
				task, found, err := s.Update(context.Background(), id, tasks.Patch{Name: &name})
				assert.True(t, found)
				assert.Equal(t, "Research compatible parts", task.Name)
				return err
			},
		},
		"toggle": {
			mutate: func(t *testing.T, s *application.TaskStore, id string) error {
				res, found, err := s.ToggleCompletion(context.Background(), id)
				assert.True(t, found)
				assert.False(t, res.CompletedNow)
				assert.False(t, res.Task.Completed)
				return err
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			slot := &failingSlot{}
			notifier := &recordingNotifier{}
			s, err := application.NewTaskStore(application.TaskStoreConfig{Slot: slot, Notifier: notifier})
			require.NoError(t, err)
			require.NoError(t, s.Load(ctx))
			_, err = s.SetAll(ctx, pcCandidates)
			require.NoError(t, err)
			before := s.Tasks()

			slot.fail = true
			err = test.mutate(t, s, before[0].ID)

			assert.Error(t, err)
			assert.Equal(t, before, s.Tasks())
			assert.Equal(t, 0, notifier.count())
		})
	}
}

func TestTaskStore_ToggleUnknownID(t *testing.T) {
	notifier := &recordingNotifier{}
	s := newStore(t, memory.NewSlot(nil), notifier)

	_, found, err := s.ToggleCompletion(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, notifier.count())
}

func TestTaskStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	slot := memory.NewSlot(nil)
	s := newStore(t, slot, &recordingNotifier{})
	_, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)

	desc := "edited"
	_, _, err = s.Update(ctx, s.Tasks()[3].ID, tasks.Patch{Description: &desc})
	require.NoError(t, err)
	_, _, err = s.ToggleCompletion(ctx, s.Tasks()[1].ID)
	require.NoError(t, err)

	reloaded := newStore(t, slot, nil)
	assert.Equal(t, s.Tasks(), reloaded.Tasks())

	raw, err := slot.Read(ctx)
	require.NoError(t, err)
	var onDisk []map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "edited", onDisk[3]["description"])
	assert.Equal(t, true, onDisk[1]["completed"])
}

func TestTaskStore_ClearEmptiesSlot(t *testing.T) {
	ctx := context.Background()
	slot := memory.NewSlot(nil)
	s := newStore(t, slot, nil)
	_, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Tasks())
	_, err = slot.Read(ctx)
	assert.ErrorIs(t, err, tasks.ErrSlotEmpty)

	reloaded := newStore(t, slot, nil)
	assert.Empty(t, reloaded.Tasks())
}

func TestTaskStore_GetUnknown(t *testing.T) {
	s := newStore(t, memory.NewSlot(nil), nil)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, application.ErrTaskNotFound)
}

func TestTaskStore_RequiresSlot(t *testing.T) {
	_, err := application.NewTaskStore(application.TaskStoreConfig{})
	assert.Error(t, err)
}

type recordingChanges struct {
	mu      sync.Mutex
	changes []tasks.Change
}

func (r *recordingChanges) Publish(c tasks.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func TestTaskStorePublishesChanges(t *testing.T) {
	ctx := context.Background()
	changes := &recordingChanges{}
	s, err := application.NewTaskStore(application.TaskStoreConfig{
		Slot:    memory.NewSlot(nil),
		Changes: changes,
	})
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx))

	created, err := s.SetAll(ctx, pcCandidates)
	require.NoError(t, err)
	id := created[0].ID

	name := "Pick a case"
	_, found, err := s.Update(ctx, id, tasks.Patch{Name: &name})
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = s.Update(ctx, "missing", tasks.Patch{Name: &name})
	require.NoError(t, err)
	require.False(t, found)

	_, _, err = s.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	_, _, err = s.ToggleCompletion(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	kinds := make([]tasks.ChangeKind, 0, len(changes.changes))
	for _, c := range changes.changes {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []tasks.ChangeKind{
		tasks.ChangeReplaced,
		tasks.ChangeUpdated,
		tasks.ChangeCompleted,
		tasks.ChangeReopened,
		tasks.ChangeReplaced,
	}, kinds)

	completed := changes.changes[2]
	assert.Equal(t, id, completed.TaskID)
	assert.Equal(t, 1, completed.Completed)
	assert.Equal(t, 4, completed.Total)
	assert.Equal(t, 0, changes.changes[4].Total)
}

func TestTaskStoreReload(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		outside     func(t *testing.T, slot *memory.Slot, own []tasks.Task)
		wantChanged bool
		wantTotal   int
	}{
		"Own write is not a change.": {
			outside:     func(*testing.T, *memory.Slot, []tasks.Task) {},
			wantChanged: false,
			wantTotal:   4,
		},
		"Another process completing a task is picked up.": {
			outside: func(t *testing.T, slot *memory.Slot, own []tasks.Task) {
				own[0].Completed = true
				data, err := json.Marshal(own)
				require.NoError(t, err)
				require.NoError(t, slot.Write(ctx, data))
			},
			wantChanged: true,
			wantTotal:   4,
		},
		"Another process clearing the list is picked up.": {
			outside: func(t *testing.T, slot *memory.Slot, _ []tasks.Task) {
				require.NoError(t, slot.Clear(ctx))
			},
			wantChanged: true,
			wantTotal:   0,
		},
		"A corrupted blob is ignored.": {
			outside: func(t *testing.T, slot *memory.Slot, _ []tasks.Task) {
				require.NoError(t, slot.Write(ctx, []byte("{not json")))
			},
			wantChanged: false,
			wantTotal:   4,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			slot := memory.NewSlot(nil)
			changes := &recordingChanges{}
			s, err := application.NewTaskStore(application.TaskStoreConfig{Slot: slot, Changes: changes})
			require.NoError(err)
			require.NoError(s.Load(ctx))
			own, err := s.SetAll(ctx, pcCandidates)
			require.NoError(err)

			test.outside(t, slot, own)

			changed, err := s.Reload(ctx)
			require.NoError(err)
			assert.Equal(test.wantChanged, changed)
			assert.Equal(test.wantTotal, s.Stats().Total)
			wantEvents := 1
			if test.wantChanged {
				wantEvents = 2
			}
			assert.Len(changes.changes, wantEvents)
		})
	}
}
