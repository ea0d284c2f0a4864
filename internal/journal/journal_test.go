package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
)

const testSchema = `CREATE TABLE journal (
	id TEXT PRIMARY KEY, at TEXT NOT NULL, kind TEXT NOT NULL,
	component TEXT NOT NULL, state TEXT NOT NULL DEFAULT '', detail TEXT NOT NULL DEFAULT ''
)`

func newTestRepository(t *testing.T, retain int) *Repository {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if _, err := db.ExecContext(context.Background(), testSchema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return NewRepository(db.DB, retain)
}

func notice(i int, kind Kind, at time.Time) Notice {
	return Notice{
		ID:        fmt.Sprintf("n-%03d", i),
		At:        at,
		Kind:      kind,
		Component: ComponentSession,
		State:     "active",
		Detail:    fmt.Sprintf("detail %d", i),
	}
}

func TestRepository_WriteAndRecent(t *testing.T) {
	repo := newTestRepository(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		kind := KindTransition
		if i%2 == 1 {
			kind = KindInput
		}
		if err := repo.Write(ctx, notice(i, kind, base.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	all, err := repo.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Recent() len = %d, want 5", len(all))
	}
	if all[0].ID != "n-004" || !all[0].At.Equal(base.Add(4*time.Millisecond)) {
		t.Errorf("Recent()[0] = %+v, want newest first", all[0])
	}

	inputs, err := repo.Recent(ctx, KindInput, 10)
	if err != nil {
		t.Fatalf("Recent(input) error = %v", err)
	}
	if len(inputs) != 2 {
		t.Errorf("Recent(input) len = %d, want 2", len(inputs))
	}
}

func TestRepository_WriteRequiresID(t *testing.T) {
	repo := newTestRepository(t, 0)
	if err := repo.Write(context.Background(), Notice{Kind: KindDrop}); err == nil {
		t.Error("Write() without id error = nil")
	}
}

func TestRepository_Prune(t *testing.T) {
	repo := newTestRepository(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if err := repo.Write(ctx, notice(i, KindTransition, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	deleted, err := repo.Prune(ctx, 3)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 7 {
		t.Errorf("Prune() deleted = %d, want 7", deleted)
	}

	left, _ := repo.Recent(ctx, "", 10)
	if len(left) != 3 || left[2].ID != "n-007" {
		t.Errorf("after Prune() = %v, want the newest 3", left)
	}
}

func TestRepository_RetentionOnWrite(t *testing.T) {
	repo := newTestRepository(t, 10)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < pruneEvery; i++ {
		if err := repo.Write(ctx, notice(i, KindInput, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	left, _ := repo.Recent(ctx, "", maxHistoryLimit)
	if len(left) != 10 {
		t.Errorf("rows after retention sweep = %d, want 10", len(left))
	}
}

type collectSink struct {
	mu   sync.Mutex
	got  []Notice
	fail bool
}

func (c *collectSink) Write(_ context.Context, n Notice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	if c.fail {
		return errors.New("sink down")
	}
	return nil
}

func (c *collectSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestRecorder_FansOutToSinks(t *testing.T) {
	r := NewRecorder(8)
	a, b := &collectSink{}, &collectSink{fail: true}
	r.AddSink(a)
	r.AddSink(b)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	r.Record(Notice{Kind: KindInput, Component: ComponentInput, State: "short_press"})
	r.Record(Notice{Kind: KindDrop, Component: ComponentQueue})

	deadline := time.Now().Add(2 * time.Second)
	for a.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	r.Wait()

	if a.len() != 2 || b.len() != 2 {
		t.Fatalf("sinks got %d and %d notices, want 2 each (a failing sink must not stop delivery)", a.len(), b.len())
	}
	if a.got[0].ID == "" || a.got[0].At.IsZero() {
		t.Errorf("Record() did not fill ID/At: %+v", a.got[0])
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	r := NewRecorder(2)

	for i := 0; i < 5; i++ {
		r.Record(Notice{Kind: KindInput})
	}

	if got := r.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	r := NewRecorder(8)
	sink := &collectSink{}
	r.AddSink(sink)

	for i := 0; i < 4; i++ {
		r.Record(Notice{Kind: KindTransition})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Start(ctx)
	r.Wait()

	if sink.len() != 4 {
		t.Errorf("delivered %d notices on shutdown, want 4", sink.len())
	}
}
