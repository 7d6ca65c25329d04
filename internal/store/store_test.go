package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEventStore_InsertAndList(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	want := []Event{
		{ID: uuid.NewString(), Metric: 48.5, Snapshot: "/tmp/motion_a.jpg", CreatedAt: base},
		{ID: uuid.NewString(), Metric: 120.0, Snapshot: "/tmp/motion_b.jpg", CreatedAt: base.Add(time.Minute)},
	}

	for i := range want {
		if err := s.Events().Insert(&want[i]); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := s.Events().List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	// Newest first.
	wantOrdered := []Event{want[1], want[0]}
	if diff := cmp.Diff(wantOrdered, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestEventStore_ListLimit(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		ev := Event{
			ID:        uuid.NewString(),
			Metric:    float64(i),
			Snapshot:  "/tmp/motion.jpg",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.Events().Insert(&ev); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := s.Events().List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List(2) returned %d events, want 2", len(got))
	}
	if got[0].Metric != 4 {
		t.Errorf("List(2) first metric = %g, want 4 (newest first)", got[0].Metric)
	}
}

func TestEventStore_Count(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Events().Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}

	ev := Event{ID: uuid.NewString(), Metric: 15, Snapshot: "/tmp/x.jpg", CreatedAt: time.Now()}
	if err := s.Events().Insert(&ev); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	n, err = s.Events().Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q) error = %v", path, err)
	}

	ev := Event{ID: uuid.NewString(), Metric: 20, Snapshot: "/tmp/x.jpg", CreatedAt: time.Now()}
	if err := s.Events().Insert(&ev); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	s.Close()

	// Reopen and read back.
	s2, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	n, err := s2.Events().Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}
