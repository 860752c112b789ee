package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// testStoreContract exercises the behaviour every Store must share.
// newStore must return an empty store.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("NextIDIsSequential", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for want := int64(1); want <= 3; want++ {
			got, err := s.NextID(ctx, "orders")
			if err != nil {
				t.Fatalf("NextID: %v", err)
			}
			if got != want {
				t.Fatalf("expected id %d, got %d", want, got)
			}
		}
		other, err := s.NextID(ctx, "menuItems")
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if other != 1 {
			t.Errorf("sequences must be per collection, got %d", other)
		}
	})

	t.Run("NextIDUniqueUnderConcurrency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const workers = 20
		ids := make(chan int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := s.NextID(ctx, "orders")
				if err != nil {
					t.Errorf("NextID: %v", err)
					return
				}
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %d", id)
			}
			seen[id] = true
		}
		if len(seen) != workers {
			t.Fatalf("expected %d ids, got %d", workers, len(seen))
		}
	})

	t.Run("CreateAndList", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Create(ctx, "orders", 2, []byte(`{"n":2}`)); err != nil {
			t.Fatalf("Create: %v", err)
		}
		rec, err := s.Create(ctx, "orders", 1, []byte(`{"n":1}`))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if rec.Rev != 1 {
			t.Errorf("expected rev 1, got %d", rec.Rev)
		}

		recs, err := s.List(ctx, "orders")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("expected 2 records, got %d", len(recs))
		}
		if recs[0].ID != 1 || recs[1].ID != 2 {
			t.Errorf("expected records ordered by id, got %d, %d", recs[0].ID, recs[1].ID)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.Create(ctx, "orders", 1, []byte(`{}`)); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := s.Create(ctx, "orders", 1, []byte(`{}`)); !errors.Is(err, ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}
	})

	t.Run("UpdateWithRevision", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.Create(ctx, "orders", 1, []byte(`{"v":1}`)); err != nil {
			t.Fatalf("Create: %v", err)
		}

		rec, err := s.Update(ctx, "orders", 1, []byte(`{"v":2}`), 1)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if rec.Rev != 2 {
			t.Errorf("expected rev 2, got %d", rec.Rev)
		}

		// Stale revision loses.
		if _, err := s.Update(ctx, "orders", 1, []byte(`{"v":3}`), 1); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		// Unconditional write wins.
		rec, err = s.Update(ctx, "orders", 1, []byte(`{"v":4}`), 0)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if rec.Rev != 3 {
			t.Errorf("expected rev 3, got %d", rec.Rev)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Update(context.Background(), "orders", 42, []byte(`{}`), 0); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteAndDeleteAll", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for id := int64(1); id <= 3; id++ {
			if _, err := s.NextID(ctx, "menuItems"); err != nil {
				t.Fatalf("NextID: %v", err)
			}
			if _, err := s.Create(ctx, "menuItems", id, []byte(`{}`)); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}

		if err := s.Delete(ctx, "menuItems", 2); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, "menuItems", 2); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}

		recs, _ := s.List(ctx, "menuItems")
		if len(recs) != 2 {
			t.Fatalf("expected 2 records after delete, got %d", len(recs))
		}

		if err := s.DeleteAll(ctx, "menuItems"); err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		recs, _ = s.List(ctx, "menuItems")
		if len(recs) != 0 {
			t.Fatalf("expected empty collection, got %d", len(recs))
		}
		id, err := s.NextID(ctx, "menuItems")
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if id != 4 {
			t.Errorf("expected ids to continue at 4 after DeleteAll, got %d", id)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store { return NewMemory() })
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.Create(ctx, "orders", 1, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	recs, _ := m.List(ctx, "orders")
	recs[0].Data[0] = 'X'

	again, _ := m.List(ctx, "orders")
	if string(again[0].Data) != `{"a":1}` {
		t.Fatalf("stored data was mutated through a listed record: %s", again[0].Data)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.List(ctx, "orders"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
