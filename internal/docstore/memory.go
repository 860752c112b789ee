package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. Suitable for a single terminal and for tests.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[int64]Record
	sequences   map[string]int64
	now         func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[int64]Record),
		sequences:   make(map[string]int64),
		now:         time.Now,
	}
}

func (m *Memory) NextID(ctx context.Context, collection string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[collection]++
	return m.sequences[collection], nil
}

func (m *Memory) Create(ctx context.Context, collection string, id int64, data []byte) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collections[collection]
	if coll == nil {
		coll = make(map[int64]Record)
		m.collections[collection] = coll
	}
	if _, ok := coll[id]; ok {
		return Record{}, ErrExists
	}
	rec := Record{ID: id, Rev: 1, Data: cloneBytes(data), UpdatedAt: m.now()}
	coll[id] = rec
	return copyRecord(rec), nil
}

func (m *Memory) Update(ctx context.Context, collection string, id int64, data []byte, rev int64) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.collections[collection][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rev > 0 && cur.Rev != rev {
		return Record{}, ErrConflict
	}
	rec := Record{ID: id, Rev: cur.Rev + 1, Data: cloneBytes(data), UpdatedAt: m.now()}
	m.collections[collection][id] = rec
	return copyRecord(rec), nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collections[collection]
	out := make([]Record, 0, len(coll))
	for _, rec := range coll {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, collection string, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) DeleteAll(ctx context.Context, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func copyRecord(r Record) Record {
	r.Data = cloneBytes(r.Data)
	return r
}
