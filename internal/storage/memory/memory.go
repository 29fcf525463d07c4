// Package memory implements the storage interface using in-memory data structures.
// It backs tests and the CLI's --backend=memory mode. Transactions snapshot the
// whole state and restore it on rollback.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// MemoryStorage implements the Storage interface using in-memory data structures
type MemoryStorage struct {
	mu     sync.RWMutex // Protects st and closed
	st     *state
	closed bool
}

// state is everything a transaction can roll back.
type state struct {
	items     map[int64]*types.WorkItem
	statuses  map[string]*types.Status
	relations map[int64]*types.Relation
	order     []int64 // relation ids in insertion order
	events    map[int64][]*types.Event

	nextItemID     int64
	nextRelationID int64
	nextEventID    int64
}

var _ storage.Storage = (*MemoryStorage)(nil)

// New creates a new in-memory storage backend with no statuses.
func New() *MemoryStorage {
	return &MemoryStorage{st: newState()}
}

// NewSeeded creates a store pre-populated with the default statuses.
func NewSeeded() *MemoryStorage {
	m := New()
	for _, s := range types.DefaultStatuses() {
		m.st.statuses[s.ID] = s
	}
	return m
}

func newState() *state {
	return &state{
		items:     make(map[int64]*types.WorkItem),
		statuses:  make(map[string]*types.Status),
		relations: make(map[int64]*types.Relation),
		events:    make(map[int64][]*types.Event),
	}
}

func (s *state) clone() *state {
	c := &state{
		items:          make(map[int64]*types.WorkItem, len(s.items)),
		statuses:       make(map[string]*types.Status, len(s.statuses)),
		relations:      make(map[int64]*types.Relation, len(s.relations)),
		order:          append([]int64(nil), s.order...),
		events:         make(map[int64][]*types.Event, len(s.events)),
		nextItemID:     s.nextItemID,
		nextRelationID: s.nextRelationID,
		nextEventID:    s.nextEventID,
	}
	for id, it := range s.items {
		c.items[id] = it.Clone()
	}
	for id, st := range s.statuses {
		cp := *st
		c.statuses[id] = &cp
	}
	for id, r := range s.relations {
		c.relations[id] = copyRelation(r)
	}
	for id, evs := range s.events {
		c.events[id] = append([]*types.Event(nil), evs...)
	}
	return c
}

func copyRelation(r *types.Relation) *types.Relation {
	cp := *r
	if r.Delay != nil {
		d := *r.Delay
		cp.Delay = &d
	}
	return &cp
}

// Close marks the store closed. Further calls return storage.ErrClosed.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// RunInTransaction runs fn with exclusive access to the store. Any error or
// panic restores the state captured before fn started.
func (m *MemoryStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storage.ErrClosed
	}

	snapshot := m.st.clone()
	defer func() {
		if r := recover(); r != nil {
			m.st = snapshot
			panic(r)
		}
	}()

	if err = fn(&memTx{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	if err = ctx.Err(); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// read runs fn under the read lock.
func (m *MemoryStorage) read(fn func(st *state) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return storage.ErrClosed
	}
	return fn(m.st)
}

// write runs fn under the write lock.
func (m *MemoryStorage) write(fn func(st *state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storage.ErrClosed
	}
	return fn(m.st)
}

func (m *MemoryStorage) GetItem(ctx context.Context, id int64) (item *types.WorkItem, err error) {
	err = m.read(func(st *state) error { item, err = st.getItem(id); return err })
	return item, err
}

func (m *MemoryStorage) ListItems(ctx context.Context, projectID string) (items []*types.WorkItem, err error) {
	err = m.read(func(st *state) error { items = st.listItems(projectID); return nil })
	return items, err
}

func (m *MemoryStorage) GetStatus(ctx context.Context, id string) (s *types.Status, err error) {
	err = m.read(func(st *state) error { s, err = st.getStatus(id); return err })
	return s, err
}

func (m *MemoryStorage) ListStatuses(ctx context.Context) (list []*types.Status, err error) {
	err = m.read(func(st *state) error { list = st.listStatuses(); return nil })
	return list, err
}

func (m *MemoryStorage) GetRelation(ctx context.Context, id int64) (r *types.Relation, err error) {
	err = m.read(func(st *state) error { r, err = st.getRelation(id); return err })
	return r, err
}

func (m *MemoryStorage) GetRelationsFor(ctx context.Context, id int64, kind types.RelationKind, reverse bool) (rels []*types.Relation, err error) {
	err = m.read(func(st *state) error { rels = st.relationsFor(id, kind, reverse); return nil })
	return rels, err
}

func (m *MemoryStorage) ListRelations(ctx context.Context, kind types.RelationKind) (rels []*types.Relation, err error) {
	err = m.read(func(st *state) error { rels = st.listRelations(kind); return nil })
	return rels, err
}

func (m *MemoryStorage) GetEvents(ctx context.Context, itemID int64, limit int) (evs []*types.Event, err error) {
	err = m.read(func(st *state) error { evs = st.getEvents(itemID, limit); return nil })
	return evs, err
}

func (m *MemoryStorage) CreateItem(ctx context.Context, item *types.WorkItem, actor string) error {
	return m.write(func(st *state) error { return st.createItem(item, actor) })
}

func (m *MemoryStorage) SaveItem(ctx context.Context, item *types.WorkItem) error {
	return m.write(func(st *state) error { return st.saveItem(item) })
}

func (m *MemoryStorage) DeleteItem(ctx context.Context, id int64) error {
	return m.write(func(st *state) error { return st.deleteItem(id) })
}

func (m *MemoryStorage) CreateStatus(ctx context.Context, status *types.Status) error {
	return m.write(func(st *state) error { return st.createStatus(status) })
}

func (m *MemoryStorage) AddRelation(ctx context.Context, rel *types.Relation) error {
	return m.write(func(st *state) error { return st.addRelation(rel) })
}

func (m *MemoryStorage) RemoveRelation(ctx context.Context, id int64) error {
	return m.write(func(st *state) error { return st.removeRelation(id) })
}

func (m *MemoryStorage) AddEvent(ctx context.Context, event *types.Event) error {
	return m.write(func(st *state) error { st.addEvent(event); return nil })
}

// ── state operations (caller holds the lock) ────────────────────────────────

func (st *state) getItem(id int64) (*types.WorkItem, error) {
	it, ok := st.items[id]
	if !ok {
		return nil, fmt.Errorf("work item %d: %w", id, storage.ErrNotFound)
	}
	return it.Clone(), nil
}

func (st *state) listItems(projectID string) []*types.WorkItem {
	var out []*types.WorkItem
	for _, it := range st.items {
		if projectID == "" || it.ProjectID == projectID {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *state) getStatus(id string) (*types.Status, error) {
	s, ok := st.statuses[id]
	if !ok {
		return nil, fmt.Errorf("status %q: %w", id, storage.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (st *state) listStatuses() []*types.Status {
	out := make([]*types.Status, 0, len(st.statuses))
	for _, s := range st.statuses {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *state) getRelation(id int64) (*types.Relation, error) {
	r, ok := st.relations[id]
	if !ok {
		return nil, fmt.Errorf("relation %d: %w", id, storage.ErrNotFound)
	}
	return copyRelation(r), nil
}

func (st *state) relationsFor(id int64, kind types.RelationKind, reverse bool) []*types.Relation {
	var out []*types.Relation
	for _, rid := range st.order {
		r := st.relations[rid]
		if r.Kind != kind {
			continue
		}
		if (!reverse && r.FromID == id) || (reverse && r.ToID == id) {
			out = append(out, copyRelation(r))
		}
	}
	return out
}

func (st *state) listRelations(kind types.RelationKind) []*types.Relation {
	var out []*types.Relation
	for _, rid := range st.order {
		r := st.relations[rid]
		if kind == "" || r.Kind == kind {
			out = append(out, copyRelation(r))
		}
	}
	return out
}

func (st *state) getEvents(itemID int64, limit int) []*types.Event {
	evs := st.events[itemID]
	out := make([]*types.Event, 0, len(evs))
	// Newest first
	for i := len(evs) - 1; i >= 0; i-- {
		cp := *evs[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (st *state) createItem(item *types.WorkItem, actor string) error {
	item.SetDefaults()
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}
	if _, ok := st.statuses[item.StatusID]; !ok {
		return fmt.Errorf("status %q: %w", item.StatusID, storage.ErrNotFound)
	}
	if item.ID == 0 {
		st.nextItemID++
		item.ID = st.nextItemID
	} else if _, exists := st.items[item.ID]; exists {
		return fmt.Errorf("work item %d already exists", item.ID)
	} else if item.ID > st.nextItemID {
		st.nextItemID = item.ID
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	st.items[item.ID] = item.Clone()
	st.addEvent(&types.Event{ItemID: item.ID, EventType: types.EventCreated, Actor: actor})
	return nil
}

func (st *state) saveItem(item *types.WorkItem) error {
	if _, ok := st.items[item.ID]; !ok {
		return fmt.Errorf("work item %d: %w", item.ID, storage.ErrNotFound)
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}
	if _, ok := st.statuses[item.StatusID]; !ok {
		return fmt.Errorf("status %q: %w", item.StatusID, storage.ErrNotFound)
	}
	item.UpdatedAt = time.Now().UTC()
	st.items[item.ID] = item.Clone()
	return nil
}

func (st *state) deleteItem(id int64) error {
	if _, ok := st.items[id]; !ok {
		return fmt.Errorf("work item %d: %w", id, storage.ErrNotFound)
	}
	delete(st.items, id)
	delete(st.events, id)
	kept := st.order[:0]
	for _, rid := range st.order {
		r := st.relations[rid]
		if r.FromID == id || r.ToID == id {
			delete(st.relations, rid)
			continue
		}
		kept = append(kept, rid)
	}
	st.order = kept
	return nil
}

func (st *state) createStatus(s *types.Status) error {
	if s.ID == "" {
		return fmt.Errorf("status id is required")
	}
	if _, exists := st.statuses[s.ID]; exists {
		return fmt.Errorf("status %q already exists", s.ID)
	}
	cp := *s
	st.statuses[s.ID] = &cp
	return nil
}

func (st *state) addRelation(rel *types.Relation) error {
	if !rel.Kind.IsCanonical() {
		return fmt.Errorf("relation kind %q must be normalized before storing", rel.Kind)
	}
	for _, id := range []int64{rel.FromID, rel.ToID} {
		if _, ok := st.items[id]; !ok {
			return fmt.Errorf("work item %d: %w", id, storage.ErrNotFound)
		}
	}
	for _, r := range st.relations {
		if r.FromID == rel.FromID && r.ToID == rel.ToID && r.Kind == rel.Kind {
			return fmt.Errorf("%s: %w", rel, storage.ErrDuplicateRelation)
		}
	}
	st.nextRelationID++
	rel.ID = st.nextRelationID
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	st.relations[rel.ID] = copyRelation(rel)
	st.order = append(st.order, rel.ID)
	return nil
}

func (st *state) removeRelation(id int64) error {
	if _, ok := st.relations[id]; !ok {
		return fmt.Errorf("relation %d: %w", id, storage.ErrNotFound)
	}
	delete(st.relations, id)
	for i, rid := range st.order {
		if rid == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return nil
}

func (st *state) addEvent(ev *types.Event) {
	st.nextEventID++
	ev.ID = st.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	cp := *ev
	st.events[ev.ItemID] = append(st.events[ev.ItemID], &cp)
}
