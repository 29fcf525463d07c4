package memory

import (
	"context"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// memTx operates on state while RunInTransaction holds the store's write lock.
type memTx struct {
	st *state
}

var _ storage.Transaction = (*memTx)(nil)

func (t *memTx) GetItem(ctx context.Context, id int64) (*types.WorkItem, error) {
	return t.st.getItem(id)
}

func (t *memTx) ListItems(ctx context.Context, projectID string) ([]*types.WorkItem, error) {
	return t.st.listItems(projectID), nil
}

func (t *memTx) GetStatus(ctx context.Context, id string) (*types.Status, error) {
	return t.st.getStatus(id)
}

func (t *memTx) ListStatuses(ctx context.Context) ([]*types.Status, error) {
	return t.st.listStatuses(), nil
}

func (t *memTx) GetRelation(ctx context.Context, id int64) (*types.Relation, error) {
	return t.st.getRelation(id)
}

func (t *memTx) GetRelationsFor(ctx context.Context, id int64, kind types.RelationKind, reverse bool) ([]*types.Relation, error) {
	return t.st.relationsFor(id, kind, reverse), nil
}

func (t *memTx) ListRelations(ctx context.Context, kind types.RelationKind) ([]*types.Relation, error) {
	return t.st.listRelations(kind), nil
}

func (t *memTx) GetEvents(ctx context.Context, itemID int64, limit int) ([]*types.Event, error) {
	return t.st.getEvents(itemID, limit), nil
}

func (t *memTx) CreateItem(ctx context.Context, item *types.WorkItem, actor string) error {
	return t.st.createItem(item, actor)
}

func (t *memTx) SaveItem(ctx context.Context, item *types.WorkItem) error {
	return t.st.saveItem(item)
}

func (t *memTx) DeleteItem(ctx context.Context, id int64) error {
	return t.st.deleteItem(id)
}

func (t *memTx) CreateStatus(ctx context.Context, status *types.Status) error {
	return t.st.createStatus(status)
}

func (t *memTx) AddRelation(ctx context.Context, rel *types.Relation) error {
	return t.st.addRelation(rel)
}

func (t *memTx) RemoveRelation(ctx context.Context, id int64) error {
	return t.st.removeRelation(id)
}

func (t *memTx) AddEvent(ctx context.Context, event *types.Event) error {
	t.st.addEvent(event)
	return nil
}
