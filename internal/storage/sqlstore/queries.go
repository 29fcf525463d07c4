package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements storage.Transaction on top of a querier. The Store wraps
// one bound to the pool; each transaction gets one bound to its *sql.Tx.
type conn struct {
	q querier
}

var _ storage.Transaction = (*conn)(nil)

var (
	itemColumns     = []string{"id", "subject", "project_id", "type_id", "status_id", "start_date", "due_date", "created_at", "updated_at"}
	statusColumns   = []string{"id", "name", "is_closed", "is_default", "position"}
	relationColumns = []string{"id", "from_id", "to_id", "kind", "delay_days", "created_at", "created_by"}
	eventColumns    = []string{"id", "item_id", "event_type", "actor", "old_value", "new_value", "cascade_id", "created_at"}
)

// formatTime formats a time.Time as a string both dialects accept for DATETIME/TEXT.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// parseTime parses a stored timestamp string into time.Time.
func parseTime(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(types.DateLayout)
}

func parseNullDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	// MySQL may hand back a DATETIME-shaped value for DATE columns
	v := s.String
	if len(v) > len(types.DateLayout) {
		v = v[:len(types.DateLayout)]
	}
	t, err := time.Parse(types.DateLayout, v)
	if err != nil {
		return nil
	}
	return &t
}

type scanner interface{ Scan(dest ...any) error }

func scanItem(s scanner) (*types.WorkItem, error) {
	var item types.WorkItem
	var start, due sql.NullString
	var createdAt, updatedAt string
	if err := s.Scan(&item.ID, &item.Subject, &item.ProjectID, &item.TypeID, &item.StatusID,
		&start, &due, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.StartDate = parseNullDate(start)
	item.DueDate = parseNullDate(due)
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}

func scanStatus(s scanner) (*types.Status, error) {
	var st types.Status
	if err := s.Scan(&st.ID, &st.Name, &st.IsClosed, &st.IsDefault, &st.Position); err != nil {
		return nil, err
	}
	return &st, nil
}

func scanRelation(s scanner) (*types.Relation, error) {
	var r types.Relation
	var kind, createdAt string
	var delay sql.NullInt64
	if err := s.Scan(&r.ID, &r.FromID, &r.ToID, &kind, &delay, &createdAt, &r.CreatedBy); err != nil {
		return nil, err
	}
	r.Kind = types.RelationKind(kind)
	if delay.Valid {
		d := int(delay.Int64)
		r.Delay = &d
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func scanEvent(s scanner) (*types.Event, error) {
	var ev types.Event
	var evType, createdAt string
	var oldValue, newValue sql.NullString
	if err := s.Scan(&ev.ID, &ev.ItemID, &evType, &ev.Actor, &oldValue, &newValue, &ev.CascadeID, &createdAt); err != nil {
		return nil, err
	}
	ev.EventType = types.EventType(evType)
	if oldValue.Valid {
		ev.OldValue = &oldValue.String
	}
	if newValue.Valid {
		ev.NewValue = &newValue.String
	}
	ev.CreatedAt = parseTime(createdAt)
	return &ev, nil
}

func (c *conn) queryRow(ctx context.Context, b sq.SelectBuilder) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return c.q.QueryRowContext(ctx, query, args...), nil
}

func (c *conn) query(ctx context.Context, b sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return c.q.QueryContext(ctx, query, args...)
}

func (c *conn) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return c.q.ExecContext(ctx, query, args...)
}

// ── Work items ──────────────────────────────────────────────────────────────

func (c *conn) GetItem(ctx context.Context, id int64) (*types.WorkItem, error) {
	row, err := c.queryRow(ctx, sb.Select(itemColumns...).From("work_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	item, err := scanItem(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("work item %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item %d: %w", id, err)
	}
	return item, nil
}

func (c *conn) ListItems(ctx context.Context, projectID string) ([]*types.WorkItem, error) {
	b := sb.Select(itemColumns...).From("work_items").OrderBy("id")
	if projectID != "" {
		b = b.Where(sq.Eq{"project_id": projectID})
	}
	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*types.WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (c *conn) CreateItem(ctx context.Context, item *types.WorkItem, actor string) error {
	item.SetDefaults()
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}
	if _, err := c.GetStatus(ctx, item.StatusID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	cols := []string{"subject", "project_id", "type_id", "status_id", "start_date", "due_date", "created_at", "updated_at"}
	vals := []any{item.Subject, item.ProjectID, item.TypeID, item.StatusID,
		dateArg(item.StartDate), dateArg(item.DueDate), formatTime(item.CreatedAt), formatTime(item.UpdatedAt)}
	if item.ID != 0 {
		cols = append([]string{"id"}, cols...)
		vals = append([]any{item.ID}, vals...)
	}

	res, err := c.exec(ctx, sb.Insert("work_items").Columns(cols...).Values(vals...))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("work item %d already exists", item.ID)
		}
		return fmt.Errorf("insert work item: %w", err)
	}
	if item.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read work item id: %w", err)
		}
		item.ID = id
	}
	return c.AddEvent(ctx, &types.Event{ItemID: item.ID, EventType: types.EventCreated, Actor: actor})
}

func (c *conn) SaveItem(ctx context.Context, item *types.WorkItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}
	item.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := c.exec(ctx, sb.Update("work_items").SetMap(map[string]any{
		"subject":    item.Subject,
		"project_id": item.ProjectID,
		"type_id":    item.TypeID,
		"status_id":  item.StatusID,
		"start_date": dateArg(item.StartDate),
		"due_date":   dateArg(item.DueDate),
		"updated_at": formatTime(item.UpdatedAt),
	}).Where(sq.Eq{"id": item.ID}))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("status %q: %w", item.StatusID, storage.ErrNotFound)
		}
		return fmt.Errorf("save work item %d: %w", item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// MySQL reports zero rows when nothing changed, so confirm the row exists
		if _, err := c.GetItem(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) DeleteItem(ctx context.Context, id int64) error {
	// Explicit deletes keep this correct even where foreign keys are disabled
	if _, err := c.exec(ctx, sb.Delete("relations").Where(sq.Or{sq.Eq{"from_id": id}, sq.Eq{"to_id": id}})); err != nil {
		return fmt.Errorf("delete relations of %d: %w", id, err)
	}
	if _, err := c.exec(ctx, sb.Delete("events").Where(sq.Eq{"item_id": id})); err != nil {
		return fmt.Errorf("delete events of %d: %w", id, err)
	}
	res, err := c.exec(ctx, sb.Delete("work_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete work item %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("work item %d", id))
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}

// ── Statuses ────────────────────────────────────────────────────────────────

func (c *conn) GetStatus(ctx context.Context, id string) (*types.Status, error) {
	row, err := c.queryRow(ctx, sb.Select(statusColumns...).From("statuses").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	st, err := scanStatus(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("status %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get status %q: %w", id, err)
	}
	return st, nil
}

func (c *conn) ListStatuses(ctx context.Context) ([]*types.Status, error) {
	rows, err := c.query(ctx, sb.Select(statusColumns...).From("statuses").OrderBy("position", "id"))
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var out []*types.Status
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (c *conn) CreateStatus(ctx context.Context, st *types.Status) error {
	if st.ID == "" {
		return fmt.Errorf("status id is required")
	}
	_, err := c.exec(ctx, sb.Insert("statuses").Columns(statusColumns...).
		Values(st.ID, st.Name, st.IsClosed, st.IsDefault, st.Position))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("status %q already exists", st.ID)
		}
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

// ── Relations ───────────────────────────────────────────────────────────────

func (c *conn) GetRelation(ctx context.Context, id int64) (*types.Relation, error) {
	row, err := c.queryRow(ctx, sb.Select(relationColumns...).From("relations").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	r, err := scanRelation(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("relation %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get relation %d: %w", id, err)
	}
	return r, nil
}

func (c *conn) GetRelationsFor(ctx context.Context, id int64, kind types.RelationKind, reverse bool) ([]*types.Relation, error) {
	col := "from_id"
	if reverse {
		col = "to_id"
	}
	return c.listRelations(ctx, sb.Select(relationColumns...).From("relations").
		Where(sq.Eq{col: id, "kind": string(kind)}).OrderBy("id"))
}

func (c *conn) ListRelations(ctx context.Context, kind types.RelationKind) ([]*types.Relation, error) {
	b := sb.Select(relationColumns...).From("relations").OrderBy("id")
	if kind != "" {
		b = b.Where(sq.Eq{"kind": string(kind)})
	}
	return c.listRelations(ctx, b)
}

func (c *conn) listRelations(ctx context.Context, b sq.SelectBuilder) ([]*types.Relation, error) {
	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var out []*types.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *conn) AddRelation(ctx context.Context, rel *types.Relation) error {
	if !rel.Kind.IsCanonical() {
		return fmt.Errorf("relation kind %q must be normalized before storing", rel.Kind)
	}
	for _, id := range []int64{rel.FromID, rel.ToID} {
		if _, err := c.GetItem(ctx, id); err != nil {
			return err
		}
	}

	var exists int
	row, err := c.queryRow(ctx, sb.Select("COUNT(*)").From("relations").
		Where(sq.Eq{"from_id": rel.FromID, "to_id": rel.ToID, "kind": string(rel.Kind)}))
	if err != nil {
		return err
	}
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("check relation: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%s: %w", rel, storage.ErrDuplicateRelation)
	}

	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	var delay any
	if rel.Delay != nil {
		delay = *rel.Delay
	}
	res, err := c.exec(ctx, sb.Insert("relations").
		Columns("from_id", "to_id", "kind", "delay_days", "created_at", "created_by").
		Values(rel.FromID, rel.ToID, string(rel.Kind), delay, formatTime(rel.CreatedAt), rel.CreatedBy))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%s: %w", rel, storage.ErrDuplicateRelation)
		}
		return fmt.Errorf("insert relation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read relation id: %w", err)
	}
	rel.ID = id
	return nil
}

func (c *conn) RemoveRelation(ctx context.Context, id int64) error {
	res, err := c.exec(ctx, sb.Delete("relations").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete relation %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("relation %d", id))
}

// ── Events ──────────────────────────────────────────────────────────────────

func (c *conn) AddEvent(ctx context.Context, ev *types.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	res, err := c.exec(ctx, sb.Insert("events").
		Columns("item_id", "event_type", "actor", "old_value", "new_value", "cascade_id", "created_at").
		Values(ev.ItemID, string(ev.EventType), ev.Actor, ev.OldValue, ev.NewValue, ev.CascadeID, formatTime(ev.CreatedAt)))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		ev.ID = id
	}
	return nil
}

func (c *conn) GetEvents(ctx context.Context, itemID int64, limit int) ([]*types.Event, error) {
	b := sb.Select(eventColumns...).From("events").Where(sq.Eq{"item_id": itemID}).OrderBy("id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
