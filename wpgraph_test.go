package wpgraph_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/wpgraph/wpgraph"
)

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	eng, err := wpgraph.Open(ctx, "memory", wpgraph.StoreOptions{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer eng.Store().Close()

	actor := wpgraph.Actor{Name: "embedder", Role: "member"}
	original := &wpgraph.WorkItem{Subject: "original", StatusID: wpgraph.StatusNew}
	dup := &wpgraph.WorkItem{Subject: "duplicate", StatusID: wpgraph.StatusNew}
	for _, item := range []*wpgraph.WorkItem{original, dup} {
		if err := eng.Store().CreateItem(ctx, item, actor.Name); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	rel := &wpgraph.Relation{FromID: dup.ID, ToID: original.ID, Kind: wpgraph.RelDuplicates}
	if _, err := eng.AddRelation(ctx, actor, rel); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}
	res, err := eng.ChangeStatus(ctx, actor, original.ID, wpgraph.StatusClosed)
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if !res.Changed(dup.ID) {
		t.Errorf("duplicate was not closed: %+v", res.Changes)
	}
}

func TestOpenSQLiteWithGate(t *testing.T) {
	ctx := context.Background()
	opts := wpgraph.StoreOptions{Path: filepath.Join(t.TempDir(), "wpgraph.db")}
	eng, err := wpgraph.Open(ctx, "sqlite", opts, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer eng.Store().Close()

	gate, err := wpgraph.NewGate(ctx, eng.Store(), []wpgraph.Rule{
		{From: wpgraph.StatusNew, To: []string{wpgraph.StatusInProgress}},
	})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	strict, err := wpgraph.Open(ctx, "memory", wpgraph.StoreOptions{}, gate)
	if err != nil {
		t.Fatalf("Open with gate: %v", err)
	}
	defer strict.Store().Close()

	actor := wpgraph.Actor{Name: "embedder", Role: "member"}
	item := &wpgraph.WorkItem{Subject: "guarded", StatusID: wpgraph.StatusNew}
	if err := strict.Store().CreateItem(ctx, item, actor.Name); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	_, err = strict.ChangeStatus(ctx, actor, item.ID, wpgraph.StatusClosed)
	if !errors.Is(err, wpgraph.ErrTransitionNotAllowed) {
		t.Errorf("expected ErrTransitionNotAllowed, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := wpgraph.Open(context.Background(), "postgres", wpgraph.StoreOptions{}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
