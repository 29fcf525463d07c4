package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/wpgraph/wpgraph/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// waitReload waits for a reload whose outcome matches wantErr.
func waitReload(t *testing.T, ch <-chan error, wantErr bool) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-ch:
			if (err != nil) == wantErr {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for workflow reload (wantErr=%v)", wantErr)
		}
	}
}

func TestWatcherReloadsRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	writeFile(t, path, "transitions:\n  - from: new\n    to: [in_progress]\n")

	rules, err := LoadRules(path)
	require.NoError(t, err)
	table, err := NewTable(types.DefaultStatuses(), rules)
	require.NoError(t, err)

	reloaded := make(chan error, 16)
	w, err := Watch(context.Background(), path, table,
		WithDebounce(50*time.Millisecond),
		WithWatchLogger(zaptest.NewLogger(t)),
		OnReload(func(err error) {
			select {
			case reloaded <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)
	defer func() { assert.NoError(t, w.Close()) }()

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")

	writeFile(t, path, "transitions:\n  - from: new\n    to: [closed]\n")
	waitReload(t, reloaded, false)

	got, err := table.AllowedTransitions(context.Background(), types.StatusNew, "task", "member")
	require.NoError(t, err)
	assert.Equal(t, []string{types.StatusClosed}, ids(got))

	// A broken file keeps the previous rules.
	writeFile(t, path, "transitions:\n  - from: new\n    to: [nowhere]\n")
	waitReload(t, reloaded, true)

	got, err = table.AllowedTransitions(context.Background(), types.StatusNew, "task", "member")
	require.NoError(t, err)
	assert.Equal(t, []string{types.StatusClosed}, ids(got))
}

func TestWatcherStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.toml")
	writeFile(t, path, "")
	table := AllowAll(types.DefaultStatuses())

	ctx, cancel := context.WithCancel(context.Background())
	w, err := Watch(ctx, path, table)
	require.NoError(t, err)
	cancel()
	assert.NoError(t, w.Close())
}

func TestWatchMissingDirectory(t *testing.T) {
	_, err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "workflow.yaml"), AllowAll(nil))
	assert.Error(t, err)
}
