package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgraph/wpgraph/internal/types"
)

func TestLoadRulesFormats(t *testing.T) {
	want := []Rule{
		{Type: "*", Role: "member", From: types.StatusNew, To: []string{types.StatusInProgress, types.StatusClosed}},
		{Type: "bug", Role: "member", From: types.StatusInProgress, To: []string{types.StatusRejected}},
	}
	for _, name := range []string{"workflow.yaml", "workflow.toml"} {
		t.Run(name, func(t *testing.T) {
			got, err := LoadRules(filepath.Join("testdata", name))
			require.NoError(t, err)
			assert.Equal(t, want, got)

			_, err = NewTable(types.DefaultStatuses(), got)
			assert.NoError(t, err)
		})
	}
}

func TestParseRulesErrors(t *testing.T) {
	_, err := ParseRules([]byte("transitions: ["), ".yml")
	assert.ErrorContains(t, err, "parse workflow yaml")

	_, err = ParseRules([]byte("[[transitions]\n"), ".toml")
	assert.ErrorContains(t, err, "parse workflow toml")

	_, err = ParseRules([]byte("{}"), ".json")
	assert.ErrorContains(t, err, "unsupported workflow file extension")
}

func TestParseRulesTrimsWhitespace(t *testing.T) {
	got, err := ParseRules([]byte("transitions:\n  - from: \" new \"\n    role: \" member\"\n    to: [closed]\n"), ".YAML")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].From)
	assert.Equal(t, "member", got[0].Role)
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
