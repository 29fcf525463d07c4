package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestMain isolates tests from any `.wpgraph/config.yaml` above the working
// directory and from the user's own config directory.
func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "wpgraph-config-tests-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	oldWD, _ := os.Getwd()

	_ = os.Chdir(tmp)
	_ = os.Setenv("HOME", tmp)
	_ = os.Setenv("USERPROFILE", tmp) // Windows compatibility
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg-config"))

	code := m.Run()

	_ = os.Chdir(oldWD)
	_ = os.RemoveAll(tmp)
	os.Exit(code)
}

// chdirProject makes a fresh project directory the working directory for t.
func chdirProject(t *testing.T, configYAML string) string {
	t.Helper()
	dir := t.TempDir()
	projectDir := filepath.Join(dir, ProjectDirName)
	if err := os.MkdirAll(projectDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if configYAML != "" {
		if err := os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte(configYAML), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	oldWD, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
		ResetForTesting()
	})
	ResetForTesting()
	return dir
}
