package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitializeDefaults(t *testing.T) {
	chdirProject(t, "")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key  string
		want interface{}
		got  func(string) interface{}
	}{
		{KeyBackend, "sqlite", func(k string) interface{} { return GetString(k) }},
		{KeyRole, "member", func(k string) interface{} { return GetString(k) }},
		{KeyLogLevel, "warn", func(k string) interface{} { return GetString(k) }},
		{KeyLogFormat, "console", func(k string) interface{} { return GetString(k) }},
		{KeyJSON, false, func(k string) interface{} { return GetBool(k) }},
		{KeyWorkflowWatch, false, func(k string) interface{} { return GetBool(k) }},
		{KeyMaxParallel, 8, func(k string) interface{} { return GetInt(k) }},
		{KeyConnectTimeout, 10 * time.Second, func(k string) interface{} { return GetDuration(k) }},
	}
	for _, tt := range tests {
		if got := tt.got(tt.key); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, got, tt.want)
		}
	}
	if used := ConfigFileUsed(); used != "" {
		t.Errorf("ConfigFileUsed() = %q, want none", used)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	chdirProject(t, "")
	t.Setenv("WPG_BACKEND", "mysql")
	t.Setenv("WPG_WORKFLOW_FILE", "/etc/wpgraph/workflow.yaml")
	t.Setenv("WPG_PROPAGATION_MAX_PARALLEL", "3")
	t.Setenv("WPG_JSON", "true")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetString(KeyBackend); got != "mysql" {
		t.Errorf("backend = %q, want mysql", got)
	}
	if got := GetString(KeyWorkflowFile); got != "/etc/wpgraph/workflow.yaml" {
		t.Errorf("workflow-file = %q", got)
	}
	if got := GetInt(KeyMaxParallel); got != 3 {
		t.Errorf("max-parallel = %d, want 3", got)
	}
	if !GetBool(KeyJSON) {
		t.Error("json should be true from WPG_JSON")
	}
}

func TestProjectConfigFile(t *testing.T) {
	chdirProject(t, "backend: mysql\ndsn: wpg:secret@tcp(localhost:3306)/wpg\nrole: manager\npropagation:\n  max-parallel: 2\n")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if !strings.HasSuffix(ConfigFileUsed(), ProjectDirName+"/config.yaml") {
		t.Errorf("ConfigFileUsed() = %q", ConfigFileUsed())
	}
	if got := GetString(KeyBackend); got != "mysql" {
		t.Errorf("backend = %q, want mysql", got)
	}
	if got := GetString(KeyRole); got != "manager" {
		t.Errorf("role = %q, want manager", got)
	}
	if got := GetInt(KeyMaxParallel); got != 2 {
		t.Errorf("max-parallel = %d, want 2", got)
	}
}

func TestEnvironmentBeatsConfigFile(t *testing.T) {
	chdirProject(t, "role: manager\n")
	t.Setenv("WPG_ROLE", "viewer")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetString(KeyRole); got != "viewer" {
		t.Errorf("role = %q, want viewer", got)
	}

	// Explicit Set (flags) beats both
	Set(KeyRole, "admin")
	if got := GetString(KeyRole); got != "admin" {
		t.Errorf("role = %q after Set, want admin", got)
	}
}

func TestBrokenConfigFile(t *testing.T) {
	chdirProject(t, "backend: [unclosed\n")

	if err := Initialize(); err == nil {
		t.Fatal("expected error for malformed config.yaml")
	}

	// Lazy access falls back to defaults
	ResetForTesting()
	if got := GetString(KeyBackend); got != "" && got != "sqlite" {
		t.Errorf("backend = %q with broken config", got)
	}
}

func TestFindConfigYAMLPathWalksUp(t *testing.T) {
	dir := chdirProject(t, "backend: sqlite\n")
	sub := filepath.Join(dir, "docs", "plans")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(sub); err != nil {
		t.Fatal(err)
	}

	path, err := FindConfigYAMLPath()
	if err != nil {
		t.Fatalf("FindConfigYAMLPath: %v", err)
	}
	if !strings.HasSuffix(path, ProjectDirName+"/config.yaml") {
		t.Errorf("path = %q", path)
	}
}
