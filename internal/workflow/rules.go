package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk layout of a workflow file:
//
//	transitions:
//	  - type: "*"
//	    role: member
//	    from: new
//	    to: [in_progress, closed]
type RulesFile struct {
	Transitions []Rule `yaml:"transitions" toml:"transitions"`
}

// LoadRules reads transition rules from a .yaml/.yml or .toml file.
func LoadRules(path string) ([]Rule, error) {
	// #nosec G304 - path comes from user configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return ParseRules(data, filepath.Ext(path))
}

// ParseRules decodes rules in the format named by ext (".yaml", ".yml" or ".toml").
func ParseRules(data []byte, ext string) ([]Rule, error) {
	var f RulesFile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse workflow yaml: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parse workflow toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported workflow file extension %q (want .yaml, .yml or .toml)", ext)
	}
	for i := range f.Transitions {
		r := &f.Transitions[i]
		r.Type = strings.TrimSpace(r.Type)
		r.Role = strings.TrimSpace(r.Role)
		r.From = strings.TrimSpace(r.From)
	}
	return f.Transitions, nil
}
