package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocalConfig is the subset of config.yaml read straight from disk, without
// the viper singleton. Used when the working directory is not the project.
type LocalConfig struct {
	Backend      string `yaml:"backend"`
	DB           string `yaml:"db"`
	Actor        string `yaml:"actor"`
	Role         string `yaml:"role"`
	WorkflowFile string `yaml:"workflow-file"`
}

// LoadLocalConfig reads config.yaml from the given .wpgraph directory.
// Returns an empty LocalConfig (not nil) if the file doesn't exist or can't be parsed.
func LoadLocalConfig(projectDir string) *LocalConfig {
	data, err := os.ReadFile(filepath.Join(projectDir, "config.yaml")) // #nosec G304 - path from projectDir
	if err != nil {
		return &LocalConfig{}
	}
	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}
	return &cfg
}

// SettableKeys lists the keys `wpg config set` may write.
var SettableKeys = map[string]bool{
	KeyBackend:        true,
	KeyDB:             true,
	KeyDSN:            true,
	KeyActor:          true,
	KeyRole:           true,
	KeyWorkflowFile:   true,
	KeyWorkflowWatch:  true,
	KeyLogLevel:       true,
	KeyLogFormat:      true,
	KeyJSON:           true,
	KeyMaxParallel:    true,
	KeyConnectTimeout: true,

	KeyOtelEnabled:         true,
	KeyOtelStdout:          true,
	KeyOtelServiceName:     true,
	KeyOtelEndpoint:        true,
	KeyOtelMetricsEndpoint: true,
	KeyOtelMetricInterval:  true,
}

// InitProject creates dir/.wpgraph/config.yaml unless it exists and returns its path.
func InitProject(dir string) (string, error) {
	projectDir := filepath.Join(dir, ProjectDirName)
	if err := os.MkdirAll(projectDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", projectDir, err)
	}
	path := filepath.Join(projectDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	initial := "# wpg project configuration\nbackend: sqlite\ndb: " + filepath.Join(projectDir, "wpgraph.db") + "\n"
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config.yaml: %w", err)
	}
	return path, nil
}

// SetYamlConfig writes key: value into the project's config.yaml, keeping
// comments and the order of existing keys. Dotted keys address nested maps.
func SetYamlConfig(key, value string) error {
	if !SettableKeys[key] {
		return fmt.Errorf("unknown config key %q", key)
	}
	path, err := FindConfigYAMLPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path from FindConfigYAMLPath
	if err != nil {
		return fmt.Errorf("failed to read config.yaml: %w", err)
	}

	out, err := setYamlKey(data, key, value)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}

	// Reload so the change takes effect immediately
	return Initialize()
}

func setYamlKey(data []byte, key, value string) ([]byte, error) {
	var root yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
		}
	}
	// Empty or comment-only files have no mapping yet
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if root.Content[0].Kind != yaml.MappingNode {
		root.Content[0] = &yaml.Node{Kind: yaml.MappingNode}
	}

	// propagation.max-parallel is stored as a nested map
	mapping := root.Content[0]
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		mapping = childMapping(mapping, part)
	}
	setScalar(mapping, parts[len(parts)-1], value)

	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, fmt.Errorf("failed to encode config.yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close encoder: %w", err)
	}
	return []byte(buf.String()), nil
}

func childMapping(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			if m.Content[i+1].Kind != yaml.MappingNode {
				m.Content[i+1] = &yaml.Node{Kind: yaml.MappingNode}
			}
			return m.Content[i+1]
		}
	}
	child := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, child)
	return child
}

func setScalar(m *yaml.Node, key, value string) {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	// Let yaml decide between bool/int/string, quoting only free text
	var probe interface{}
	if err := yaml.Unmarshal([]byte(value), &probe); err != nil || fmt.Sprint(probe) != value {
		node.Style = yaml.DoubleQuotedStyle
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			node.HeadComment = m.Content[i+1].HeadComment
			node.LineComment = m.Content[i+1].LineComment
			m.Content[i+1] = node
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, node)
}
