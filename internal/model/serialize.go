package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// registryDocument is the on-disk shape of a Registry.
type registryDocument struct {
	Version           int         `yaml:"version"`
	TemplateDirectory string      `yaml:"template_directory"`
	Templates         []*Template `yaml:"templates"`
}

// UnmarshalRegistry parses a registry document.
// Duplicate names (case-insensitive) are rejected.
func UnmarshalRegistry(data []byte) (*Registry, error) {
	var doc registryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if doc.Version > RegistryVersion {
		return nil, fmt.Errorf("registry version %d is newer than supported version %d", doc.Version, RegistryVersion)
	}

	r := NewRegistry(doc.TemplateDirectory)
	for _, t := range doc.Templates {
		if t == nil {
			continue
		}
		if t.Name == "" {
			return nil, fmt.Errorf("registry entry with stored_path %q has no name", t.StoredPath)
		}
		if r.Has(t.Name) {
			return nil, fmt.Errorf("duplicate template name %q", t.Name)
		}
		r.Add(t)
	}
	return r, nil
}

// MarshalRegistry encodes a registry document.
// Templates are sorted by name so the output is stable.
// Zero timestamps are omitted.
func MarshalRegistry(r *Registry) ([]byte, error) {
	node := buildRegistryNode(r)

	data, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry: %w", err)
	}
	return data, nil
}

// buildRegistryNode creates a yaml.Node tree for a Registry with proper formatting.
func buildRegistryNode(r *Registry) *yaml.Node {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	version := r.Version
	if version == 0 {
		version = RegistryVersion
	}
	addIntField(doc, "version", version)
	addStringField(doc, "template_directory", r.TemplateDirectory)

	templatesNode := &yaml.Node{Kind: yaml.SequenceNode}
	for _, t := range r.Templates() {
		templatesNode.Content = append(templatesNode.Content, buildTemplateNode(t))
	}
	doc.Content = append(doc.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "templates"},
		templatesNode,
	)

	return doc
}

// buildTemplateNode creates a yaml.Node for a Template.
func buildTemplateNode(t *Template) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}

	addStringField(node, "name", t.Name)
	addStringField(node, "stored_path", t.StoredPath)
	if !t.Created.IsZero() {
		addTimeField(node, "created", t.Created)
	}

	return node
}

// Helper functions for building yaml.Node

func addStringField(node *yaml.Node, key, value string) {
	// The explicit !!str tag makes the encoder quote values such as "yes" or "123".
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: "!!str"},
	)
}

func addIntField(node *yaml.Node, key string, value int) {
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%d", value), Tag: "!!int"},
	)
}

func addTimeField(node *yaml.Node, key string, t time.Time) {
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: t.UTC().Format(time.RFC3339)},
	)
}
