package report

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Frontmatter represents YAML frontmatter for markdown files
type Frontmatter struct {
	fields map[string]interface{}
	order  []string // Track insertion order
}

// NewFrontmatter creates a new frontmatter instance
func NewFrontmatter() *Frontmatter {
	return &Frontmatter{
		fields: make(map[string]interface{}),
		order:  make([]string, 0),
	}
}

// Set adds or updates a field in the frontmatter
func (f *Frontmatter) Set(key string, value interface{}) {
	if _, exists := f.fields[key]; !exists {
		f.order = append(f.order, key)
	}
	f.fields[key] = value
}

// Get retrieves a field value
func (f *Frontmatter) Get(key string) (interface{}, bool) {
	v, ok := f.fields[key]
	return v, ok
}

// Render produces the YAML frontmatter string with delimiters. Fields keep
// their insertion order.
func (f *Frontmatter) Render() (string, error) {
	if len(f.fields) == 0 {
		return "", nil
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range f.order {
		var value yaml.Node
		if err := value.Encode(f.fields[key]); err != nil {
			return "", fmt.Errorf("encoding frontmatter field %s: %w", key, err)
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&value,
		)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("rendering frontmatter: %w", err)
	}
	return "---\n" + string(out) + "---\n\n", nil
}

// FromMap creates a Frontmatter from a map (sorted alphabetically)
func FromMap(m map[string]interface{}) *Frontmatter {
	f := NewFrontmatter()

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f.Set(k, m[k])
	}

	return f
}
