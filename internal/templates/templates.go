// Package templates holds the canned error reports used to simulate incidents.
package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Template is one simulated error report
type Template struct {
	Message     string `yaml:"message" json:"message"`
	Detail      string `yaml:"detail" json:"detail"`
	SourceLabel string `yaml:"source_label" json:"source_label"`
}

// Set is a non-empty list of templates
type Set struct {
	items []Template
	pick  func(n int) int
}

// Default returns the built-in templates
func Default() *Set {
	set, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded templates are invalid: %v", err))
	}
	return set
}

// Load reads templates from path, or returns the defaults when path is empty
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("templates file %s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a YAML list of templates. Every entry needs a message and a detail.
func Parse(data []byte) (*Set, error) {
	var items []Template
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("no templates defined")
	}
	for i, t := range items {
		if strings.TrimSpace(t.Message) == "" || strings.TrimSpace(t.Detail) == "" {
			return nil, fmt.Errorf("template %d: message and detail are required", i)
		}
	}
	return &Set{items: items, pick: rand.IntN}, nil
}

// Random returns one template chosen uniformly
func (s *Set) Random() Template {
	return s.items[s.pick(len(s.items))]
}

// All returns a copy of every template
func (s *Set) All() []Template {
	return append([]Template(nil), s.items...)
}

// Len returns the number of templates
func (s *Set) Len() int {
	return len(s.items)
}
